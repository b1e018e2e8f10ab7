// Package archive persists completed fills to OpenSearch in daily indices.
package archive

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/self-labs/hass-stack/execution/internal/models"
)

const indexPrefix = "hass-fills-"

// Archiver stores completed fills for later querying.
type Archiver interface {
	ArchiveFill(ctx context.Context, fill models.Fill) error
	RecentFills(ctx context.Context, symbol string, limit int) ([]models.Fill, error)
}

// Config holds OpenSearch connection settings.
type Config struct {
	URL      string
	Username string
	Password string
	Insecure bool
}

// OpenSearch is the production Archiver.
type OpenSearch struct {
	client *opensearch.Client
}

func NewOpenSearch(cfg Config) (*OpenSearch, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure,
			},
		},
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &OpenSearch{client: client}, nil
}

// indexFor returns the daily index a fill belongs to.
func indexFor(ts time.Time) string {
	return indexPrefix + ts.UTC().Format("2006.01.02")
}

// ArchiveFill indexes one fill into the day's index.
func (o *OpenSearch) ArchiveFill(ctx context.Context, fill models.Fill) error {
	data, err := json.Marshal(fill)
	if err != nil {
		return fmt.Errorf("marshal fill: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: indexFor(fill.Timestamp),
		Body:  bytes.NewReader(data),
	}
	res, err := req.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("index fill: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index fill: %s", res.Status())
	}
	return nil
}

// RecentFills queries the archive for the latest fills, newest first.
func (o *OpenSearch) RecentFills(ctx context.Context, symbol string, limit int) ([]models.Fill, error) {
	if limit <= 0 {
		limit = 50
	}

	query := map[string]interface{}{
		"size": limit,
		"sort": []map[string]interface{}{
			{"timestamp": map[string]string{"order": "desc"}},
		},
	}
	if symbol != "" {
		query["query"] = map[string]interface{}{
			"term": map[string]interface{}{
				"symbol": symbol,
			},
		}
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := o.client.Search(
		o.client.Search.WithContext(ctx),
		o.client.Search.WithIndex(indexPrefix+"*"),
		o.client.Search.WithBody(strings.NewReader(string(body))),
	)
	if err != nil {
		return nil, fmt.Errorf("search fills: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search fills: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.Fill `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	fills := make([]models.Fill, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		fills = append(fills, hit.Source)
	}
	return fills, nil
}

// Noop is an Archiver that discards fills. Used when OpenSearch is not
// configured.
type Noop struct{}

func (Noop) ArchiveFill(context.Context, models.Fill) error { return nil }

func (Noop) RecentFills(context.Context, string, int) ([]models.Fill, error) {
	return nil, nil
}
