// Package coordclient is a thin HTTP client for the coordinator's
// status API.
package coordclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client queries the coordinator over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Queues returns the dispatcher backlog per priority lane.
func (c *Client) Queues(ctx context.Context) (map[string]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/queues", nil)
	if err != nil {
		return nil, fmt.Errorf("create queues request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query coordinator queues: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coordinator returned status %d", resp.StatusCode)
	}

	var queues map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&queues); err != nil {
		return nil, fmt.Errorf("decode queues response: %w", err)
	}
	return queues, nil
}
