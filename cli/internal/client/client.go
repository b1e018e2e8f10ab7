// Package client calls the stack's HTTP APIs from the CLI.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/self-labs/hass-stack/cli/internal/config"
)

// Tick mirrors the market data ingest payload.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// NewsItem mirrors the media ingest payload.
type NewsItem struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Source      string    `json:"source"`
	Headline    string    `json:"headline"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

// AgentInfo mirrors the coordinator registry entry.
type AgentInfo struct {
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	Priority      int       `json:"priority"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	ErrorCount    int64     `json:"error_count"`
}

// RegimeState mirrors the coordinator regime response.
type RegimeState struct {
	Regime            string    `json:"regime"`
	SizingMultiplier  float64   `json:"sizing_multiplier"`
	VIX               float64   `json:"vix"`
	P0QueueSaturation float64   `json:"p0_queue_saturation"`
	ChangedAt         time.Time `json:"changed_at"`
}

// Fill mirrors the execution archive entry.
type Fill struct {
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Direction   string    `json:"direction"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	SlippageBps float64   `json:"slippage_bps"`
	Strategy    string    `json:"strategy"`
	Timestamp   time.Time `json:"timestamp"`
}

// Client talks to the services named in one profile.
type Client struct {
	profile *config.Profile
	http    *http.Client
}

func New(profile *config.Profile) *Client {
	return &Client{
		profile: profile,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ingestToken signs a short lived bearer token with the profile's
// ingest secret, matching what the market data API validates.
func (c *Client) ingestToken() (string, error) {
	if c.profile.IngestSecret == "" {
		return "", fmt.Errorf("profile has no ingest_secret configured")
	}

	claims := jwt.MapClaims{
		"client_id": "hass-cli",
		"scopes":    []string{"ticks:write"},
		"iss":       "hass-marketdata",
		"iat":       jwt.NewNumericDate(time.Now()),
		"nbf":       jwt.NewNumericDate(time.Now()),
		"exp":       jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.profile.IngestSecret))
}

// SendTicks posts a tick batch to the market data ingest API.
func (c *Client) SendTicks(ticks []Tick) (accepted, rejected int, err error) {
	token, err := c.ingestToken()
	if err != nil {
		return 0, 0, err
	}

	var result struct {
		Accepted int `json:"accepted"`
		Rejected int `json:"rejected"`
	}
	err = c.post(c.profile.MarketDataURL+"/api/v1/ticks", token, ticks, &result)
	return result.Accepted, result.Rejected, err
}

// SendNews posts a news batch to the media API and reports how many
// sentiment signals it produced.
func (c *Client) SendNews(items []NewsItem) (processed, signals int, err error) {
	var result struct {
		Processed int               `json:"processed"`
		Signals   []json.RawMessage `json:"signals"`
	}
	err = c.post(c.profile.MediaURL+"/api/v1/news", "", items, &result)
	return result.Processed, len(result.Signals), err
}

// Agents fetches the coordinator's agent registry.
func (c *Client) Agents() ([]AgentInfo, error) {
	var agents []AgentInfo
	if err := c.get(c.profile.CoordinatorURL+"/api/v1/agents", &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// Regime fetches the coordinator's current market regime.
func (c *Client) Regime() (*RegimeState, error) {
	var state RegimeState
	if err := c.get(c.profile.CoordinatorURL+"/api/v1/regime", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Fills fetches recent fills from the execution archive.
func (c *Client) Fills(symbol string, limit int) ([]Fill, error) {
	query := url.Values{}
	if symbol != "" {
		query.Set("symbol", symbol)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	endpoint := c.profile.ExecutionURL + "/api/v1/fills"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var fills []Fill
	if err := c.get(endpoint, &fills); err != nil {
		return nil, err
	}
	return fills, nil
}

func (c *Client) post(endpoint, token string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req, out)
}

func (c *Client) get(endpoint string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
