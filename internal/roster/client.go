package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Record is one student as published by the external roster.
type Record struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	PhotoURL   string `json:"photoUrl"`
}

// ErrSourceNotConfigured is returned when no roster URL has been set.
var ErrSourceNotConfigured = errors.New("roster source url not configured")

// Client fetches the full roster from the school information system.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client with the given request timeout.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimSpace(baseURL),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// FetchAll returns every student currently on the external roster.
func (c *Client) FetchAll(ctx context.Context) ([]Record, error) {
	if c.BaseURL == "" {
		return nil, ErrSourceNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roster request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("roster source error %s: %s", resp.Status, string(body))
	}

	var out []Record
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}
	return out, nil
}
