package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/danielpatrickdp/swarm-governor/internal/drift"
)

// #region types
// Event is one context entry sent to the facts worker. Free-form; the worker
// looks for text under keys like "content", "text", "excerpt", "body".
type Event map[string]any

// Facts is the structured fact sheet the worker extracts from context.
type Facts struct {
	Version        int      `json:"version"`
	UpdatedAt      string   `json:"updated_at"`
	Entities       []string `json:"entities"`
	Claims         []string `json:"claims"`
	Risks          []string `json:"risks"`
	Assumptions    []string `json:"assumptions"`
	Contradictions []string `json:"contradictions"`
	Goals          []string `json:"goals"`
	Confidence     float64  `json:"confidence"`
	Hash           string   `json:"hash"`
}

// ExtractResult holds the response from the facts worker.
type ExtractResult struct {
	Facts Facts       `json:"facts"`
	Drift drift.State `json:"drift"`
}

type extractRequest struct {
	Context       []Event `json:"context"`
	PreviousFacts *Facts  `json:"previous_facts,omitempty"`
}

// #endregion types

// #region client-struct
// Client wraps the HTTP connection to a worker agent service.
type Client struct {
	baseURL string
	hc      *http.Client
}

// #endregion client-struct

// #region constructor
// NewClient creates a worker client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTP creates a Client with an injected HTTP client.
// Used for testing against httptest servers.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, hc: hc}
}

// #endregion constructor

// #region extract
// Extract sends recent context events to the facts worker and returns the
// extracted fact sheet plus the worker's drift assessment. previousFacts may
// be nil on the first extraction for a scope.
func (c *Client) Extract(ctx context.Context, events []Event, previousFacts *Facts) (ExtractResult, error) {
	var out ExtractResult
	req := extractRequest{Context: events, PreviousFacts: previousFacts}
	if req.Context == nil {
		req.Context = []Event{}
	}
	if err := c.post(ctx, "/extract", req, &out); err != nil {
		return ExtractResult{}, fmt.Errorf("extract: %w", err)
	}
	return out, nil
}

// #endregion extract

// #region health
// Health checks worker liveness.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health: status %d", resp.StatusCode)
	}
	return nil
}

// #endregion health

// #region post
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// #endregion post
