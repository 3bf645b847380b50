// Package ledger talks to the ledger gateway that anchors event hashes per
// batch on the contract. The gateway surface is deliberately small: append a
// hash for a batch, read back the ordered hash sequence.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client interface {
	// GetEventHashes returns the anchored hash sequence for a batch, in
	// anchoring order.
	GetEventHashes(ctx context.Context, batchID string) ([]string, error)
	// AnchorEvent appends one event hash to the batch's on-chain sequence.
	AnchorEvent(ctx context.Context, batchID, hash string) error
}

type HTTPClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	HTTPClient *http.Client
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	retries int
}

func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ledger base url required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  client,
		timeout: timeout,
		retries: retries,
	}, nil
}

func (c *HTTPClient) GetEventHashes(ctx context.Context, batchID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/ledger/batches/%s/hashes", c.baseURL, url.PathEscape(batchID))
	var payload struct {
		Hashes []string `json:"hashes"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("ledger get hashes: %w", err)
	}
	hashes := make([]string, len(payload.Hashes))
	for i, h := range payload.Hashes {
		hashes[i] = strings.ToLower(h)
	}
	return hashes, nil
}

func (c *HTTPClient) AnchorEvent(ctx context.Context, batchID, hash string) error {
	endpoint := fmt.Sprintf("%s/ledger/batches/%s/events", c.baseURL, url.PathEscape(batchID))
	body, err := json.Marshal(map[string]string{"hash": hash})
	if err != nil {
		return fmt.Errorf("ledger marshal anchor: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return fmt.Errorf("ledger anchor event: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	attempts := c.retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		var reader *bytes.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		} else {
			reader = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, endpoint, reader)
		if err != nil {
			cancel()
			return fmt.Errorf("build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.client.Do(req)
		cancel()
		if err != nil {
			lastErr = err
		} else {
			err = decodeResponse(resp, out)
			resp.Body.Close()
			if err == nil {
				return nil
			}
			lastErr = err
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}
	return lastErr
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 500 {
		return fmt.Errorf("ledger unavailable: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("ledger rejected request: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ledger decode response: %w", err)
	}
	return nil
}
