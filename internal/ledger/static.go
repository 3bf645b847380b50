package ledger

import (
	"context"
	"strings"
	"sync"
)

// StaticClient is an in-process ledger for tests and local development. It
// records anchored hashes per batch in order.
type StaticClient struct {
	mu     sync.RWMutex
	hashes map[string][]string
}

func NewStaticClient() *StaticClient {
	return &StaticClient{hashes: map[string][]string{}}
}

// Seed replaces the anchored sequence for a batch.
func (c *StaticClient) Seed(batchID string, hashes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes[batchID] = append([]string(nil), hashes...)
}

func (c *StaticClient) GetEventHashes(ctx context.Context, batchID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.hashes[batchID]))
	for i, h := range c.hashes[batchID] {
		out[i] = strings.ToLower(h)
	}
	return out, nil
}

func (c *StaticClient) AnchorEvent(ctx context.Context, batchID, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes[batchID] = append(c.hashes[batchID], hash)
	return nil
}
