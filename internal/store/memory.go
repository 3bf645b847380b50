package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CropCred/cropcred/internal/models"
)

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu           sync.RWMutex
	certificates map[string]models.Certificate
	events       []models.LifecycleEvent
	saved        map[string]map[string]models.SavedBatch // userID -> batchID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		certificates: map[string]models.Certificate{},
		saved:        map[string]map[string]models.SavedBatch{},
	}
}

func (m *MemoryStore) CreateCertificate(ctx context.Context, cert models.Certificate) (models.Certificate, error) {
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.certificates[cert.CertificateID] = cert
	return cert, nil
}

func (m *MemoryStore) GetCertificate(ctx context.Context, certificateID string) (models.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cert, ok := m.certificates[certificateID]
	if !ok {
		return models.Certificate{}, ErrNotFound
	}
	return cert, nil
}

func (m *MemoryStore) ListCertificatesByOwner(ctx context.Context, ownerAddress string) ([]models.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Certificate
	for _, cert := range m.certificates {
		if strings.EqualFold(cert.OwnerAddress, ownerAddress) {
			out = append(out, cert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (m *MemoryStore) SetCertificateDocument(ctx context.Context, certificateID, s3Key, sha256 string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cert, ok := m.certificates[certificateID]
	if !ok {
		return ErrNotFound
	}
	cert.S3Key = s3Key
	cert.SHA256 = sha256
	m.certificates[certificateID] = cert
	return nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, ev models.LifecycleEvent) (models.LifecycleEvent, error) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().UnixMilli()
	}
	ev.Payload = models.ClonePayload(ev.Payload)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *MemoryStore) ListEventsByCertificate(ctx context.Context, certificateID string) ([]models.LifecycleEvent, error) {
	return m.listEvents(func(ev models.LifecycleEvent) bool { return ev.CertificateID == certificateID })
}

func (m *MemoryStore) ListEventsByBatch(ctx context.Context, batchID string) ([]models.LifecycleEvent, error) {
	return m.listEvents(func(ev models.LifecycleEvent) bool { return ev.BatchID == batchID })
}

func (m *MemoryStore) listEvents(match func(models.LifecycleEvent) bool) ([]models.LifecycleEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.LifecycleEvent
	for _, ev := range m.events {
		if match(ev) {
			ev.Payload = models.ClonePayload(ev.Payload)
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}

func (m *MemoryStore) SaveBatch(ctx context.Context, saved models.SavedBatch) (models.SavedBatch, error) {
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byBatch, ok := m.saved[saved.UserID]
	if !ok {
		byBatch = map[string]models.SavedBatch{}
		m.saved[saved.UserID] = byBatch
	}
	byBatch[saved.BatchID] = saved
	return saved, nil
}

func (m *MemoryStore) ListSavedBatches(ctx context.Context, userID string) ([]models.SavedBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SavedBatch
	for _, sb := range m.saved[userID] {
		out = append(out, sb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteSavedBatch(ctx context.Context, userID, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved[userID], batchID)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
