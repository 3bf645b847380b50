package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CropCred/cropcred/internal/blob"
	"github.com/CropCred/cropcred/internal/hashing"
	"github.com/CropCred/cropcred/internal/ledger"
	"github.com/CropCred/cropcred/internal/models"
	"github.com/CropCred/cropcred/internal/service"
	"github.com/CropCred/cropcred/internal/store"
	"github.com/CropCred/cropcred/internal/stream"
)

type capturedPublisher struct {
	envelopes []stream.Envelope
	fail      bool
}

func (p *capturedPublisher) Publish(ctx context.Context, env stream.Envelope) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *capturedPublisher) Close() error { return nil }

type failingLedger struct{}

func (failingLedger) GetEventHashes(ctx context.Context, batchID string) ([]string, error) {
	return nil, errors.New("ledger unreachable")
}

func (failingLedger) AnchorEvent(ctx context.Context, batchID, hash string) error {
	return errors.New("ledger unreachable")
}

func setup(t *testing.T) (*service.Service, *store.MemoryStore, *ledger.StaticClient, *capturedPublisher) {
	t.Helper()
	st := store.NewMemoryStore()
	lc := ledger.NewStaticClient()
	pub := &capturedPublisher{}
	svc := service.New(st, blob.NewMemoryStore(), lc, pub)
	_, err := st.CreateCertificate(context.Background(), models.Certificate{
		CertificateID: "CERT-1",
		OwnerAddress:  "0xabc",
	})
	assert.NoError(t, err)
	return svc, st, lc, pub
}

func TestRecordEventAnchorsAndPublishes(t *testing.T) {
	svc, st, lc, pub := setup(t)

	res, err := svc.RecordEvent(context.Background(), service.RecordEventRequest{
		BatchID:       "B1",
		CertificateID: "CERT-1",
		EventType:     models.EventCreated,
		Actor:         "farmer1",
		Payload:       map[string]interface{}{"notes": "harvested"},
	})
	assert.NoError(t, err)
	assert.True(t, res.Anchored)
	assert.Equal(t, hashing.HashEvent(res.Event), res.Hash)

	hashes, err := lc.GetEventHashes(context.Background(), "B1")
	assert.NoError(t, err)
	assert.Equal(t, []string{res.Hash}, hashes)

	events, err := st.ListEventsByCertificate(context.Background(), "CERT-1")
	assert.NoError(t, err)
	assert.Len(t, events, 1)

	assert.Len(t, pub.envelopes, 1)
	assert.Equal(t, "B1", pub.envelopes[0].BatchID)
	assert.True(t, pub.envelopes[0].Anchored)
}

func TestRecordEventUnknownCertificate(t *testing.T) {
	svc, _, _, _ := setup(t)
	_, err := svc.RecordEvent(context.Background(), service.RecordEventRequest{
		BatchID:       "B1",
		CertificateID: "nope",
		EventType:     models.EventCreated,
		Actor:         "farmer1",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordEventStrictValidationRejects(t *testing.T) {
	svc, st, _, _ := setup(t)
	_, err := svc.RecordEvent(context.Background(), service.RecordEventRequest{
		BatchID:       "B1",
		CertificateID: "CERT-1",
		EventType:     "SPRAYED", // outside the enum
		Actor:         "farmer1",
	})
	assert.Error(t, err)

	events, listErr := st.ListEventsByCertificate(context.Background(), "CERT-1")
	assert.NoError(t, listErr)
	assert.Empty(t, events)

	// the same event passes with validation skipped: defaulting, not rejection
	res, err := svc.RecordEvent(context.Background(), service.RecordEventRequest{
		BatchID:        "B1",
		CertificateID:  "CERT-1",
		EventType:      "SPRAYED",
		Actor:          "farmer1",
		SkipValidation: true,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, res.Hash)
}

func TestRecordEventSurvivesAnchorFailure(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := st.CreateCertificate(context.Background(), models.Certificate{CertificateID: "CERT-1", OwnerAddress: "0xabc"})
	assert.NoError(t, err)
	pub := &capturedPublisher{}
	svc := service.New(st, nil, failingLedger{}, pub)

	res, err := svc.RecordEvent(context.Background(), service.RecordEventRequest{
		BatchID:       "B1",
		CertificateID: "CERT-1",
		EventType:     models.EventCreated,
		Actor:         "farmer1",
	})
	assert.NoError(t, err)
	assert.False(t, res.Anchored)

	events, err := st.ListEventsByCertificate(context.Background(), "CERT-1")
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Len(t, pub.envelopes, 1)
	assert.False(t, pub.envelopes[0].Anchored)
}

func TestIssueCertificateWithBase64Document(t *testing.T) {
	st := store.NewMemoryStore()
	blobs := blob.NewMemoryStore()
	svc := service.New(st, blobs, nil, nil)

	cert, err := svc.IssueCertificate(context.Background(), service.IssueCertificateRequest{
		CertificateID: "CERT-9",
		OwnerAddress:  "0xdef",
		Meta:          models.CertificateMeta{PolicyAccepted: true, BatchID: "B9"},
		Document: &service.DocumentUpload{
			Filename:        "cert.pdf",
			Content:         "aGVsbG8=", // "hello"
			ContentEncoding: "base64",
			ContentType:     "application/pdf",
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, "certs/CERT-9/cert.pdf", cert.S3Key)
	assert.Equal(t, hashing.HashBytes([]byte("hello")), cert.SHA256)

	body, err := blobs.ReadBytes(context.Background(), cert.S3Key)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
}

func TestIssueCertificateRejectsUnknownEncoding(t *testing.T) {
	svc := service.New(store.NewMemoryStore(), blob.NewMemoryStore(), nil, nil)
	_, err := svc.IssueCertificate(context.Background(), service.IssueCertificateRequest{
		CertificateID: "CERT-9",
		OwnerAddress:  "0xdef",
		Document:      &service.DocumentUpload{Content: "x", ContentEncoding: "hex"},
	})
	assert.Error(t, err)
}
