package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CropCred/cropcred/internal/blob"
	"github.com/CropCred/cropcred/internal/hashing"
	"github.com/CropCred/cropcred/internal/ledger"
	"github.com/CropCred/cropcred/internal/models"
	"github.com/CropCred/cropcred/internal/schema"
	"github.com/CropCred/cropcred/internal/store"
	"github.com/CropCred/cropcred/internal/stream"
)

// Service owns the write paths: recording lifecycle events (store, hash,
// anchor, publish) and issuing certificates (store, document upload).
type Service struct {
	store     store.Store
	blobs     blob.Store
	ledger    ledger.Client
	publisher stream.Publisher
}

// New builds a Service. blobs, ledgerClient and publisher may be nil; the
// corresponding steps are skipped.
func New(st store.Store, blobs blob.Store, ledgerClient ledger.Client, publisher stream.Publisher) *Service {
	return &Service{store: st, blobs: blobs, ledger: ledgerClient, publisher: publisher}
}

type RecordEventRequest struct {
	BatchID       string                 `json:"batchId"`
	CertificateID string                 `json:"certificateID"`
	EventType     string                 `json:"eventType"`
	Actor         string                 `json:"actor"`
	Payload       map[string]interface{} `json:"payload"`
	CreatedAt     int64                  `json:"createdAt"`
	// SkipValidation bypasses the strict schema pre-pass. Hashing itself
	// never rejects input; this only controls whether malformed events are
	// turned away before they are stored and anchored.
	SkipValidation bool `json:"skipValidation,omitempty"`
}

type RecordEventResult struct {
	Event    models.LifecycleEvent `json:"event"`
	Hash     string                `json:"hash"`
	Anchored bool                  `json:"anchored"`
}

// RecordEvent appends an event to the batch timeline and anchors its
// canonical hash. A failed anchor does not lose the stored event; the result
// reports anchored=false and the caller can re-anchor later.
func (s *Service) RecordEvent(ctx context.Context, req RecordEventRequest) (RecordEventResult, error) {
	if req.BatchID == "" || req.CertificateID == "" {
		return RecordEventResult{}, fmt.Errorf("batchId and certificateID required")
	}
	if req.EventType == "" || req.Actor == "" {
		return RecordEventResult{}, fmt.Errorf("eventType and actor required")
	}
	if _, err := s.store.GetCertificate(ctx, req.CertificateID); err != nil {
		return RecordEventResult{}, err
	}

	ev := models.LifecycleEvent{
		EventID:       uuid.NewString(),
		BatchID:       req.BatchID,
		CertificateID: req.CertificateID,
		EventType:     req.EventType,
		Actor:         req.Actor,
		Payload:       req.Payload,
		CreatedAt:     req.CreatedAt,
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().UnixMilli()
	}
	if !req.SkipValidation {
		if err := schema.ValidateEvent(ev); err != nil {
			return RecordEventResult{}, err
		}
	}

	stored, err := s.store.AppendEvent(ctx, ev)
	if err != nil {
		return RecordEventResult{}, fmt.Errorf("append event: %w", err)
	}

	hash := hashing.HashEvent(stored)
	anchored := false
	if s.ledger != nil {
		if err := s.ledger.AnchorEvent(ctx, stored.BatchID, hash); err != nil {
			log.Printf("event %s: anchor failed, stored unanchored: %v", stored.EventID, err)
		} else {
			anchored = true
		}
	}

	if s.publisher != nil {
		env := stream.Envelope{
			EventID:       stored.EventID,
			BatchID:       stored.BatchID,
			CertificateID: stored.CertificateID,
			EventType:     stored.EventType,
			Actor:         stored.Actor,
			Hash:          hash,
			Anchored:      anchored,
			CreatedAt:     stored.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, env); err != nil {
			log.Printf("event %s: stream publish failed: %v", stored.EventID, err)
		}
	}

	return RecordEventResult{Event: stored, Hash: hash, Anchored: anchored}, nil
}

// DocumentUpload carries the optional certificate document. ContentEncoding
// is explicit ("base64" or "utf8"); the content is never sniffed.
type DocumentUpload struct {
	Filename        string `json:"filename"`
	Content         string `json:"content"`
	ContentEncoding string `json:"contentEncoding"`
	ContentType     string `json:"contentType"`
}

type IssueCertificateRequest struct {
	CertificateID string                 `json:"certificateID"`
	OwnerAddress  string                 `json:"ownerAddress"`
	Meta          models.CertificateMeta `json:"meta"`
	Document      *DocumentUpload        `json:"document,omitempty"`
}

// IssueCertificate stores a certificate and, when a document is attached,
// uploads it under certs/<certificateID>/ and records its sha256.
func (s *Service) IssueCertificate(ctx context.Context, req IssueCertificateRequest) (models.Certificate, error) {
	if req.CertificateID == "" || req.OwnerAddress == "" {
		return models.Certificate{}, fmt.Errorf("certificateID and ownerAddress required")
	}

	cert := models.Certificate{
		CertificateID: req.CertificateID,
		OwnerAddress:  req.OwnerAddress,
		Meta:          req.Meta,
		IssuedAt:      time.Now().UTC(),
	}

	if req.Document != nil {
		body, err := decodeDocument(req.Document)
		if err != nil {
			return models.Certificate{}, err
		}
		if s.blobs == nil {
			return models.Certificate{}, fmt.Errorf("document upload not configured")
		}
		filename := req.Document.Filename
		if filename == "" {
			filename = "document.pdf"
		}
		key := path.Join("certs", req.CertificateID, filename)
		contentType := req.Document.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := s.blobs.Put(ctx, key, body, contentType); err != nil {
			return models.Certificate{}, fmt.Errorf("store document: %w", err)
		}
		cert.S3Key = key
		cert.SHA256 = hashing.HashBytes(body)
	}

	return s.store.CreateCertificate(ctx, cert)
}

func decodeDocument(doc *DocumentUpload) ([]byte, error) {
	switch strings.ToLower(doc.ContentEncoding) {
	case "base64":
		body, err := base64.StdEncoding.DecodeString(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("decode base64 document: %w", err)
		}
		return body, nil
	case "utf8", "":
		return []byte(doc.Content), nil
	default:
		return nil, fmt.Errorf("unsupported contentEncoding %q", doc.ContentEncoding)
	}
}
