// Package verify recomputes a certificate's event hash sequence and compares
// it, position by position, against the hashes anchored on the ledger.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/CropCred/cropcred/internal/blob"
	"github.com/CropCred/cropcred/internal/hashing"
	"github.com/CropCred/cropcred/internal/ledger"
	"github.com/CropCred/cropcred/internal/models"
	"github.com/CropCred/cropcred/internal/store"
)

// ErrNotFound is returned when the certificate does not exist.
var ErrNotFound = store.ErrNotFound

type Verifier struct {
	store  store.Store
	blobs  blob.Store
	ledger ledger.Client
}

// New builds a Verifier. blobs and ledgerClient may be nil; the corresponding
// sub-results degrade to null/empty instead of failing the verdict.
func New(st store.Store, blobs blob.Store, ledgerClient ledger.Client) *Verifier {
	return &Verifier{store: st, blobs: blobs, ledger: ledgerClient}
}

// Verify runs the full comparison for one certificate. Certificate and event
// lookups are hard dependencies; document digest and ledger reads degrade
// gracefully. The comparison is strictly positional: a reordering of
// identical events is invalid.
func (v *Verifier) Verify(ctx context.Context, certificateID string) (models.VerificationResult, error) {
	certificateID = strings.TrimSpace(certificateID)

	cert, err := v.store.GetCertificate(ctx, certificateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.VerificationResult{}, ErrNotFound
		}
		return models.VerificationResult{}, fmt.Errorf("load certificate: %w", err)
	}

	doc := v.resolveDocument(ctx, cert)

	events, err := v.store.ListEventsByCertificate(ctx, certificateID)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("load events: %w", err)
	}

	batchID := resolveBatchID(cert, events)

	localHashes := make([]string, len(events))
	for i, ev := range events {
		localHashes[i] = hashing.HashEvent(ev)
	}

	var chainHashes []string
	if batchID != nil && v.ledger != nil {
		chainHashes, err = v.ledger.GetEventHashes(ctx, *batchID)
		if err != nil {
			log.Printf("verify %s: ledger read degraded: %v", certificateID, err)
			chainHashes = nil
		}
	}
	for i, h := range chainHashes {
		chainHashes[i] = strings.ToLower(h)
	}
	if chainHashes == nil {
		chainHashes = []string{}
	}

	valid := batchID != nil && len(localHashes) == len(chainHashes)
	if valid {
		for i := range localHashes {
			if localHashes[i] != chainHashes[i] {
				valid = false
				break
			}
		}
	}

	return models.VerificationResult{
		OK:          true,
		Valid:       valid,
		Certificate: cert,
		Document:    doc,
		Events:      models.EventCount{Count: len(events)},
		OnChain: models.OnChainInfo{
			BatchID: batchID,
			Count:   len(chainHashes),
			Hashes:  chainHashes,
		},
		Mismatches: diff(localHashes, chainHashes),
	}, nil
}

// resolveDocument finds the certificate's primary document (explicit key
// first, newest object under certs/<id> otherwise) and digests it. Any
// failure here is reported as absent fields, never as a verification error.
func (v *Verifier) resolveDocument(ctx context.Context, cert models.Certificate) models.DocumentInfo {
	doc := models.DocumentInfo{}
	if cert.SHA256 != "" {
		stored := cert.SHA256
		doc.StoredSHA256 = &stored
	}
	if v.blobs == nil {
		return doc
	}

	key := cert.S3Key
	if key == "" {
		found, err := v.blobs.FindLatest(ctx, "certs/"+cert.CertificateID)
		if err != nil {
			if !errors.Is(err, blob.ErrNotFound) {
				log.Printf("verify %s: document lookup degraded: %v", cert.CertificateID, err)
			}
			return doc
		}
		key = found
	}

	body, err := v.blobs.ReadBytes(ctx, key)
	if err != nil {
		log.Printf("verify %s: document read degraded: %v", cert.CertificateID, err)
		return doc
	}
	digest := hashing.HashBytes(body)
	doc.Key = &key
	doc.SHA256 = &digest
	return doc
}

// resolveBatchID prefers an explicit payload value from the earliest event
// carrying one, falls back to that event's own batch field, then to
// certificate metadata. nil means verification cannot reach the ledger.
func resolveBatchID(cert models.Certificate, events []models.LifecycleEvent) *string {
	for _, ev := range events {
		if b, ok := ev.Payload["batchId"].(string); ok && strings.TrimSpace(b) != "" {
			id := strings.TrimSpace(b)
			return &id
		}
	}
	if len(events) > 0 && strings.TrimSpace(events[0].BatchID) != "" {
		id := strings.TrimSpace(events[0].BatchID)
		return &id
	}
	if strings.TrimSpace(cert.Meta.BatchID) != "" {
		id := strings.TrimSpace(cert.Meta.BatchID)
		return &id
	}
	return nil
}

func diff(local, chain []string) []models.Mismatch {
	mismatches := []models.Mismatch{}
	n := len(local)
	if len(chain) > n {
		n = len(chain)
	}
	for i := 0; i < n; i++ {
		var recomputed, onChain *string
		if i < len(local) {
			recomputed = &local[i]
		}
		if i < len(chain) {
			onChain = &chain[i]
		}
		if recomputed != nil && onChain != nil && *recomputed == *onChain {
			continue
		}
		mismatches = append(mismatches, models.Mismatch{Index: i, Recomputed: recomputed, OnChain: onChain})
	}
	return mismatches
}
