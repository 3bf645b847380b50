package models

import (
	"encoding/json"
	"time"
)

// Lifecycle event types anchored to the ledger. The set is open-ended; these
// are the values the strict schema accepts today.
const (
	EventCreated     = "CREATED"
	EventVerified    = "VERIFIED"
	EventCertified   = "CERTIFIED"
	EventTransferred = "TRANSFERRED"
)

// LifecycleEvent is one recorded step in a batch's life. Payload is kept loose
// on purpose: beyond the five hashed fields (gps, pesticides, carbon, notes,
// sha256) actors attach free-form metadata that the scorer reads through
// ordered accessor fallbacks.
type LifecycleEvent struct {
	EventID       string                 `json:"eventId"`
	BatchID       string                 `json:"batchId"`
	CertificateID string                 `json:"certificateID"`
	EventType     string                 `json:"eventType"`
	Actor         string                 `json:"actor"`
	Payload       map[string]interface{} `json:"payload"`
	CreatedAt     int64                  `json:"createdAt"` // ms epoch
}

// CertificateMeta carries issuance metadata used by scoring and verification.
type CertificateMeta struct {
	BatchID        string   `json:"batchId,omitempty"`
	PolicyAccepted bool     `json:"policyAccepted"`
	ExpiresAt      int64    `json:"expiresAt,omitempty"` // ms epoch, 0 = no expiry
	Issuer         string   `json:"issuer,omitempty"`
	Signature      string   `json:"signature,omitempty"`
	CertTypes      []string `json:"certTypes,omitempty"`
}

// Certificate is the issued record binding a batch to an owner. Created once,
// read-only afterwards.
type Certificate struct {
	CertificateID string          `json:"certificateID"`
	OwnerAddress  string          `json:"ownerAddress"`
	S3Key         string          `json:"s3Key,omitempty"`
	SHA256        string          `json:"sha256,omitempty"`
	Meta          CertificateMeta `json:"meta"`
	IssuedAt      time.Time       `json:"issuedAt"`
}

// SavedBatch is a consumer bookmark on a batch.
type SavedBatch struct {
	UserID    string    `json:"userId"`
	BatchID   string    `json:"batchId"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CredibilityBreakdown is the derived, non-persisted score decomposition.
// Each component is an integer in [0,100].
type CredibilityBreakdown struct {
	Ethics         int                `json:"E"`
	Documentation  int                `json:"C"`
	Delivery       int                `json:"D"`
	Sustainability int                `json:"S"`
	Weights        map[string]float64 `json:"weights"`
	CombinedScore  int                `json:"combinedScore"`
}

// DocumentInfo reports the auxiliary document-digest comparison from
// verification. A digest mismatch is informational, never a validity gate.
type DocumentInfo struct {
	Key          *string `json:"key"`
	SHA256       *string `json:"sha256"`
	StoredSHA256 *string `json:"storedSha256"`
}

// OnChainInfo reports the ledger side of a verification.
type OnChainInfo struct {
	BatchID *string  `json:"batchId"`
	Count   int      `json:"count"`
	Hashes  []string `json:"hashes"`
}

// Mismatch records one position where the recomputed and anchored hash
// sequences disagree; the absent side is null.
type Mismatch struct {
	Index      int     `json:"index"`
	Recomputed *string `json:"recomputed"`
	OnChain    *string `json:"onChain"`
}

// VerificationResult is the full verdict for one certificate.
type VerificationResult struct {
	OK          bool         `json:"ok"`
	Valid       bool         `json:"valid"`
	Certificate Certificate  `json:"db"`
	Document    DocumentInfo `json:"s3"`
	Events      EventCount   `json:"events"`
	OnChain     OnChainInfo  `json:"onChain"`
	Mismatches  []Mismatch   `json:"mismatches"`
}

type EventCount struct {
	Count int `json:"count"`
}

// ClonePayload deep-copies an event payload via JSON round-trip so stores can
// hand out events without sharing mutable maps.
func ClonePayload(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}
