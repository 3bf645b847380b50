package hashing

import (
	"math"
	"strconv"
	"strings"

	"encoding/json"

	"github.com/CropCred/cropcred/internal/models"
)

// CanonicalEvent is the fixed-shape hash input for a lifecycle event. Field
// order is part of the contract: serialization relies on struct order, so the
// same logical event always produces the same bytes.
type CanonicalEvent struct {
	BatchID       string           `json:"batchId"`
	CertificateID string           `json:"certificateID"`
	EventType     string           `json:"eventType"`
	Actor         string           `json:"actor"`
	Payload       CanonicalPayload `json:"payload"`
	CreatedAt     int64            `json:"createdAt"`
}

// CanonicalPayload expands the hashed payload to a fixed sub-shape; absent
// fields serialize as null.
type CanonicalPayload struct {
	GPS        *string  `json:"gps"`
	Pesticides *float64 `json:"pesticides"`
	Carbon     *float64 `json:"carbon"`
	Notes      *string  `json:"notes"`
	SHA256     *string  `json:"sha256"`
}

// Encode maps a lifecycle event onto its canonical shape. It is a total
// function: malformed or missing values are defaulted, never rejected, so
// hashing cannot fail. The exact coercions feed the digest and must not
// change.
func Encode(e models.LifecycleEvent) CanonicalEvent {
	return CanonicalEvent{
		BatchID:       strings.TrimSpace(e.BatchID),
		CertificateID: strings.TrimSpace(e.CertificateID),
		EventType:     strings.TrimSpace(e.EventType),
		Actor:         strings.TrimSpace(e.Actor),
		Payload:       encodePayload(e.Payload),
		CreatedAt:     e.CreatedAt,
	}
}

// EncodeRaw canonicalizes a loosely-shaped record (for example one decoded
// straight from JSON) applying the same defaulting rules, including numeric
// coercion of createdAt.
func EncodeRaw(raw map[string]interface{}) CanonicalEvent {
	return CanonicalEvent{
		BatchID:       coerceString(raw["batchId"]),
		CertificateID: coerceString(raw["certificateID"]),
		EventType:     coerceString(raw["eventType"]),
		Actor:         coerceString(raw["actor"]),
		Payload:       encodePayload(asMap(raw["payload"])),
		CreatedAt:     coerceMillis(raw["createdAt"]),
	}
}

func encodePayload(p map[string]interface{}) CanonicalPayload {
	return CanonicalPayload{
		GPS:        stringPtr(p["gps"]),
		Pesticides: numberPtr(p["pesticides"]),
		Carbon:     numberPtr(p["carbon"]),
		Notes:      stringPtr(p["notes"]),
		SHA256:     stringPtr(p["sha256"]),
	}
}

func asMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}

func coerceString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func stringPtr(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}

func numberPtr(v interface{}) *float64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func coerceMillis(v interface{}) int64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
