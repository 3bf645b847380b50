package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/CropCred/cropcred/internal/models"
)

// HashEvent canonicalizes the event and digests it with SHA-256, returning
// "0x" + 64 lowercase hex characters. Deterministic and side-effect free.
func HashEvent(e models.LifecycleEvent) string {
	return HashCanonical(Encode(e))
}

// HashRaw hashes a loosely-shaped event record, canonicalizing it first so the
// result matches HashEvent for the same logical event.
func HashRaw(raw map[string]interface{}) string {
	return HashCanonical(EncodeRaw(raw))
}

// HashCanonical digests an already-canonical event. The fixed struct shape
// pins key order, so plain JSON marshaling is unambiguous here.
func HashCanonical(ce CanonicalEvent) string {
	// Marshal of a pointer-free fixed struct cannot fail.
	b, _ := json.Marshal(ce)
	sum := sha256.Sum256(b)
	return "0x" + hex.EncodeToString(sum[:])
}

// HashBytes digests raw bytes (certificate documents) to a bare lowercase hex
// string, matching the digest stored on the certificate at issuance.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
