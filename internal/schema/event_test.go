package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CropCred/cropcred/internal/models"
	"github.com/CropCred/cropcred/internal/schema"
)

func validEvent() models.LifecycleEvent {
	return models.LifecycleEvent{
		BatchID:       "B1",
		CertificateID: "CERT-1",
		EventType:     models.EventCreated,
		Actor:         "farmer1",
		Payload: map[string]interface{}{
			"gps":   "59.3293, 18.0686",
			"notes": "harvested at dawn",
		},
		CreatedAt: 1700000000000,
	}
}

func TestValidEventPasses(t *testing.T) {
	assert.NoError(t, schema.ValidateEvent(validEvent()))
}

func TestEventTypeOutsideEnumRejected(t *testing.T) {
	ev := validEvent()
	ev.EventType = "SPRAYED"
	assert.Error(t, schema.ValidateEvent(ev))
}

func TestBatchIDCharactersRestricted(t *testing.T) {
	ev := validEvent()
	ev.BatchID = "batch one!"
	assert.Error(t, schema.ValidateEvent(ev))
}

func TestMalformedGPSRejected(t *testing.T) {
	ev := validEvent()
	ev.Payload["gps"] = "somewhere north"
	assert.Error(t, schema.ValidateEvent(ev))
}

func TestNegativePesticidesRejected(t *testing.T) {
	ev := validEvent()
	ev.Payload["pesticides"] = -1.0
	assert.Error(t, schema.ValidateEvent(ev))
}

func TestExtraPayloadFieldsAllowed(t *testing.T) {
	// scorer metadata (violation, carbonKg, telemetry) rides along unvalidated
	ev := validEvent()
	ev.Payload["violation"] = true
	ev.Payload["carbonKg"] = 320.5
	ev.Payload["weather"] = map[string]interface{}{"severity": "normal"}
	assert.NoError(t, schema.ValidateEvent(ev))
}

func TestNilPayloadValidatesAsEmpty(t *testing.T) {
	ev := validEvent()
	ev.Payload = nil
	assert.NoError(t, schema.ValidateEvent(ev))
}

func TestValidateJSONRejectsGarbage(t *testing.T) {
	assert.Error(t, schema.ValidateJSON([]byte(`{"actor": 42}`)))
}
