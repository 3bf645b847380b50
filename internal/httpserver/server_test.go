package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/CropCred/cropcred/internal/blob"
	"github.com/CropCred/cropcred/internal/config"
	"github.com/CropCred/cropcred/internal/hashing"
	"github.com/CropCred/cropcred/internal/httpserver"
	"github.com/CropCred/cropcred/internal/ledger"
	"github.com/CropCred/cropcred/internal/models"
	"github.com/CropCred/cropcred/internal/score"
	"github.com/CropCred/cropcred/internal/service"
	"github.com/CropCred/cropcred/internal/store"
	"github.com/CropCred/cropcred/internal/verify"
)

const testSecret = "test-secret"

type env struct {
	router http.Handler
	store  *store.MemoryStore
	ledger *ledger.StaticClient
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryStore()
	blobs := blob.NewMemoryStore()
	lc := ledger.NewStaticClient()
	svc := service.New(st, blobs, lc, nil)
	verifier := verify.New(st, blobs, lc)
	scorer := score.New(score.DefaultWeights())
	cfg := config.Config{JWTSecret: testSecret}
	server := httpserver.New(cfg, svc, verifier, scorer, st)
	return &env{router: server.Router(), store: st, ledger: lc}
}

func (e *env) token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return token
}

func (e *env) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func seedCert(t *testing.T, e *env) {
	t.Helper()
	_, err := e.store.CreateCertificate(context.Background(), models.Certificate{
		CertificateID: "CERT-1",
		OwnerAddress:  "0xabc",
		Meta:          models.CertificateMeta{PolicyAccepted: true, BatchID: "B1"},
	})
	assert.NoError(t, err)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyNotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/verify/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "cert_not_found", body["error"])
}

func TestVerifyMatchingTimeline(t *testing.T) {
	e := newEnv(t)
	seedCert(t, e)
	ev, err := e.store.AppendEvent(context.Background(), models.LifecycleEvent{
		BatchID:       "B1",
		CertificateID: "CERT-1",
		EventType:     models.EventCreated,
		Actor:         "farmer1",
		CreatedAt:     1700000000000,
	})
	assert.NoError(t, err)
	e.ledger.Seed("B1", []string{hashing.HashEvent(ev)})

	rec := e.do(t, http.MethodGet, "/verify/CERT-1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.VerificationResult
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.OK)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Mismatches)
	assert.Equal(t, "B1", *result.OnChain.BatchID)
}

func TestCredibilityResponseShape(t *testing.T) {
	e := newEnv(t)
	seedCert(t, e)

	rec := e.do(t, http.MethodGet, "/credibility/CERT-1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		CertificateID    string                      `json:"certificateID"`
		CredibilityScore int                         `json:"credibilityScore"`
		Breakdown        models.CredibilityBreakdown `json:"breakdown"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CERT-1", body.CertificateID)
	assert.Equal(t, 70, body.Breakdown.Ethics)
	assert.Equal(t, 50, body.Breakdown.Delivery)
	assert.Equal(t, 50, body.Breakdown.Sustainability)
	assert.GreaterOrEqual(t, body.CredibilityScore, 0)
	assert.LessOrEqual(t, body.CredibilityScore, 100)
}

func TestCredibilityNotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/credibility/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordEventRequiresToken(t *testing.T) {
	e := newEnv(t)
	seedCert(t, e)
	rec := e.do(t, http.MethodPost, "/farmer/events", "", service.RecordEventRequest{
		BatchID: "B1", CertificateID: "CERT-1", EventType: models.EventCreated, Actor: "farmer1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecordEventRoundTripsThroughVerify(t *testing.T) {
	e := newEnv(t)
	seedCert(t, e)
	token := e.token(t, jwt.MapClaims{"sub": "farmer1", "role": "farmer"})

	rec := e.do(t, http.MethodPost, "/farmer/events", token, service.RecordEventRequest{
		BatchID:       "B1",
		CertificateID: "CERT-1",
		EventType:     models.EventCreated,
		Payload:       map[string]interface{}{"gps": "59.3293, 18.0686"},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var result service.RecordEventResult
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Anchored)
	assert.Equal(t, "farmer1", result.Event.Actor) // actor defaults to token subject

	verifyRec := e.do(t, http.MethodGet, "/verify/CERT-1", "", nil)
	assert.Equal(t, http.StatusOK, verifyRec.Code)
	var vr models.VerificationResult
	assert.NoError(t, json.Unmarshal(verifyRec.Body.Bytes(), &vr))
	assert.True(t, vr.Valid)
}

func TestIssueCertificateEndpoint(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, jwt.MapClaims{"sub": "farmer1"})
	rec := e.do(t, http.MethodPost, "/farmer/certificates", token, service.IssueCertificateRequest{
		CertificateID: "CERT-2",
		OwnerAddress:  "0xbeef",
		Meta:          models.CertificateMeta{PolicyAccepted: true},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	stored, err := e.store.GetCertificate(context.Background(), "CERT-2")
	assert.NoError(t, err)
	assert.Equal(t, "0xbeef", stored.OwnerAddress)
}

func TestMyCertsFiltersByOwner(t *testing.T) {
	e := newEnv(t)
	seedCert(t, e)
	token := e.token(t, jwt.MapClaims{"sub": "consumer1", "ownerAddress": "0xABC"})

	rec := e.do(t, http.MethodGet, "/consumer/my-certs", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int                  `json:"count"`
		Items []models.Certificate `json:"items"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "CERT-1", body.Items[0].CertificateID)
}

func TestSavedBatchFlow(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, jwt.MapClaims{"sub": "consumer1"})

	rec := e.do(t, http.MethodPost, "/consumer/saved/batch", token, map[string]string{"batchId": "B1", "note": "looks good"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/consumer/saved", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var listBody struct {
		Items []models.SavedBatch `json:"items"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listBody))
	assert.Len(t, listBody.Items, 1)
	assert.Equal(t, "looks good", listBody.Items[0].Note)

	rec = e.do(t, http.MethodDelete, "/consumer/saved/batch/B1", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/consumer/saved", token, nil)
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listBody))
	assert.Empty(t, listBody.Items)
}

func TestBatchEventsPublicTimeline(t *testing.T) {
	e := newEnv(t)
	seedCert(t, e)
	_, err := e.store.AppendEvent(context.Background(), models.LifecycleEvent{
		BatchID: "B1", CertificateID: "CERT-1", EventType: models.EventCreated, Actor: "farmer1", CreatedAt: 1,
	})
	assert.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/batches/B1/events", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count  int                     `json:"count"`
		Events []models.LifecycleEvent `json:"events"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}
