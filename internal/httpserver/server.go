package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CropCred/cropcred/internal/auth"
	"github.com/CropCred/cropcred/internal/config"
	"github.com/CropCred/cropcred/internal/models"
	"github.com/CropCred/cropcred/internal/score"
	"github.com/CropCred/cropcred/internal/service"
	"github.com/CropCred/cropcred/internal/store"
	"github.com/CropCred/cropcred/internal/verify"
)

type Server struct {
	cfg      config.Config
	service  *service.Service
	verifier *verify.Verifier
	scorer   *score.Scorer
	store    store.Store
}

func New(cfg config.Config, svc *service.Service, verifier *verify.Verifier, scorer *score.Scorer, st store.Store) *Server {
	return &Server{cfg: cfg, service: svc, verifier: verifier, scorer: scorer, store: st}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/verify/{certificateID}", s.handleVerify)
	r.Get("/credibility/{certificateID}", s.handleCredibility)
	r.Get("/batches/{batchId}/events", s.handleBatchEvents)

	r.Route("/farmer", func(r chi.Router) {
		r.Use(auth.RequireToken([]byte(s.cfg.JWTSecret)))
		r.Post("/events", s.handleRecordEvent)
		r.Post("/certificates", s.handleIssueCertificate)
	})

	r.Route("/consumer", func(r chi.Router) {
		r.Use(auth.RequireToken([]byte(s.cfg.JWTSecret)))
		r.Get("/my-certs", s.handleMyCerts)
		r.Post("/saved/batch", s.handleSaveBatch)
		r.Get("/saved", s.handleListSaved)
		r.Delete("/saved/batch/{batchId}", s.handleDeleteSaved)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if err := s.store.Ping(ctx); err != nil {
		status["ok"] = false
		status["db"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	certificateID := chi.URLParam(r, "certificateID")
	result, err := s.verifier.Verify(r.Context(), certificateID)
	if err != nil {
		if errors.Is(err, verify.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]interface{}{"ok": false, "error": "cert_not_found"})
			return
		}
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"ok": false, "error": "verify_failed", "detail": err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCredibility(w http.ResponseWriter, r *http.Request) {
	certificateID := chi.URLParam(r, "certificateID")
	cert, err := s.store.GetCertificate(r.Context(), certificateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "cert_not_found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to compute credibility")
		return
	}
	// no events is not an error: the scorer falls back to neutral defaults
	events, err := s.store.ListEventsByCertificate(r.Context(), certificateID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute credibility")
		return
	}
	breakdown := s.scorer.Score(cert, events)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"certificateID":    certificateID,
		"credibilityScore": breakdown.CombinedScore,
		"breakdown":        breakdown,
	})
}

func (s *Server) handleBatchEvents(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchId")
	events, err := s.store.ListEventsByBatch(r.Context(), batchID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch events")
		return
	}
	if events == nil {
		events = []models.LifecycleEvent{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batchId": batchID,
		"count":   len(events),
		"events":  events,
	})
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req service.RecordEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ai := auth.FromContext(r.Context()); ai != nil && req.Actor == "" {
		req.Actor = ai.Subject
	}
	result, err := s.service.RecordEvent(r.Context(), req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "cert_not_found")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req service.IssueCertificateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cert, err := s.service.IssueCertificate(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, cert)
}

func (s *Server) handleMyCerts(w http.ResponseWriter, r *http.Request) {
	ownerAddress := r.URL.Query().Get("ownerAddress")
	if ownerAddress == "" {
		if ai := auth.FromContext(r.Context()); ai != nil {
			ownerAddress = ai.OwnerAddress
		}
	}
	if ownerAddress == "" {
		respondError(w, http.StatusBadRequest, "ownerAddress required")
		return
	}
	certs, err := s.store.ListCertificatesByOwner(r.Context(), ownerAddress)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch certificates")
		return
	}
	if certs == nil {
		certs = []models.Certificate{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"count": len(certs), "items": certs})
}

type saveBatchRequest struct {
	BatchID string `json:"batchId"`
	Note    string `json:"note"`
}

func (s *Server) handleSaveBatch(w http.ResponseWriter, r *http.Request) {
	var req saveBatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BatchID == "" {
		respondError(w, http.StatusBadRequest, "batchId required")
		return
	}
	ai := auth.FromContext(r.Context())
	if ai == nil || ai.Subject == "" {
		respondError(w, http.StatusUnauthorized, "subject required")
		return
	}
	saved, err := s.store.SaveBatch(r.Context(), models.SavedBatch{
		UserID:  ai.Subject,
		BatchID: req.BatchID,
		Note:    req.Note,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "save failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "saved": saved})
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	ai := auth.FromContext(r.Context())
	if ai == nil || ai.Subject == "" {
		respondError(w, http.StatusUnauthorized, "subject required")
		return
	}
	items, err := s.store.ListSavedBatches(r.Context(), ai.Subject)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if items == nil {
		items = []models.SavedBatch{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	ai := auth.FromContext(r.Context())
	if ai == nil || ai.Subject == "" {
		respondError(w, http.StatusUnauthorized, "subject required")
		return
	}
	if err := s.store.DeleteSavedBatch(r.Context(), ai.Subject, chi.URLParam(r, "batchId")); err != nil {
		respondError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
