package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CropCred/cropcred/internal/models"
)

var ErrNotFound = errors.New("not found")

// Store is the persistence surface for certificates, lifecycle events and
// consumer bookmarks. Events are append-only; certificates are written once
// (plus the document pointer set after upload) and read-only afterwards.
type Store interface {
	CreateCertificate(ctx context.Context, cert models.Certificate) (models.Certificate, error)
	GetCertificate(ctx context.Context, certificateID string) (models.Certificate, error)
	ListCertificatesByOwner(ctx context.Context, ownerAddress string) ([]models.Certificate, error)
	SetCertificateDocument(ctx context.Context, certificateID, s3Key, sha256 string) error

	AppendEvent(ctx context.Context, ev models.LifecycleEvent) (models.LifecycleEvent, error)
	// ListEventsByCertificate returns the timeline ascending by createdAt.
	// This ordering feeds the hash sequence compared against the ledger.
	ListEventsByCertificate(ctx context.Context, certificateID string) ([]models.LifecycleEvent, error)
	ListEventsByBatch(ctx context.Context, batchID string) ([]models.LifecycleEvent, error)

	SaveBatch(ctx context.Context, saved models.SavedBatch) (models.SavedBatch, error)
	ListSavedBatches(ctx context.Context, userID string) ([]models.SavedBatch, error)
	DeleteSavedBatch(ctx context.Context, userID, batchID string) error

	Ping(ctx context.Context) error
}

type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCertificate(row rowScanner) (models.Certificate, error) {
	var (
		cert   models.Certificate
		s3Key  sql.NullString
		sha    sql.NullString
		metaB  []byte
	)
	if err := row.Scan(&cert.CertificateID, &cert.OwnerAddress, &s3Key, &sha, &metaB, &cert.IssuedAt); err != nil {
		return models.Certificate{}, err
	}
	if s3Key.Valid {
		cert.S3Key = s3Key.String
	}
	if sha.Valid {
		cert.SHA256 = sha.String
	}
	if len(metaB) > 0 {
		if err := json.Unmarshal(metaB, &cert.Meta); err != nil {
			return models.Certificate{}, fmt.Errorf("decode certificate meta: %w", err)
		}
	}
	return cert, nil
}

func scanEvent(row rowScanner) (models.LifecycleEvent, error) {
	var (
		ev       models.LifecycleEvent
		payloadB []byte
	)
	if err := row.Scan(&ev.EventID, &ev.BatchID, &ev.CertificateID, &ev.EventType, &ev.Actor, &payloadB, &ev.CreatedAt); err != nil {
		return models.LifecycleEvent{}, err
	}
	if len(payloadB) > 0 {
		if err := json.Unmarshal(payloadB, &ev.Payload); err != nil {
			return models.LifecycleEvent{}, fmt.Errorf("decode event payload: %w", err)
		}
	}
	return ev, nil
}

func (s *PGStore) CreateCertificate(ctx context.Context, cert models.Certificate) (models.Certificate, error) {
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = time.Now().UTC()
	}
	metaB, err := json.Marshal(cert.Meta)
	if err != nil {
		return models.Certificate{}, fmt.Errorf("encode certificate meta: %w", err)
	}
	const query = `
		INSERT INTO certificates (certificate_id, owner_address, s3_key, sha256, meta, issued_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING certificate_id, owner_address, s3_key, sha256, meta, issued_at
	`
	row := s.db.QueryRowContext(ctx, query,
		cert.CertificateID, cert.OwnerAddress, nullable(cert.S3Key), nullable(cert.SHA256), metaB, cert.IssuedAt)
	out, err := scanCertificate(row)
	if err != nil {
		return models.Certificate{}, fmt.Errorf("insert certificate: %w", err)
	}
	return out, nil
}

func (s *PGStore) GetCertificate(ctx context.Context, certificateID string) (models.Certificate, error) {
	const query = `
		SELECT certificate_id, owner_address, s3_key, sha256, meta, issued_at
		FROM certificates WHERE certificate_id=$1
	`
	cert, err := scanCertificate(s.db.QueryRowContext(ctx, query, certificateID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Certificate{}, ErrNotFound
		}
		return models.Certificate{}, fmt.Errorf("get certificate: %w", err)
	}
	return cert, nil
}

func (s *PGStore) ListCertificatesByOwner(ctx context.Context, ownerAddress string) ([]models.Certificate, error) {
	const query = `
		SELECT certificate_id, owner_address, s3_key, sha256, meta, issued_at
		FROM certificates
		WHERE LOWER(owner_address)=LOWER($1)
		ORDER BY issued_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, ownerAddress)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var certs []models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return certs, nil
}

func (s *PGStore) SetCertificateDocument(ctx context.Context, certificateID, s3Key, sha256 string) error {
	const query = `UPDATE certificates SET s3_key=$2, sha256=$3 WHERE certificate_id=$1`
	res, err := s.db.ExecContext(ctx, query, certificateID, s3Key, sha256)
	if err != nil {
		return fmt.Errorf("set certificate document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) AppendEvent(ctx context.Context, ev models.LifecycleEvent) (models.LifecycleEvent, error) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().UnixMilli()
	}
	payloadB, err := json.Marshal(ev.Payload)
	if err != nil {
		return models.LifecycleEvent{}, fmt.Errorf("encode event payload: %w", err)
	}
	const query = `
		INSERT INTO lifecycle_events (event_id, batch_id, certificate_id, event_type, actor, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING event_id, batch_id, certificate_id, event_type, actor, payload, created_at
	`
	row := s.db.QueryRowContext(ctx, query,
		ev.EventID, ev.BatchID, ev.CertificateID, ev.EventType, ev.Actor, payloadB, ev.CreatedAt)
	out, err := scanEvent(row)
	if err != nil {
		return models.LifecycleEvent{}, fmt.Errorf("insert event: %w", err)
	}
	return out, nil
}

func (s *PGStore) ListEventsByCertificate(ctx context.Context, certificateID string) ([]models.LifecycleEvent, error) {
	const query = `
		SELECT event_id, batch_id, certificate_id, event_type, actor, payload, created_at
		FROM lifecycle_events
		WHERE certificate_id=$1
		ORDER BY created_at ASC, event_id ASC
	`
	return s.listEvents(ctx, query, certificateID)
}

func (s *PGStore) ListEventsByBatch(ctx context.Context, batchID string) ([]models.LifecycleEvent, error) {
	const query = `
		SELECT event_id, batch_id, certificate_id, event_type, actor, payload, created_at
		FROM lifecycle_events
		WHERE batch_id=$1
		ORDER BY created_at ASC, event_id ASC
	`
	return s.listEvents(ctx, query, batchID)
}

func (s *PGStore) listEvents(ctx context.Context, query, arg string) ([]models.LifecycleEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.LifecycleEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *PGStore) SaveBatch(ctx context.Context, saved models.SavedBatch) (models.SavedBatch, error) {
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO saved_batches (user_id, batch_id, note, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id, batch_id) DO UPDATE SET note=EXCLUDED.note
	`
	if _, err := s.db.ExecContext(ctx, query, saved.UserID, saved.BatchID, nullable(saved.Note), saved.CreatedAt); err != nil {
		return models.SavedBatch{}, fmt.Errorf("save batch: %w", err)
	}
	return saved, nil
}

func (s *PGStore) ListSavedBatches(ctx context.Context, userID string) ([]models.SavedBatch, error) {
	const query = `
		SELECT user_id, batch_id, note, created_at
		FROM saved_batches WHERE user_id=$1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list saved batches: %w", err)
	}
	defer rows.Close()

	var out []models.SavedBatch
	for rows.Next() {
		var (
			sb   models.SavedBatch
			note sql.NullString
		)
		if err := rows.Scan(&sb.UserID, &sb.BatchID, &note, &sb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan saved batch: %w", err)
		}
		if note.Valid {
			sb.Note = note.String
		}
		out = append(out, sb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved batches: %w", err)
	}
	return out, nil
}

func (s *PGStore) DeleteSavedBatch(ctx context.Context, userID, batchID string) error {
	const query = `DELETE FROM saved_batches WHERE user_id=$1 AND batch_id=$2`
	if _, err := s.db.ExecContext(ctx, query, userID, batchID); err != nil {
		return fmt.Errorf("delete saved batch: %w", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
