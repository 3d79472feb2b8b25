// Package store provides storage backends for lead snapshots, analytics
// events, and the property catalog.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN
// (a postgres:// connection URL).
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	s := &PostgresStore{db: db}
	if err := s.seedProperties(); err != nil {
		return nil, err
	}
	return s, nil
}

// seedProperties loads the sample catalog when the properties table is empty.
func (s *PostgresStore) seedProperties() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM properties`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count properties: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, p := range SampleProperties {
		caracteristicas, err := json.Marshal(p.Caracteristicas)
		if err != nil {
			return err
		}
		_, err = s.db.Exec(`
			INSERT INTO properties (id, tipo, distrito, direccion, precio, moneda, metraje, habitaciones, banos, estacionamientos, descripcion, caracteristicas, estado)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			p.ID, p.Tipo, p.Distrito, p.Direccion, p.Precio, p.Moneda, p.Metraje,
			p.Habitaciones, p.Banos, p.Estacionamientos, p.Descripcion, string(caracteristicas), p.Estado)
		if err != nil {
			slog.Error("PostgresStore seedProperties insert failed", "error", err, "id", p.ID)
			return fmt.Errorf("failed to seed property %s: %w", p.ID, err)
		}
	}
	slog.Debug("PostgresStore seedProperties succeeded", "count", len(SampleProperties))
	return nil
}

// SaveLead upserts the lead snapshot for a session.
func (s *PostgresStore) SaveLead(sessionID string, fields map[string]any) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		slog.Error("PostgresStore SaveLead marshal failed", "error", err, "sessionID", sessionID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO leads (session_id, fields, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()`,
		sessionID, string(fieldsJSON))
	if err != nil {
		slog.Error("PostgresStore SaveLead failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to save lead for %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore SaveLead succeeded", "sessionID", sessionID)
	return nil
}

// GetLead returns the snapshot for a session, or nil when absent.
func (s *PostgresStore) GetLead(sessionID string) (*LeadRecord, error) {
	var rec LeadRecord
	var fieldsJSON string
	err := s.db.QueryRow(`SELECT session_id, fields, updated_at FROM leads WHERE session_id = $1`, sessionID).
		Scan(&rec.SessionID, &fieldsJSON, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLead failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get lead for %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		slog.Error("PostgresStore GetLead unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &rec, nil
}

// ListLeads returns all snapshots ordered by session ID.
func (s *PostgresStore) ListLeads() ([]LeadRecord, error) {
	rows, err := s.db.Query(`SELECT session_id, fields, updated_at FROM leads ORDER BY session_id`)
	if err != nil {
		slog.Error("PostgresStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var records []LeadRecord
	for rows.Next() {
		var rec LeadRecord
		var fieldsJSON string
		if err := rows.Scan(&rec.SessionID, &fieldsJSON, &rec.UpdatedAt); err != nil {
			slog.Error("PostgresStore ListLeads scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			slog.Error("PostgresStore ListLeads unmarshal failed", "error", err, "sessionID", rec.SessionID)
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return records, nil
}

// DeleteLead removes the snapshot for a session.
func (s *PostgresStore) DeleteLead(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM leads WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteLead failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete lead for %s: %w", sessionID, err)
	}
	return nil
}

// AddEvent appends an analytics event.
func (s *PostgresStore) AddEvent(event models.AnalyticsEvent) error {
	var payloadJSON any
	if len(event.Payload) > 0 {
		b, err := json.Marshal(event.Payload)
		if err != nil {
			slog.Error("PostgresStore AddEvent marshal failed", "error", err, "sessionID", event.SessionID)
			return err
		}
		payloadJSON = string(b)
	}
	_, err := s.db.Exec(`
		INSERT INTO events (session_id, event_type, payload, timestamp)
		VALUES ($1, $2, $3, $4)`, event.SessionID, event.EventType, payloadJSON, event.Timestamp)
	if err != nil {
		slog.Error("PostgresStore AddEvent failed", "error", err, "sessionID", event.SessionID, "type", event.EventType)
		return fmt.Errorf("failed to insert event for %s: %w", event.SessionID, err)
	}
	return nil
}

// GetEvents returns the events for a session in insertion order.
func (s *PostgresStore) GetEvents(sessionID string) ([]models.AnalyticsEvent, error) {
	rows, err := s.db.Query(`
		SELECT session_id, event_type, payload, timestamp
		FROM events WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		slog.Error("PostgresStore GetEvents query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.AnalyticsEvent
	for rows.Next() {
		var e models.AnalyticsEvent
		var payloadJSON sql.NullString
		if err := rows.Scan(&e.SessionID, &e.EventType, &payloadJSON, &e.Timestamp); err != nil {
			slog.Error("PostgresStore GetEvents scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if payloadJSON.String != "" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &e.Payload); err != nil {
				e.Payload = nil
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	return events, nil
}

// ListProperties returns the property catalog.
func (s *PostgresStore) ListProperties() ([]models.Property, error) {
	rows, err := s.db.Query(`
		SELECT id, tipo, distrito, direccion, precio, moneda, metraje, habitaciones, banos, estacionamientos, descripcion, caracteristicas, estado
		FROM properties ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore ListProperties query failed", "error", err)
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var props []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			slog.Error("PostgresStore ListProperties scan failed", "error", err)
			return nil, err
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate property rows: %w", err)
	}
	return props, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
