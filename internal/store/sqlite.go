// Package store provides storage backends for lead snapshots, analytics
// events, and the property catalog.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database
// directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path to the SQLite database file; missing directories are created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	s := &SQLiteStore{db: db}
	if err := s.seedProperties(); err != nil {
		return nil, err
	}
	return s, nil
}

// seedProperties loads the sample catalog when the properties table is empty.
func (s *SQLiteStore) seedProperties() error {
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
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Tipo, p.Distrito, p.Direccion, p.Precio, p.Moneda, p.Metraje,
			p.Habitaciones, p.Banos, p.Estacionamientos, p.Descripcion, string(caracteristicas), p.Estado)
		if err != nil {
			slog.Error("SQLiteStore seedProperties insert failed", "error", err, "id", p.ID)
			return fmt.Errorf("failed to seed property %s: %w", p.ID, err)
		}
	}
	slog.Debug("SQLiteStore seedProperties succeeded", "count", len(SampleProperties))
	return nil
}

// SaveLead upserts the lead snapshot for a session.
func (s *SQLiteStore) SaveLead(sessionID string, fields map[string]any) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		slog.Error("SQLiteStore SaveLead marshal failed", "error", err, "sessionID", sessionID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO leads (session_id, fields, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)`, sessionID, string(fieldsJSON))
	if err != nil {
		slog.Error("SQLiteStore SaveLead failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to save lead for %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore SaveLead succeeded", "sessionID", sessionID)
	return nil
}

// GetLead returns the snapshot for a session, or nil when absent.
func (s *SQLiteStore) GetLead(sessionID string) (*LeadRecord, error) {
	var rec LeadRecord
	var fieldsJSON string
	err := s.db.QueryRow(`SELECT session_id, fields, updated_at FROM leads WHERE session_id = ?`, sessionID).
		Scan(&rec.SessionID, &fieldsJSON, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLead failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get lead for %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		slog.Error("SQLiteStore GetLead unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &rec, nil
}

// ListLeads returns all snapshots ordered by session ID.
func (s *SQLiteStore) ListLeads() ([]LeadRecord, error) {
	rows, err := s.db.Query(`SELECT session_id, fields, updated_at FROM leads ORDER BY session_id`)
	if err != nil {
		slog.Error("SQLiteStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var records []LeadRecord
	for rows.Next() {
		var rec LeadRecord
		var fieldsJSON string
		if err := rows.Scan(&rec.SessionID, &fieldsJSON, &rec.UpdatedAt); err != nil {
			slog.Error("SQLiteStore ListLeads scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			slog.Error("SQLiteStore ListLeads unmarshal failed", "error", err, "sessionID", rec.SessionID)
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	slog.Debug("SQLiteStore ListLeads succeeded", "count", len(records))
	return records, nil
}

// DeleteLead removes the snapshot for a session.
func (s *SQLiteStore) DeleteLead(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM leads WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteLead failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete lead for %s: %w", sessionID, err)
	}
	return nil
}

// AddEvent appends an analytics event.
func (s *SQLiteStore) AddEvent(event models.AnalyticsEvent) error {
	var payloadJSON string
	if len(event.Payload) > 0 {
		b, err := json.Marshal(event.Payload)
		if err != nil {
			slog.Error("SQLiteStore AddEvent marshal failed", "error", err, "sessionID", event.SessionID)
			return err
		}
		payloadJSON = string(b)
	}
	_, err := s.db.Exec(`
		INSERT INTO events (session_id, event_type, payload, timestamp)
		VALUES (?, ?, ?, ?)`, event.SessionID, event.EventType, payloadJSON, event.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AddEvent failed", "error", err, "sessionID", event.SessionID, "type", event.EventType)
		return fmt.Errorf("failed to insert event for %s: %w", event.SessionID, err)
	}
	slog.Debug("SQLiteStore AddEvent succeeded", "sessionID", event.SessionID, "type", event.EventType)
	return nil
}

// GetEvents returns the events for a session in insertion order.
func (s *SQLiteStore) GetEvents(sessionID string) ([]models.AnalyticsEvent, error) {
	rows, err := s.db.Query(`
		SELECT session_id, event_type, payload, timestamp
		FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore GetEvents query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.AnalyticsEvent
	for rows.Next() {
		var e models.AnalyticsEvent
		var payloadJSON sql.NullString
		if err := rows.Scan(&e.SessionID, &e.EventType, &payloadJSON, &e.Timestamp); err != nil {
			slog.Error("SQLiteStore GetEvents scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if payloadJSON.String != "" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &e.Payload); err != nil {
				slog.Error("SQLiteStore GetEvents unmarshal failed", "error", err, "sessionID", sessionID)
				// Keep the event with an empty payload rather than failing
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
func (s *SQLiteStore) ListProperties() ([]models.Property, error) {
	rows, err := s.db.Query(`
		SELECT id, tipo, distrito, direccion, precio, moneda, metraje, habitaciones, banos, estacionamientos, descripcion, caracteristicas, estado
		FROM properties ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore ListProperties query failed", "error", err)
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var props []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			slog.Error("SQLiteStore ListProperties scan failed", "error", err)
			return nil, err
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate property rows: %w", err)
	}
	return props, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
