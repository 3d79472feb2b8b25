// Package store provides storage backends for lead snapshots, analytics
// events, and the property catalog.
//
// It includes an in-memory store for tests and development plus SQLite and
// PostgreSQL backends selected by DSN at startup.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

// DetectDSNType classifies a DSN as "postgres" or "sqlite". File paths are
// treated as SQLite databases.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option defines a functional option for store configuration.
type Option func(*Opts)

// WithDSN sets the database DSN (file path for SQLite, connection URL for
// PostgreSQL).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// LeadRecord is a persisted lead snapshot keyed by session.
type LeadRecord struct {
	SessionID string         `json:"session_id"`
	Fields    map[string]any `json:"fields"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store is the persistence interface used by the conversation flow, the
// analytics tracker, and the HTTP API.
type Store interface {
	// SaveLead upserts the lead snapshot for a session.
	SaveLead(sessionID string, fields map[string]any) error
	// GetLead returns the snapshot for a session, or nil when absent.
	GetLead(sessionID string) (*LeadRecord, error)
	// ListLeads returns all snapshots ordered by session ID.
	ListLeads() ([]LeadRecord, error)
	// DeleteLead removes the snapshot for a session.
	DeleteLead(sessionID string) error
	// AddEvent appends an analytics event.
	AddEvent(event models.AnalyticsEvent) error
	// GetEvents returns the events for a session in insertion order.
	GetEvents(sessionID string) ([]models.AnalyticsEvent, error)
	// ListProperties returns the property catalog.
	ListProperties() ([]models.Property, error)
	// Close releases underlying resources.
	Close() error
}

// SampleProperties seeds the catalog when no listings exist yet.
var SampleProperties = []models.Property{
	{
		ID: "prop001", Tipo: "departamento", Distrito: "Miraflores",
		Direccion: "Av. Pardo 1234", Precio: 250000, Moneda: "USD",
		Metraje: 85, Habitaciones: 2, Banos: 2, Estacionamientos: 1,
		Descripcion:     "Moderno departamento con vista al mar, cerca a parques y centros comerciales",
		Caracteristicas: []string{"piscina", "terraza", "gimnasio", "seguridad 24/7"},
		Estado:          "En venta",
	},
	{
		ID: "prop002", Tipo: "casa", Distrito: "La Molina",
		Direccion: "Calle Las Palmeras 567", Precio: 420000, Moneda: "USD",
		Metraje: 180, Habitaciones: 4, Banos: 3, Estacionamientos: 2,
		Descripcion:     "Amplia casa familiar en zona residencial exclusiva con amplio jardín",
		Caracteristicas: []string{"jardín", "parrilla", "cuarto de servicio", "sala de estar"},
		Estado:          "En venta",
	},
	{
		ID: "prop003", Tipo: "departamento", Distrito: "San Isidro",
		Direccion: "Calle Los Cedros 789", Precio: 320000, Moneda: "USD",
		Metraje: 110, Habitaciones: 3, Banos: 2, Estacionamientos: 1,
		Descripcion:     "Elegante departamento en el corazón financiero de San Isidro",
		Caracteristicas: []string{"ascensor", "terraza", "lobby", "seguridad 24/7"},
		Estado:          "En venta",
	},
	{
		ID: "prop004", Tipo: "departamento", Distrito: "Barranco",
		Direccion: "Jr. Unión 456", Precio: 190000, Moneda: "USD",
		Metraje: 75, Habitaciones: 2, Banos: 1, Estacionamientos: 1,
		Descripcion:     "Acogedor departamento en zona bohemia, cerca a restaurantes y galerías",
		Caracteristicas: []string{"vista a la calle", "área de lavandería", "closets empotrados"},
		Estado:          "En venta",
	},
	{
		ID: "prop005", Tipo: "casa", Distrito: "Surco",
		Direccion: "Calle Monte Bello 123", Precio: 380000, Moneda: "USD",
		Metraje: 160, Habitaciones: 3, Banos: 2, Estacionamientos: 2,
		Descripcion:     "Casa moderna en condominio cerrado con áreas verdes y seguridad",
		Caracteristicas: []string{"jardín", "terraza", "estudio", "cuarto de servicio"},
		Estado:          "En venta",
	},
}

// InMemoryStore keeps everything in process memory. It is safe for
// concurrent use.
type InMemoryStore struct {
	mu         sync.RWMutex
	leads      map[string]LeadRecord
	events     []models.AnalyticsEvent
	properties []models.Property
}

// NewInMemoryStore creates an in-memory store seeded with the sample
// property catalog.
func NewInMemoryStore() *InMemoryStore {
	props := make([]models.Property, len(SampleProperties))
	copy(props, SampleProperties)
	return &InMemoryStore{
		leads:      make(map[string]LeadRecord),
		properties: props,
	}
}

// SaveLead upserts the lead snapshot for a session.
func (s *InMemoryStore) SaveLead(sessionID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.leads[sessionID] = LeadRecord{SessionID: sessionID, Fields: copied, UpdatedAt: time.Now()}
	return nil
}

// GetLead returns the snapshot for a session, or nil when absent.
func (s *InMemoryStore) GetLead(sessionID string) (*LeadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.leads[sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListLeads returns all snapshots ordered by session ID.
func (s *InMemoryStore) ListLeads() ([]LeadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]LeadRecord, 0, len(s.leads))
	for _, rec := range s.leads {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].SessionID < records[j].SessionID })
	return records, nil
}

// DeleteLead removes the snapshot for a session.
func (s *InMemoryStore) DeleteLead(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leads, sessionID)
	return nil
}

// AddEvent appends an analytics event.
func (s *InMemoryStore) AddEvent(event models.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// GetEvents returns the events for a session in insertion order.
func (s *InMemoryStore) GetEvents(sessionID string) ([]models.AnalyticsEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AnalyticsEvent
	for _, e := range s.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListProperties returns the property catalog.
func (s *InMemoryStore) ListProperties() ([]models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	props := make([]models.Property, len(s.properties))
	copy(props, s.properties)
	return props, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
