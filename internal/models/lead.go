// Package models defines the core data structures for Inmobilia AI.
//
// It includes the lead record with its tiered completeness model, routing
// targets, analytics events, and the API request/response types shared
// across modules.
package models

import (
	"time"
)

// LeadStatus represents the lifecycle stage of a lead, derived from field
// completeness. It is recomputed on every mutation and never set directly.
type LeadStatus string

const (
	StatusConversacionIniciada LeadStatus = "ConversacionIniciada"
	StatusPreLead              LeadStatus = "PreLead"
	StatusLead                 LeadStatus = "Lead"
	StatusLeadEnriquecido      LeadStatus = "LeadEnriquecido"
)

// Canonical lead field names. These double as extraction candidate keys and
// as serialized map keys.
const (
	FieldNombre          = "nombre"
	FieldTipoInmueble    = "tipo_inmueble"
	FieldConsentimiento  = "consentimiento"
	FieldCelular         = "celular"
	FieldEmail           = "email"
	FieldDistrito        = "distrito"
	FieldZona            = "zona"
	FieldMetraje         = "metraje"
	FieldHabitaciones    = "habitaciones"
	FieldPresupuestoMin  = "presupuesto_min"
	FieldPresupuestoMax  = "presupuesto_max"
	FieldTipoDocumento   = "tipo_documento"
	FieldNumeroDocumento = "numero_documento"
	FieldTimelineCompra  = "timeline_compra"
)

// FieldContacto is the synthetic missing-field entry reported when neither
// celular nor email is set. Either one satisfies the contact requirement.
const FieldContacto = "contacto"

// TierPolicy assigns lead fields to priority tiers. The assignment is policy,
// not law: deployments may move optional fields between tiers without
// touching the completeness logic.
type TierPolicy struct {
	Mandatory  []string // tier 10: required before the lead counts at all
	Important  []string // tier 9: at least two drive PreLead -> Lead
	Enrichment []string // tier 8: at least two drive Lead -> LeadEnriquecido
	Optional   []string // tier 7: nice to have
}

// DefaultTierPolicy returns the standard tier assignment.
func DefaultTierPolicy() TierPolicy {
	return TierPolicy{
		Mandatory:  []string{FieldNombre, FieldTipoInmueble, FieldConsentimiento},
		Important:  []string{FieldCelular, FieldEmail, FieldDistrito, FieldMetraje},
		Enrichment: []string{FieldHabitaciones, FieldPresupuestoMin, FieldPresupuestoMax},
		Optional:   []string{FieldTipoDocumento, FieldNumeroDocumento, FieldTimelineCompra},
	}
}

// LeadMetadata carries bookkeeping for a lead record.
type LeadMetadata struct {
	FechaCreacion       time.Time  `json:"fecha_creacion"`
	FechaModificacion   time.Time  `json:"fecha_modificacion"`
	FechaConsentimiento *time.Time `json:"fecha_consentimiento,omitempty"`
	UltimaInteraccion   *time.Time `json:"ultima_interaccion,omitempty"`
	Origen              string     `json:"origen,omitempty"`
	UTMSource           string     `json:"utm_source,omitempty"`
	UTMMedium           string     `json:"utm_medium,omitempty"`
	UTMCampaign         string     `json:"utm_campaign,omitempty"`
}

// Lead is the mutable record for one prospect. All business fields are
// optional pointers: nil means the field has never been captured. Once set,
// a field is never overwritten by later extraction (first write wins).
type Lead struct {
	// Tier 10
	Nombre         *string `json:"nombre,omitempty"`
	TipoInmueble   *string `json:"tipo_inmueble,omitempty"`
	Consentimiento *bool   `json:"consentimiento,omitempty"`

	// Tier 9
	Celular  *string `json:"celular,omitempty"`
	Email    *string `json:"email,omitempty"`
	Distrito *string `json:"distrito,omitempty"`
	Metraje  *int    `json:"metraje,omitempty"`

	// Tier 8
	Habitaciones   *int     `json:"habitaciones,omitempty"`
	PresupuestoMin *float64 `json:"presupuesto_min,omitempty"`
	PresupuestoMax *float64 `json:"presupuesto_max,omitempty"`

	// Tier 7 and extras
	Zona            *string `json:"zona,omitempty"`
	TipoDocumento   *string `json:"tipo_documento,omitempty"`
	NumeroDocumento *string `json:"numero_documento,omitempty"`
	TimelineCompra  *string `json:"timeline_compra,omitempty"`

	Estado   LeadStatus   `json:"estado"`
	Metadata LeadMetadata `json:"metadata"`

	policy TierPolicy
}

// NewLead creates an empty lead governed by the given tier policy.
func NewLead(policy TierPolicy) *Lead {
	now := time.Now()
	return &Lead{
		Estado: StatusConversacionIniciada,
		Metadata: LeadMetadata{
			FechaCreacion:     now,
			FechaModificacion: now,
		},
		policy: policy,
	}
}

// Candidates maps lead field names to freshly extracted values. Values are
// typed per field: string, int, float64 or bool. Unknown keys and wrong
// types are ignored on apply.
type Candidates map[string]any

// ApplyExtracted merges extraction candidates into the lead.
//
// A candidate only lands when the field is currently unset and the value is
// non-empty; existing values are never clobbered. After the merge the budget
// pair is normalized so min <= max, a consent transition to true is stamped,
// and the derived status is recomputed.
func (l *Lead) ApplyExtracted(c Candidates) {
	hadConsent := l.Consentimiento != nil && *l.Consentimiento

	for field, value := range c {
		l.setIfUnset(field, value)
	}

	if l.PresupuestoMin != nil && l.PresupuestoMax != nil && *l.PresupuestoMin > *l.PresupuestoMax {
		l.PresupuestoMin, l.PresupuestoMax = l.PresupuestoMax, l.PresupuestoMin
	}

	if !hadConsent && l.Consentimiento != nil && *l.Consentimiento && l.Metadata.FechaConsentimiento == nil {
		now := time.Now()
		l.Metadata.FechaConsentimiento = &now
	}

	l.touch()
}

// GrantConsent marks explicit consent and stamps the consent timestamp.
// Used by the legal handler when an affirmative free-text reply is detected.
func (l *Lead) GrantConsent() {
	if l.Consentimiento != nil && *l.Consentimiento {
		return
	}
	granted := true
	l.Consentimiento = &granted
	now := time.Now()
	l.Metadata.FechaConsentimiento = &now
	l.touch()
}

func (l *Lead) setIfUnset(field string, value any) {
	switch field {
	case FieldNombre:
		setString(&l.Nombre, value)
	case FieldTipoInmueble:
		setString(&l.TipoInmueble, value)
	case FieldConsentimiento:
		if l.Consentimiento == nil {
			if b, ok := value.(bool); ok {
				v := b
				l.Consentimiento = &v
			}
		}
	case FieldCelular:
		setString(&l.Celular, value)
	case FieldEmail:
		setString(&l.Email, value)
	case FieldDistrito:
		setString(&l.Distrito, value)
	case FieldZona:
		setString(&l.Zona, value)
	case FieldMetraje:
		setInt(&l.Metraje, value)
	case FieldHabitaciones:
		setInt(&l.Habitaciones, value)
	case FieldPresupuestoMin:
		setFloat(&l.PresupuestoMin, value)
	case FieldPresupuestoMax:
		setFloat(&l.PresupuestoMax, value)
	case FieldTipoDocumento:
		setString(&l.TipoDocumento, value)
	case FieldNumeroDocumento:
		setString(&l.NumeroDocumento, value)
	case FieldTimelineCompra:
		setString(&l.TimelineCompra, value)
	}
}

func setString(dst **string, value any) {
	if *dst != nil {
		return
	}
	if s, ok := value.(string); ok && s != "" {
		v := s
		*dst = &v
	}
}

func setInt(dst **int, value any) {
	if *dst != nil {
		return
	}
	switch n := value.(type) {
	case int:
		if n > 0 {
			v := n
			*dst = &v
		}
	case float64:
		if n > 0 {
			v := int(n)
			*dst = &v
		}
	}
}

func setFloat(dst **float64, value any) {
	if *dst != nil {
		return
	}
	switch n := value.(type) {
	case float64:
		if n > 0 {
			v := n
			*dst = &v
		}
	case int:
		if n > 0 {
			v := float64(n)
			*dst = &v
		}
	}
}

// touch recomputes the derived status and refreshes modification timestamps.
func (l *Lead) touch() {
	l.Estado = l.computeEstado()
	now := time.Now()
	l.Metadata.FechaModificacion = now
	l.Metadata.UltimaInteraccion = &now
}

// computeEstado derives the lifecycle status from field presence:
// any mandatory field missing keeps ConversacionIniciada; fewer than two
// important fields means PreLead; fewer than two enrichment fields means
// Lead; otherwise the lead is fully enriched.
func (l *Lead) computeEstado() LeadStatus {
	policy := l.effectivePolicy()

	for _, f := range policy.Mandatory {
		if !l.isSet(f) {
			return StatusConversacionIniciada
		}
	}
	if l.countSet(policy.Important) < 2 {
		return StatusPreLead
	}
	if l.countSet(policy.Enrichment) < 2 {
		return StatusLead
	}
	return StatusLeadEnriquecido
}

func (l *Lead) effectivePolicy() TierPolicy {
	if len(l.policy.Mandatory) == 0 {
		return DefaultTierPolicy()
	}
	return l.policy
}

func (l *Lead) countSet(fields []string) int {
	n := 0
	for _, f := range fields {
		if l.isSet(f) {
			n++
		}
	}
	return n
}

func (l *Lead) isSet(field string) bool {
	switch field {
	case FieldNombre:
		return l.Nombre != nil
	case FieldTipoInmueble:
		return l.TipoInmueble != nil
	case FieldConsentimiento:
		return l.Consentimiento != nil
	case FieldCelular:
		return l.Celular != nil
	case FieldEmail:
		return l.Email != nil
	case FieldDistrito:
		return l.Distrito != nil
	case FieldZona:
		return l.Zona != nil
	case FieldMetraje:
		return l.Metraje != nil
	case FieldHabitaciones:
		return l.Habitaciones != nil
	case FieldPresupuestoMin:
		return l.PresupuestoMin != nil
	case FieldPresupuestoMax:
		return l.PresupuestoMax != nil
	case FieldTipoDocumento:
		return l.TipoDocumento != nil
	case FieldNumeroDocumento:
		return l.NumeroDocumento != nil
	case FieldTimelineCompra:
		return l.TimelineCompra != nil
	}
	return false
}

// MissingFields returns the unset field names across all tiers at or above
// minTier (10 = mandatory only, 7 = everything), highest priority first.
// In the important tier, celular and email collapse into a single "contacto"
// entry since either one satisfies the contact requirement.
func (l *Lead) MissingFields(minTier int) []string {
	policy := l.effectivePolicy()
	missing := []string{}

	if minTier <= 10 {
		for _, f := range policy.Mandatory {
			if !l.isSet(f) {
				missing = append(missing, f)
			}
		}
	}
	if minTier <= 9 {
		for _, f := range policy.Important {
			if f == FieldCelular || f == FieldEmail {
				continue
			}
			if !l.isSet(f) {
				missing = append(missing, f)
			}
		}
		if !l.HasContact() {
			missing = append(missing, FieldContacto)
		}
	}
	if minTier <= 8 {
		for _, f := range policy.Enrichment {
			if !l.isSet(f) {
				missing = append(missing, f)
			}
		}
	}
	if minTier <= 7 {
		for _, f := range policy.Optional {
			if !l.isSet(f) {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

// IsCoreComplete reports whether every mandatory field is set and consent
// was actually granted (a recorded refusal does not count).
func (l *Lead) IsCoreComplete() bool {
	policy := l.effectivePolicy()
	for _, f := range policy.Mandatory {
		if !l.isSet(f) {
			return false
		}
	}
	return l.Consentimiento != nil && *l.Consentimiento
}

// HasContact reports whether at least one contact channel is known.
func (l *Lead) HasContact() bool {
	return l.Celular != nil || l.Email != nil
}

// HasConsent reports whether consent was granted.
func (l *Lead) HasConsent() bool {
	return l.Consentimiento != nil && *l.Consentimiento
}

// ToMap serializes the lead into a plain key-value mapping, omitting unset
// fields. This is the persistence snapshot format.
func (l *Lead) ToMap() map[string]any {
	m := map[string]any{}
	putString := func(key string, v *string) {
		if v != nil {
			m[key] = *v
		}
	}
	putString(FieldNombre, l.Nombre)
	putString(FieldTipoInmueble, l.TipoInmueble)
	putString(FieldCelular, l.Celular)
	putString(FieldEmail, l.Email)
	putString(FieldDistrito, l.Distrito)
	putString(FieldZona, l.Zona)
	putString(FieldTipoDocumento, l.TipoDocumento)
	putString(FieldNumeroDocumento, l.NumeroDocumento)
	putString(FieldTimelineCompra, l.TimelineCompra)
	if l.Consentimiento != nil {
		m[FieldConsentimiento] = *l.Consentimiento
	}
	if l.Metraje != nil {
		m[FieldMetraje] = *l.Metraje
	}
	if l.Habitaciones != nil {
		m[FieldHabitaciones] = *l.Habitaciones
	}
	if l.PresupuestoMin != nil {
		m[FieldPresupuestoMin] = *l.PresupuestoMin
	}
	if l.PresupuestoMax != nil {
		m[FieldPresupuestoMax] = *l.PresupuestoMax
	}
	m["estado"] = string(l.Estado)
	if l.Metadata.FechaConsentimiento != nil {
		m["fecha_consentimiento"] = l.Metadata.FechaConsentimiento.Format(time.RFC3339)
	}
	return m
}

// LeadFromMap rebuilds a lead from a persistence snapshot. Numeric values
// may arrive as float64 after a JSON round trip; the typed setters absorb
// that. The estado key is recomputed rather than trusted.
func LeadFromMap(m map[string]any, policy TierPolicy) *Lead {
	l := NewLead(policy)
	for field, value := range m {
		l.setIfUnset(field, value)
	}
	if ts, ok := m["fecha_consentimiento"].(string); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			l.Metadata.FechaConsentimiento = &t
		}
	}
	l.Estado = l.computeEstado()
	return l
}
