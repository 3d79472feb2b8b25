// Package extract turns free-form Spanish user text into typed lead field
// candidates. Extraction is pure and never errors: a field that cannot be
// recognized is simply absent from the result.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

// Peru is the default phone region for parsing.
const phoneRegion = "PE"

var (
	namePattern = regexp.MustCompile(`(?i:me llamo|mi nombre es|soy)\s+([A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+){0,3})`)

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// Candidate digit runs for phone parsing; validation happens with
	// libphonenumber afterwards.
	phoneCandidatePattern = regexp.MustCompile(`\+?\d[\d\s\-]{7,14}\d`)

	roomsPattern   = regexp.MustCompile(`(\d+)\s*(?:habitaciones|habitacion|habitación|dormitorios|dormitorio|cuartos|cuarto|hab\b)`)
	metrajePattern = regexp.MustCompile(`(\d+)\s*(?:m2|m²|metros cuadrados|metros)`)
	dniPattern     = regexp.MustCompile(`(?:dni|documento)[^\d]{0,10}(\d{8})\b`)

	budgetRangePattern = regexp.MustCompile(`entre\s+(?:s/\.?\s*|us?\$\s*)?([\d.,]+)\s*(mil)?\s+y\s+(?:s/\.?\s*|us?\$\s*)?([\d.,]+)\s*(mil)?`)
	budgetMaxPattern   = regexp.MustCompile(`(?:hasta|máximo|maximo|no más de|no mas de|tope de)\s+(?:s/\.?\s*|us?\$\s*)?([\d.,]+)\s*(mil)?`)
	budgetMinPattern   = regexp.MustCompile(`(?:desde|mínimo|minimo|a partir de)\s+(?:s/\.?\s*|us?\$\s*)?([\d.,]+)\s*(mil)?`)
	budgetBarePattern  = regexp.MustCompile(`(?:s/\.?\s*|us?\$\s*)([\d.,]+)\s*(mil)?`)
)

// consentWords are the affirmative replies accepted as explicit consent.
var consentWords = []string{
	"si", "sí", "acepto", "autorizo", "de acuerdo", "ok", "okay",
	"claro", "por supuesto", "adelante",
}

// propertyTypes maps each canonical property type to its trigger keywords.
var propertyTypes = map[string][]string{
	"departamento": {"departamento", "depa", "flat", "apartamento"},
	"casa":         {"casa", "vivienda", "chalet"},
	"oficina":      {"oficina", "local", "comercial"},
	"terreno":      {"terreno", "lote", "parcela"},
}

// timelines maps canonical purchase timelines to trigger keywords.
var timelines = map[string][]string{
	"inmediato": {"inmediato", "ya mismo", "cuanto antes", "urgente", "este mes"},
	"1-3 meses": {"1-3 meses", "un par de meses", "dos meses", "tres meses"},
	"3-6 meses": {"3-6 meses", "medio año", "medio ano", "seis meses"},
	"6+ meses":  {"más adelante", "mas adelante", "el próximo año", "el proximo ano", "fin de año"},
}

// All runs every extractor over the text and returns the combined candidate
// set. Later extractors never overwrite earlier hits for the same field.
func All(text string) models.Candidates {
	c := models.Candidates{}
	put := func(field string, value any) {
		if _, exists := c[field]; !exists {
			c[field] = value
		}
	}

	if name := Name(text); name != "" {
		put(models.FieldNombre, name)
	}
	if email := Email(text); email != "" {
		put(models.FieldEmail, email)
	}
	if phone := Phone(text); phone != "" {
		put(models.FieldCelular, phone)
	}
	if pt := PropertyType(text); pt != "" {
		put(models.FieldTipoInmueble, pt)
	}
	if distrito := District(text); distrito != "" {
		put(models.FieldDistrito, distrito)
	}
	if zona := Zone(text); zona != "" {
		put(models.FieldZona, zona)
	}
	if min, max, ok := Budget(text); ok {
		if min > 0 {
			put(models.FieldPresupuestoMin, min)
		}
		if max > 0 {
			put(models.FieldPresupuestoMax, max)
		}
	}
	if rooms := Rooms(text); rooms > 0 {
		put(models.FieldHabitaciones, rooms)
	}
	if area := FloorArea(text); area > 0 {
		put(models.FieldMetraje, area)
	}
	if tl := Timeline(text); tl != "" {
		put(models.FieldTimelineCompra, tl)
	}
	if dni := DNI(text); dni != "" {
		put(models.FieldTipoDocumento, "dni")
		put(models.FieldNumeroDocumento, dni)
	}
	return c
}

// Name extracts a person name introduced by "me llamo", "soy" or
// "mi nombre es".
func Name(text string) string {
	if m := namePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Email extracts the first well-formed email address.
func Email(text string) string {
	return emailPattern.FindString(text)
}

// Phone extracts the first valid Peruvian mobile number, normalized to E.164.
func Phone(text string) string {
	for _, candidate := range phoneCandidatePattern.FindAllString(text, -1) {
		num, err := phonenumbers.Parse(candidate, phoneRegion)
		if err != nil {
			continue
		}
		if !phonenumbers.IsValidNumber(num) {
			continue
		}
		switch phonenumbers.GetNumberType(num) {
		case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
			return phonenumbers.Format(num, phonenumbers.E164)
		}
	}
	return ""
}

// PropertyType identifies the property type mentioned in the text.
func PropertyType(text string) string {
	lower := strings.ToLower(text)
	for _, canonical := range []string{"departamento", "casa", "oficina", "terreno"} {
		for _, kw := range propertyTypes[canonical] {
			if strings.Contains(lower, kw) {
				return canonical
			}
		}
	}
	return ""
}

// Budget extracts a budget range, upper bound or lower bound. Amounts accept
// thousands separators and a "mil" multiplier. Returns ok=false when no
// amount is present.
func Budget(text string) (min, max float64, ok bool) {
	lower := strings.ToLower(text)

	if m := budgetRangePattern.FindStringSubmatch(lower); m != nil {
		a := parseAmount(m[1], m[2])
		b := parseAmount(m[3], m[4])
		if a > 0 && b > 0 {
			return a, b, true
		}
	}

	found := false
	if m := budgetMaxPattern.FindStringSubmatch(lower); m != nil {
		if v := parseAmount(m[1], m[2]); v > 0 {
			max = v
			found = true
		}
	}
	if m := budgetMinPattern.FindStringSubmatch(lower); m != nil {
		if v := parseAmount(m[1], m[2]); v > 0 {
			min = v
			found = true
		}
	}
	if found {
		return min, max, true
	}

	// A bare amount with an explicit currency marker is treated as the
	// upper bound the user has in mind.
	if m := budgetBarePattern.FindStringSubmatch(lower); m != nil {
		if v := parseAmount(m[1], m[2]); v >= 1000 {
			return 0, v, true
		}
	}
	return 0, 0, false
}

// parseAmount converts "250,000" / "250.000" / "250" + "mil" into a float.
func parseAmount(raw, mil string) float64 {
	cleaned := strings.NewReplacer(",", "", ".", "").Replace(raw)
	// Plain decimals like "2.5" lose their point above; only strip
	// separators when the token looks like a grouped integer.
	if strings.Count(raw, ".") == 1 && len(raw)-strings.Index(raw, ".") <= 3 {
		cleaned = strings.ReplaceAll(raw, ",", "")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	if mil != "" {
		v *= 1000
	}
	return v
}

// Rooms extracts the desired room count.
func Rooms(text string) int {
	if m := roomsPattern.FindStringSubmatch(strings.ToLower(text)); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n
		}
	}
	return 0
}

// FloorArea extracts the desired floor area in square meters.
func FloorArea(text string) int {
	if m := metrajePattern.FindStringSubmatch(strings.ToLower(text)); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n
		}
	}
	return 0
}

// DNI extracts an eight-digit Peruvian national ID when introduced as such.
func DNI(text string) string {
	if m := dniPattern.FindStringSubmatch(strings.ToLower(text)); m != nil {
		return m[1]
	}
	return ""
}

// Timeline identifies the purchase timeline mentioned in the text.
func Timeline(text string) string {
	lower := strings.ToLower(text)
	for _, canonical := range []string{"inmediato", "1-3 meses", "3-6 meses", "6+ meses"} {
		for _, kw := range timelines[canonical] {
			if strings.Contains(lower, kw) {
				return canonical
			}
		}
	}
	return ""
}

// Consent reports whether the text contains an affirmative consent reply.
func Consent(text string) bool {
	lower := strings.ToLower(text)
	words := tokenize(lower)
	for _, w := range consentWords {
		if strings.Contains(w, " ") {
			if strings.Contains(lower, w) {
				return true
			}
			continue
		}
		for _, tok := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		switch r {
		case ' ', ',', '.', ';', ':', '!', '¡', '?', '¿', '\n', '\t':
			return true
		}
		return false
	})
}
