package extract

import "strings"

// limaDistricts is the district gazetteer used for location extraction.
// Matching is case- and accent-insensitive; the canonical form is returned.
var limaDistricts = []string{
	"Miraflores", "San Isidro", "Barranco", "San Borja", "Surco", "La Molina",
	"Jesús María", "Lince", "Pueblo Libre", "Magdalena", "San Miguel",
	"Los Olivos", "Independencia", "San Martín de Porres",
	"Villa El Salvador", "San Juan de Miraflores", "Villa María del Triunfo",
	"Ate", "Santa Anita", "Chorrillos", "Breña", "Rímac", "Cercado de Lima",
	"La Victoria", "San Juan de Lurigancho", "Comas", "Carabayllo",
	"San Luis", "El Agustino", "Santa Rosa", "Ancón", "Puente Piedra",
	"Lurigancho", "Pachacámac", "San Bartolo", "Punta Hermosa",
	"Punta Negra", "Santa María del Mar", "Pucusana", "Lurín", "Cieneguilla",
}

// LimaZones maps each metropolitan zone to its districts. Exported so the
// location handler can describe a zone's districts in its replies.
var LimaZones = map[string][]string{
	"lima moderna": {
		"Miraflores", "San Isidro", "Barranco", "San Borja", "Surco", "La Molina",
	},
	"lima centro": {"Jesús María", "Lince", "Pueblo Libre", "Magdalena", "San Miguel"},
	"lima norte": {
		"Los Olivos", "Independencia", "San Martín de Porres", "Comas", "Carabayllo",
	},
	"lima sur": {
		"Villa El Salvador", "San Juan de Miraflores", "Villa María del Triunfo", "Chorrillos",
	},
	"lima este": {"Ate", "Santa Anita", "La Molina", "San Juan de Lurigancho"},
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func fold(s string) string {
	return accentFolder.Replace(strings.ToLower(s))
}

// District returns the canonical district name mentioned in the text, or ""
// when none is found. Longer names are tried first so "San Juan de
// Miraflores" does not match as "Miraflores".
func District(text string) string {
	folded := fold(text)
	best := ""
	for _, d := range limaDistricts {
		if strings.Contains(folded, fold(d)) && len(d) > len(best) {
			best = d
		}
	}
	return best
}

// Zone returns the metropolitan zone mentioned in the text, or "".
func Zone(text string) string {
	folded := fold(text)
	for _, zona := range []string{"lima moderna", "lima centro", "lima norte", "lima sur", "lima este"} {
		if strings.Contains(folded, zona) {
			return zona
		}
	}
	return ""
}

// ZoneOf returns the zone a district belongs to, or "".
func ZoneOf(district string) string {
	for zona, districts := range LimaZones {
		for _, d := range districts {
			if d == district {
				return zona
			}
		}
	}
	return ""
}
