package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

// scanProperty scans a Property from sql.Rows. The caracteristicas column
// holds a JSON string array.
func scanProperty(rows *sql.Rows) (models.Property, error) {
	var p models.Property
	var descripcion, caracteristicas sql.NullString
	err := rows.Scan(
		&p.ID, &p.Tipo, &p.Distrito, &p.Direccion, &p.Precio, &p.Moneda,
		&p.Metraje, &p.Habitaciones, &p.Banos, &p.Estacionamientos,
		&descripcion, &caracteristicas, &p.Estado,
	)
	if err != nil {
		return p, fmt.Errorf("scan property failed: %w", err)
	}
	p.Descripcion = descripcion.String
	if caracteristicas.String != "" {
		if err := json.Unmarshal([]byte(caracteristicas.String), &p.Caracteristicas); err != nil {
			// Tolerate a malformed list; the listing itself is still usable
			p.Caracteristicas = nil
		}
	}
	return p, nil
}
