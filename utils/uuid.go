// Package utils provee utilidades comunes para Mirror
package utils

import (
	"github.com/google/uuid"
)

// GenerateUUIDv7 genera un UUID v7 (ordenable por tiempo).
//
// UUIDv7 usa los primeros 48 bits para timestamp Unix ms, seguido de bits
// random, permitiendo orden cronológico en índices de base de datos.
//
// Example:
//
//	id := utils.GenerateUUIDv7()
//	// => "0190b2c4-1a2b-7abc-8def-123456789abc"
func GenerateUUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback a v4 si la fuente de entropía monotónica falla.
		return uuid.NewString()
	}
	return id.String()
}
