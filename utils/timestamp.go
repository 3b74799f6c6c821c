package utils

import "time"

// ElapsedMsSince retorna los milisegundos transcurridos desde start. Usado
// para medir latencias de requests en la superficie HTTP.
func ElapsedMsSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
