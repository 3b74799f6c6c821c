package domain

import (
	"time"
)

// SessionKey identifica una sesión canónica de trading.
type SessionKey string

const (
	SessionTokyo           SessionKey = "tokyo"
	SessionLondon          SessionKey = "london"
	SessionNewYorkAM       SessionKey = "new_york_am"
	SessionNewYorkPM       SessionKey = "new_york_pm"
	SessionOverlapLondonNY SessionKey = "overlap_london_ny"
	SessionOffHours        SessionKey = "off_hours"
)

// SessionWindow define una ventana de sesión en la zona horaria nombrada.
//
// Los límites se expresan como wall-clock de la zona (con sus reglas DST, no
// un offset fijo). Si start > end la ventana cruza medianoche.
type SessionWindow struct {
	Key         SessionKey `yaml:"key" json:"key"`
	StartHour   int        `yaml:"start_hour" json:"start_hour"`
	StartMinute int        `yaml:"start_minute" json:"start_minute"`
	EndHour     int        `yaml:"end_hour" json:"end_hour"`
	EndMinute   int        `yaml:"end_minute" json:"end_minute"`
	Timezone    string     `yaml:"timezone" json:"timezone"`
	IsActive    bool       `yaml:"is_active" json:"is_active"`
}

// SessionTable es una lista ordenada de ventanas: el orden codifica la
// prioridad ante ventanas solapadas (gana la primera que matchea).
type SessionTable []SessionWindow

// DefaultSessionTable es la tabla built-in, definida en hora del este de
// EE.UU. Una tabla custom provista por el caller reemplaza lista y orden
// completos, no se mergea.
var DefaultSessionTable = SessionTable{
	{Key: SessionOverlapLondonNY, StartHour: 8, EndHour: 12, Timezone: "America/New_York", IsActive: true},
	{Key: SessionNewYorkPM, StartHour: 12, EndHour: 17, Timezone: "America/New_York", IsActive: true},
	{Key: SessionLondon, StartHour: 3, EndHour: 8, Timezone: "America/New_York", IsActive: true},
	{Key: SessionTokyo, StartHour: 19, EndHour: 4, Timezone: "America/New_York", IsActive: true}, // Cruza medianoche
}

// BrokerTimeToUTC convierte un timestamp naive del broker a instante UTC.
//
// Los timestamps de broker son hora local sin zona; el offset es una
// propiedad fija de la cuenta (sin ajuste DST): UTC = local − offset.
func BrokerTimeToUTC(brokerTime time.Time, brokerUTCOffsetHours float64) time.Time {
	local := time.Date(
		brokerTime.Year(), brokerTime.Month(), brokerTime.Day(),
		brokerTime.Hour(), brokerTime.Minute(), brokerTime.Second(),
		brokerTime.Nanosecond(), time.UTC,
	)
	offset := time.Duration(brokerUTCOffsetHours * float64(time.Hour))
	return local.Add(-offset)
}

// SessionFor clasifica un instante UTC contra la tabla de sesiones.
//
// Por cada ventana activa, en orden de tabla, se computa el minuto-del-día
// del instante en la zona de la ventana (respetando DST para ese instante).
// Ventanas con start > end envuelven medianoche: matchean
// [start,1440) ∪ [0,end). Las demás son intervalos semiabiertos [start,end).
// Si ninguna matchea, retorna off_hours.
func SessionFor(utcInstant time.Time, table SessionTable) SessionKey {
	if table == nil {
		table = DefaultSessionTable
	}

	for _, w := range table {
		if !w.IsActive {
			continue
		}

		loc, err := time.LoadLocation(w.Timezone)
		if err != nil {
			// Zona mal configurada: la ventana no puede evaluarse, se salta.
			continue
		}

		local := utcInstant.In(loc)
		minute := local.Hour()*60 + local.Minute()
		start := w.StartHour*60 + w.StartMinute
		end := w.EndHour*60 + w.EndMinute

		if start > end {
			if minute >= start || minute < end {
				return w.Key
			}
		} else if minute >= start && minute < end {
			return w.Key
		}
	}

	return SessionOffHours
}
