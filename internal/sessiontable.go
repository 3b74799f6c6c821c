package internal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xKoRx/mirror/domain"
)

// sessionTableFile es el formato YAML de una tabla de sesiones custom.
//
// Ejemplo:
//
//	windows:
//	  - key: tokyo
//	    start_hour: 9
//	    end_hour: 15
//	    timezone: Asia/Tokyo
//	    is_active: true
type sessionTableFile struct {
	Windows []domain.SessionWindow `yaml:"windows"`
}

// LoadSessionTable carga una tabla de sesiones desde un archivo YAML.
//
// La tabla cargada reemplaza por completo a la built-in (lista y orden).
// Path vacío retorna nil, que los clasificadores interpretan como tabla
// default.
func LoadSessionTable(path string) (domain.SessionTable, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session table file: %w", err)
	}

	var file sessionTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse session table file: %w", err)
	}
	if len(file.Windows) == 0 {
		return nil, fmt.Errorf("session table file %s has no windows", path)
	}

	for i, w := range file.Windows {
		if w.Key == "" {
			return nil, fmt.Errorf("session window %d has empty key", i)
		}
		if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 24 {
			return nil, fmt.Errorf("session window %s has hours out of range", w.Key)
		}
		if w.StartMinute < 0 || w.StartMinute > 59 || w.EndMinute < 0 || w.EndMinute > 59 {
			return nil, fmt.Errorf("session window %s has minutes out of range", w.Key)
		}
		if _, err := time.LoadLocation(w.Timezone); err != nil {
			return nil, fmt.Errorf("session window %s has invalid timezone %q: %w", w.Key, w.Timezone, err)
		}
	}

	return domain.SessionTable(file.Windows), nil
}
