package domain

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"
)

// hashableConfig es la proyección del snapshot que participa del hash:
// identidad del master y lista ordenada de receivers. Version y GeneratedAt
// quedan explícitamente afuera para que dos fetch de configuración idéntica
// produzcan el mismo hash aunque cambie el timestamp.
type hashableConfig struct {
	MasterAccountID string           `json:"master_account_id"`
	Receivers       []ReceiverConfig `json:"receivers"`
}

// ComputeConfigHash calcula el hash estable de contenido de una
// configuración de copiado: SHA-256 sobre la serialización JSON canónica
// (campos en orden de struct, claves de mapa ordenadas).
//
// Una terminal que pollea compara este hash contra el último aplicado y se
// saltea la re-aplicación si no cambió.
func ComputeConfigHash(masterAccountID string, receivers []ReceiverConfig) (string, error) {
	if receivers == nil {
		receivers = []ReceiverConfig{}
	}

	payload, err := json.Marshal(hashableConfig{
		MasterAccountID: masterAccountID,
		Receivers:       receivers,
	})
	if err != nil {
		return "", WrapError(ErrUnknown, "failed to serialize config for hashing", err)
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
