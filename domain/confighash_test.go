package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReceivers() []ReceiverConfig {
	return []ReceiverConfig{
		{
			AccountID: "acc-receiver-1",
			Settings:  DefaultReceiverSettings("acc-receiver-1"),
			SymbolMappings: map[string]string{
				"XAUUSD": "GOLD",
			},
		},
	}
}

func TestComputeConfigHash_Deterministic(t *testing.T) {
	h1, err := ComputeConfigHash("acc-master", sampleReceivers())
	require.NoError(t, err)
	h2, err := ComputeConfigHash("acc-master", sampleReceivers())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // SHA-256 hex
}

func TestComputeConfigHash_ChangesWithContent(t *testing.T) {
	base, err := ComputeConfigHash("acc-master", sampleReceivers())
	require.NoError(t, err)

	changed := sampleReceivers()
	changed[0].Settings.RiskValue = 2.0
	h, err := ComputeConfigHash("acc-master", changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, h)

	changed = sampleReceivers()
	changed[0].SymbolMappings["NAS100"] = "USTEC"
	h, err = ComputeConfigHash("acc-master", changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, h)

	h, err = ComputeConfigHash("acc-other-master", sampleReceivers())
	require.NoError(t, err)
	assert.NotEqual(t, base, h)
}

func TestComputeConfigHash_NilReceivers(t *testing.T) {
	h1, err := ComputeConfigHash("acc-master", nil)
	require.NoError(t, err)
	h2, err := ComputeConfigHash("acc-master", []ReceiverConfig{})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
