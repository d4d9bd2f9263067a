package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsim/engine/internal/registry"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "REDIS_URL", "GEMINI_API_KEY", "GEMINI_MODEL", "NEWS_TIMEOUT", "SIM_SEED", "STARTING_BALANCE"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, 15*time.Second, cfg.NewsTimeout)
	assert.True(t, cfg.StartingBalance.Equal(DefaultStartingBalance))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NEWS_TIMEOUT", "3s")
	t.Setenv("SIM_SEED", "42")
	t.Setenv("STARTING_BALANCE", "2500.50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.NewsTimeout)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, "2500.5", cfg.StartingBalance.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"NEWS_TIMEOUT", "soon"},
		{"NEWS_TIMEOUT", "-1s"},
		{"SIM_SEED", "abc"},
		{"STARTING_BALANCE", "lots"},
		{"STARTING_BALANCE", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDefaultInstruments_BuildRegistry(t *testing.T) {
	r, err := registry.New(DefaultInstruments())
	require.NoError(t, err)
	assert.Equal(t, 6, r.Len())
	assert.Equal(t, []string{"Consumer Goods", "Energy", "Finance", "Healthcare", "Technology"}, r.Sectors())

	tech, ok := r.Get("TECH")
	require.True(t, ok)
	assert.Equal(t, "150.25", tech.Price.StringFixed(2))
	assert.Len(t, tech.History, 3)
}
