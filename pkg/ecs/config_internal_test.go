package ecs

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests use t.Setenv and can't run in parallel.

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("MELEVO_POOL_CAPACITY", "64")
	t.Setenv("MELEVO_LOG_LEVEL", "debug")
	t.Setenv("MELEVO_SEQUENTIAL", "true")
	t.Setenv("MELEVO_MAX_CONCURRENCY", "4")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, Config{PoolCapacity: 64, LogLevel: "debug", Sequential: true, MaxConcurrency: 4}, cfg)

	w := NewWorld(WithConfig(cfg))
	assert.Equal(t, 64, w.Capacity())
	s := NewScheduler(w)
	assert.True(t, s.sequential)
	assert.Equal(t, 4, s.maxConcurrency)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero capacity", key: "MELEVO_POOL_CAPACITY", value: "0"},
		{name: "negative concurrency", key: "MELEVO_MAX_CONCURRENCY", value: "-1"},
		{name: "unknown level", key: "MELEVO_LOG_LEVEL", value: "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("unparsable", func(t *testing.T) {
		t.Setenv("MELEVO_POOL_CAPACITY", "lots")
		_, err := LoadConfig()
		require.Error(t, err)
	})
}
