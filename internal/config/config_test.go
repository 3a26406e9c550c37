package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "auditecx.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "template", cfg.Narrative.Provider)
	assert.Equal(t, 0.50, cfg.Reconcile.AmountToleranceAbs)
	assert.Equal(t, 0.01, cfg.Reconcile.AmountTolerancePct)
	assert.Equal(t, 1.00, cfg.Reconcile.VarianceThreshold)
	assert.Equal(t, 120, cfg.Orchestra.StepTimeoutSecs)
	assert.Equal(t, 15*time.Minute, cfg.Orchestra.Retention)
	assert.Equal(t, 20, cfg.Simulation.SampleSize)
	assert.Equal(t, 0.25, cfg.Simulation.AnomalyRate)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AUDITECX_LOG_LEVEL", "debug")
	t.Setenv("AUDITECX_SERVER_PORT", "9090")
	t.Setenv("AUDITECX_NARRATIVE_PROVIDER", "claude")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "claude", cfg.Narrative.Provider)
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestInitLoggerConsoleFormat(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
