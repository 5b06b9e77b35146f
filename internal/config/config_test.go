package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotepulse/internal/complexity"
	"quotepulse/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Duration(0), cfg.Targeting.Cooldown)
	assert.Equal(t, complexity.DefaultConfig(), cfg.Complexity)
}

func TestLoad_FileOverridesKeepOtherDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
cache:
  ttl: 2m
complexity:
  bands:
    simple: 30
    medium: 60
targeting:
  cooldown: 10m
  catalog:
    complex:
      - survey_id: complex-only
        priority: 1
        triggers: [complex_quote_created]
        delay: 3s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, 30.0, cfg.Complexity.Bands.Simple)
	assert.Equal(t, 0.25, cfg.Complexity.ItemCount.Weight, "unset complexity fields keep defaults")
	assert.Equal(t, 10*time.Minute, cfg.Targeting.Cooldown)
	assert.Equal(t, 10000.0, cfg.Targeting.Rules.HighValueQuote)

	require.Len(t, cfg.Targeting.Catalog[model.ComplexityComplex], 1)
	assert.Equal(t, 3*time.Second, cfg.Targeting.Catalog[model.ComplexityComplex][0].Delay)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9090\"\n")
	t.Setenv("PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SURVEY_COOLDOWN", "1h")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Targeting.Cooldown)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("SURVEY_COOLDOWN", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "SURVEY_COOLDOWN")
}

func TestLoad_RejectsInvertedThresholds(t *testing.T) {
	path := writeConfig(t, `
complexity:
  item_count:
    weight: 0.25
    threshold: {simple: 10, medium: 5, complex: 15}
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, complexity.ErrInvalidConfig)
}

func TestLoad_RejectsBadCatalog(t *testing.T) {
	path := writeConfig(t, `
targeting:
  catalog:
    simple:
      - survey_id: no-triggers
        priority: 1
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "trigger")
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}
