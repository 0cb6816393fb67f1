package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoledger/pkg/domain"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults when environment is empty", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", cfg.Rules.Version)
		assert.Equal(t, 0, cfg.Rules.Quantity.Max.Cmp(domain.QuantityFromInt(10000)))
		assert.Equal(t, 70, cfg.Seal.BronzeThreshold)
		assert.Equal(t, 180*24*time.Hour, cfg.Seal.Validity)
		assert.Equal(t, 3, cfg.Kafka.MaxRetries)
		assert.Equal(t, time.Second, cfg.Kafka.RetryBackoff)
		assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	})

	t.Run("reads overrides", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SEAL_THRESHOLD_GOLD", "95")
		t.Setenv("SEAL_VALIDITY_DAYS", "30")
		t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,a:9092")
		t.Setenv("DATABASE_URL", "postgres://localhost/ecoledger")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, 95, cfg.Seal.GoldThreshold)
		assert.Equal(t, 30*24*time.Hour, cfg.Seal.Validity)
		assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	})

	t.Run("loads .env from working directory", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RULES_VERSION=2.1.0\n"), 0o600))
		t.Cleanup(func() { _ = os.Unsetenv("RULES_VERSION") })

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "2.1.0", cfg.Rules.Version)
	})

	t.Run("collects malformed values", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("KAFKA_MAX_RETRIES", "three")
		t.Setenv("KAFKA_RETRY_BACKOFF", "soon")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "KAFKA_MAX_RETRIES")
		assert.Contains(t, err.Error(), "KAFKA_RETRY_BACKOFF")
	})

	t.Run("rejects unordered thresholds", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SEAL_THRESHOLD_SILVER", "95")

		_, err := FromEnv()
		require.Error(t, err)
	})
}

func TestParseRules(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		rules, err := ParseRules([]byte(`
version: 1.2.0
quantity:
  min: "1"
  max: "2500.5"
location:
  validate_coordinates: true
attachments:
  required: true
  min_count: 2
  required_types: [invoice, gta]
`))
		require.NoError(t, err)
		assert.Equal(t, "1.2.0", rules.Version)
		assert.Equal(t, "2500.5", rules.Quantity.Max.String())
		assert.True(t, rules.Location.ValidateCoordinates)
		assert.Equal(t, []string{"invoice", "gta"}, rules.Attachments.RequiredTypes)
	})

	t.Run("omitted bounds keep defaults", func(t *testing.T) {
		rules, err := ParseRules([]byte("version: 1.0.1\n"))
		require.NoError(t, err)
		assert.Equal(t, "0", rules.Quantity.Min.String())
		assert.Equal(t, "10000", rules.Quantity.Max.String())
	})

	t.Run("rejects non-semver version", func(t *testing.T) {
		_, err := ParseRules([]byte("version: v1\n"))
		require.Error(t, err)
	})

	t.Run("rejects min above max", func(t *testing.T) {
		_, err := ParseRules([]byte("quantity:\n  min: \"10\"\n  max: \"5\"\n"))
		require.Error(t, err)
	})
}
