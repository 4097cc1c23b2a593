package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortavares4/dsl-investments/pkg/config"
	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".portlang.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultServerHost, cfg.Server.Host)
	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, config.DefaultCacheSize, cfg.Cache.Size)
	assert.Equal(t, validator.DefaultThresholds(), cfg.Validation)
	assert.Empty(t, cfg.Store.Path)
	assert.Equal(t, config.DefaultCodegenTypeName, cfg.Codegen.TypeName)
}

func TestDefaultMatchesLoadedDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	require.NoError(t, config.Default().Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9000
  host: "0.0.0.0"
  read_timeout: "5s"
validation:
  sum_tolerance: 0.5
  concentration_max: 70
cache:
  size: 16
store:
  path: "/tmp/runs.db"
logging:
  format: json
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.InDelta(t, 0.5, cfg.Validation.SumTolerance, 0)
	assert.InDelta(t, 70.0, cfg.Validation.ConcentrationMax, 0)
	assert.InDelta(t, validator.DefaultAdminFeeMax, cfg.Validation.AdminFeeMax, 0)
	assert.Equal(t, 16, cfg.Cache.Size)
	assert.Equal(t, "/tmp/runs.db", cfg.Store.Path)
	assert.Equal(t, config.LogFormatJSON, cfg.Logging.Format)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORTLANG_SERVER_PORT", "9090")
	t.Setenv("PORTLANG_VALIDATION_ADMIN_FEE_MAX", "2.5")
	t.Setenv("PORTLANG_OBSERVABILITY_PROMETHEUS", "true")

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 2.5, cfg.Validation.AdminFeeMax, 0)
	assert.True(t, cfg.Observability.Prometheus)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"port", "server:\n  port: 70000\n", config.ErrInvalidPort},
		{"body", "server:\n  max_body_bytes: 0\n", config.ErrInvalidMaxBody},
		{"cache", "cache:\n  size: -1\n", config.ErrInvalidCacheSize},
		{"level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"tolerance", "validation:\n  sum_tolerance: -1\n", config.ErrInvalidTolerance},
		{"moderate", "validation:\n  moderate_min_risk: 80\n", config.ErrInvalidRiskBand},
		{"aggressive", "validation:\n  aggressive_min_risk: 120\n", config.ErrInvalidRiskBand},
		{"volatility", "validation:\n  volatility_min: 30\n", config.ErrInvalidVolatility},
		{"ratio", "observability:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}
