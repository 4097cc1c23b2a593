// Package config provides configuration loading and validation for portlang.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidCacheSize   = errors.New("cache size must not be negative")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidTolerance   = errors.New("sum tolerance must not be negative")
	ErrInvalidRiskBand    = errors.New("invalid risk band")
	ErrInvalidVolatility  = errors.New("invalid volatility band")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
	ErrInvalidMaxBody     = errors.New("max body size must be positive")
)

const (
	envPrefix      = "PORTLANG"
	configName     = ".portlang"
	configType     = "yaml"
	maxPort        = 65535
	percentCeiling = 100
)

// Config holds all configuration for portlang.
type Config struct {
	Logging       LoggingConfig        `mapstructure:"logging"`
	Server        ServerConfig         `mapstructure:"server"`
	Validation    validator.Thresholds `mapstructure:"validation"`
	Cache         CacheConfig          `mapstructure:"cache"`
	Store         StoreConfig          `mapstructure:"store"`
	Observability ObservabilityConfig  `mapstructure:"observability"`
	Codegen       CodegenConfig        `mapstructure:"codegen"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// Addr returns host:port.
func (sc ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}

// CacheConfig holds the compilation cache configuration. Size 0 disables it.
type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// StoreConfig holds run history configuration. An empty path disables it.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ObservabilityConfig holds telemetry exporter settings.
type ObservabilityConfig struct {
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	Prometheus   bool    `mapstructure:"prometheus"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// CodegenConfig holds defaults for Go code emission.
type CodegenConfig struct {
	Package  string `mapstructure:"package"`
	TypeName string `mapstructure:"type_name"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty path searches the working directory and $HOME for .portlang.yaml;
// a missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType(configType)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
			viperCfg.AddConfigPath(filepath.Join(home, ".config", "portlang"))
		}
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Server: ServerConfig{
			Host:         DefaultServerHost,
			Port:         DefaultServerPort,
			ReadTimeout:  DefaultServerReadTimeout,
			WriteTimeout: DefaultServerWriteTimeout,
			IdleTimeout:  DefaultServerIdleTimeout,
			MaxBodyBytes: DefaultServerMaxBodyBytes,
		},
		Validation: validator.DefaultThresholds(),
		Cache:      CacheConfig{Size: DefaultCacheSize},
		Codegen:    CodegenConfig{Package: DefaultCodegenPackage, TypeName: DefaultCodegenTypeName},
	}
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("server.host", DefaultServerHost)
	viperCfg.SetDefault("server.port", DefaultServerPort)
	viperCfg.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	viperCfg.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	viperCfg.SetDefault("server.idle_timeout", DefaultServerIdleTimeout)
	viperCfg.SetDefault("server.max_body_bytes", DefaultServerMaxBodyBytes)

	th := validator.DefaultThresholds()
	viperCfg.SetDefault("validation.sum_tolerance", th.SumTolerance)
	viperCfg.SetDefault("validation.conservative_max_risk", th.ConservativeMaxRisk)
	viperCfg.SetDefault("validation.aggressive_min_risk", th.AggressiveMinRisk)
	viperCfg.SetDefault("validation.moderate_min_risk", th.ModerateMinRisk)
	viperCfg.SetDefault("validation.moderate_max_risk", th.ModerateMaxRisk)
	viperCfg.SetDefault("validation.volatility_min", th.VolatilityMin)
	viperCfg.SetDefault("validation.volatility_max", th.VolatilityMax)
	viperCfg.SetDefault("validation.admin_fee_max", th.AdminFeeMax)
	viperCfg.SetDefault("validation.concentration_max", th.ConcentrationMax)
	viperCfg.SetDefault("validation.min_asset_classes", th.MinAssetClasses)

	viperCfg.SetDefault("cache.size", DefaultCacheSize)
	viperCfg.SetDefault("store.path", "")

	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.prometheus", false)
	viperCfg.SetDefault("observability.sample_ratio", 0.0)

	viperCfg.SetDefault("codegen.package", DefaultCodegenPackage)
	viperCfg.SetDefault("codegen.type_name", DefaultCodegenTypeName)
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxBody, c.Server.MaxBodyBytes)
	}

	if c.Cache.Size < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, c.Cache.Size)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Observability.SampleRatio)
	}

	return validateThresholds(c.Validation)
}

func validateThresholds(th validator.Thresholds) error {
	if th.SumTolerance < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, th.SumTolerance)
	}

	if th.ModerateMinRisk > th.ModerateMaxRisk || !inPercent(th.ModerateMinRisk) || !inPercent(th.ModerateMaxRisk) {
		return fmt.Errorf("%w: moderate %v..%v", ErrInvalidRiskBand, th.ModerateMinRisk, th.ModerateMaxRisk)
	}

	if !inPercent(th.ConservativeMaxRisk) || !inPercent(th.AggressiveMinRisk) {
		return fmt.Errorf("%w: conservative max %v, aggressive min %v",
			ErrInvalidRiskBand, th.ConservativeMaxRisk, th.AggressiveMinRisk)
	}

	if th.VolatilityMin > th.VolatilityMax || !inPercent(th.VolatilityMin) || !inPercent(th.VolatilityMax) {
		return fmt.Errorf("%w: %v..%v", ErrInvalidVolatility, th.VolatilityMin, th.VolatilityMax)
	}

	return nil
}

func inPercent(v float64) bool {
	return v >= 0 && v <= percentCeiling
}
