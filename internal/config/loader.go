package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "promptforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PROMPTFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "PROMPTFORGE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PROMPTFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "PROMPTFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "PROMPTFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "PROMPTFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "PROMPTFORGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "PROMPTFORGE_META_MODEL")
	setString(&cfg.Logging.Level, "PROMPTFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PROMPTFORGE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "PROMPTFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "PROMPTFORGE_BREAKER_TIMEOUT")
	setString(&cfg.Solver.Binary, "PROMPTFORGE_SOLVER_BINARY")
	setInt(&cfg.Solver.MaxModels, "PROMPTFORGE_SOLVER_MAX_MODELS")
	setDuration(&cfg.Solver.Timeout, "PROMPTFORGE_SOLVER_TIMEOUT")
	setInt64(&cfg.Cache.MaxCostBytes, "PROMPTFORGE_CACHE_MAX_COST_BYTES")
	setDuration(&cfg.Cache.TTL, "PROMPTFORGE_CACHE_TTL")
	setFloat64(&cfg.Engine.LearningRate, "PROMPTFORGE_LEARNING_RATE")
	setInt(&cfg.Engine.MaxComponents, "PROMPTFORGE_MAX_COMPONENTS")
	setInt(&cfg.Engine.MaxExamples, "PROMPTFORGE_MAX_EXAMPLES")
	setString(&cfg.Engine.DefaultModel, "PROMPTFORGE_DEFAULT_MODEL")
}

// validate rejects configurations the engine cannot run with.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server port is required")
	}
	if cfg.Engine.LearningRate <= 0 || cfg.Engine.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0,1], got %v", cfg.Engine.LearningRate)
	}
	if cfg.Engine.MaxComponents < 1 {
		return fmt.Errorf("max components must be >= 1, got %d", cfg.Engine.MaxComponents)
	}
	if cfg.Engine.MaxExamples < 1 {
		return fmt.Errorf("max examples must be >= 1, got %d", cfg.Engine.MaxExamples)
	}
	if cfg.Solver.MaxModels < 1 {
		return fmt.Errorf("solver max models must be >= 1, got %d", cfg.Solver.MaxModels)
	}
	if cfg.Solver.Timeout <= 0 {
		return errors.New("solver timeout must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
