// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/montecarlo"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Directory holding the results database (always absolute)
	LogLevel         string
	LogPretty        bool
	Port             int
	PolicyFile       string
	Policy           elasticity.Policy
	Simulation       SimulationConfig
	Export           ExportConfig
	ResultsRetention time.Duration // Stored results older than this are pruned; 0 keeps everything
	MaintenanceCron  string
}

// SimulationConfig holds engine and aggregation tuning
type SimulationConfig struct {
	Workers               int // 0 = one per logical CPU
	ChunkSize             int
	HistogramBuckets      int
	SensitivityIterations int // 0 disables sensitivity ranking
	DefaultIterations     int
	DefaultHorizon        int
}

// ExportConfig holds the S3-compatible target for reproduction manifests.
// An empty bucket disables export.
type ExportConfig struct {
	Bucket          string
	Prefix          string
	Endpoint        string // Override for R2/MinIO
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether manifests should be uploaded
func (e ExportConfig) Enabled() bool {
	return e.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("RUNWAY_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:    absDataDir,
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogPretty:  getEnvAsBool("LOG_PRETTY", false),
		Port:       getEnvAsInt("PORT", 8080),
		PolicyFile: getEnv("FRAGILITY_POLICY_FILE", ""),
		Simulation: SimulationConfig{
			Workers:               getEnvAsInt("SIM_WORKERS", 0),
			ChunkSize:             getEnvAsInt("SIM_CHUNK_SIZE", montecarlo.DefaultChunkSize),
			HistogramBuckets:      getEnvAsInt("SIM_HISTOGRAM_BUCKETS", 20),
			SensitivityIterations: getEnvAsInt("SIM_SENSITIVITY_ITERATIONS", 200),
			DefaultIterations:     getEnvAsInt("SIM_DEFAULT_ITERATIONS", 2000),
			DefaultHorizon:        getEnvAsInt("SIM_DEFAULT_HORIZON", 36),
		},
		Export: ExportConfig{
			Bucket:          getEnv("EXPORT_BUCKET", ""),
			Prefix:          getEnv("EXPORT_PREFIX", "runs"),
			Endpoint:        getEnv("EXPORT_ENDPOINT", ""),
			Region:          getEnv("EXPORT_REGION", "auto"),
			AccessKeyID:     getEnv("EXPORT_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("EXPORT_SECRET_ACCESS_KEY", ""),
		},
		ResultsRetention: getEnvAsDuration("RESULTS_RETENTION", 30*24*time.Hour),
		MaintenanceCron:  getEnv("MAINTENANCE_CRON", "0 0 3 * * *"),
	}

	policy, err := LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values are usable. Failures are ConfigurationErrors.
func (c *Config) Validate() error {
	s := c.Simulation
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return &domain.ConfigurationError{Field: "PORT", Reason: "must be in 1..65535"}
	case s.Workers < 0:
		return &domain.ConfigurationError{Field: "SIM_WORKERS", Reason: "must not be negative"}
	case s.ChunkSize <= 0:
		return &domain.ConfigurationError{Field: "SIM_CHUNK_SIZE", Reason: "must be positive"}
	case s.HistogramBuckets <= 0:
		return &domain.ConfigurationError{Field: "SIM_HISTOGRAM_BUCKETS", Reason: "must be positive"}
	case s.SensitivityIterations < 0:
		return &domain.ConfigurationError{Field: "SIM_SENSITIVITY_ITERATIONS", Reason: "must not be negative"}
	case s.SensitivityIterations > montecarlo.MaxSensitivityIterations:
		return &domain.ConfigurationError{Field: "SIM_SENSITIVITY_ITERATIONS", Reason: fmt.Sprintf("exceeds the maximum of %d", montecarlo.MaxSensitivityIterations)}
	case c.ResultsRetention < 0:
		return &domain.ConfigurationError{Field: "RESULTS_RETENTION", Reason: "must not be negative"}
	}

	defaults := montecarlo.Config{Iterations: s.DefaultIterations, HorizonMonths: s.DefaultHorizon}
	if err := defaults.Validate(); err != nil {
		return fmt.Errorf("default run: %w", err)
	}

	if c.Export.Enabled() && (c.Export.AccessKeyID == "") != (c.Export.SecretAccessKey == "") {
		return &domain.ConfigurationError{Field: "EXPORT_ACCESS_KEY_ID", Reason: "and EXPORT_SECRET_ACCESS_KEY must be set together"}
	}

	return c.Policy.Validate()
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
