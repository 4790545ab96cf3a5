package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"predindep/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Test TestConfig
	Log  LogConfig
}

// TestConfig holds the independence test defaults
type TestConfig struct {
	Method       string
	Parametric   bool
	Confidence   float64
	Symmetric    bool
	TestFraction float64
	Seed         int64
	Workers      int
	Harmonic     string
	RidgeLambda  float64
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Test: *loadTestConfig(),
		Log:  *loadLogConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadTestConfig() *TestConfig {
	return &TestConfig{
		Method:       strings.ToLower(getEnvOrDefault("PREDINDEP_METHOD", "multiplexing")),
		Parametric:   getEnvBoolOrDefault("PREDINDEP_PARAMETRIC", false),
		Confidence:   getEnvFloatOrDefault("PREDINDEP_CONFIDENCE", 0.05),
		Symmetric:    getEnvBoolOrDefault("PREDINDEP_SYMMETRIC", true),
		TestFraction: getEnvFloatOrDefault("PREDINDEP_TEST_FRACTION", 1.0/3.0),
		Seed:         getEnvInt64OrDefault("PREDINDEP_SEED", 1),
		Workers:      getEnvIntOrDefault("PREDINDEP_WORKERS", runtime.NumCPU()),
		Harmonic:     strings.ToLower(getEnvOrDefault("PREDINDEP_HARMONIC", "p-1")),
		RidgeLambda:  getEnvFloatOrDefault("PREDINDEP_RIDGE_LAMBDA", 1.0),
	}
}

func loadLogConfig() *LogConfig {
	return &LogConfig{
		Level: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}
}

func validateConfig(config *Config) error {
	t := config.Test
	if t.Confidence <= 0 || t.Confidence >= 1 {
		return errors.ConfigInvalid("PREDINDEP_CONFIDENCE must lie in (0, 1)")
	}
	if t.TestFraction <= 0 || t.TestFraction >= 1 {
		return errors.ConfigInvalid("PREDINDEP_TEST_FRACTION must lie in (0, 1)")
	}
	if t.Workers < 1 {
		return errors.ConfigInvalid("PREDINDEP_WORKERS must be positive")
	}
	if t.RidgeLambda < 0 {
		return errors.ConfigInvalid("PREDINDEP_RIDGE_LAMBDA must not be negative")
	}
	switch t.Harmonic {
	case "p-1", "p":
	default:
		return errors.ConfigInvalid("PREDINDEP_HARMONIC must be \"p-1\" or \"p\"")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
