package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/goctc/internal/ctc"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	core := ctc.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		CTC: CTCConfig{
			Strict:          core.Strict,
			RowSumTolerance: core.RowSumTolerance,
			MaxTimeSteps:    core.MaxTimeSteps,
			MaxLabelLength:  core.MaxLabelLength,
			NormalizeLabels: core.NormalizeLabels,
		},
		Output: OutputConfig{
			Format:    "text",
			Precision: 6,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxBodyMB:       16,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 120,
				RequestsPerHour:   3000,
				MaxRequestsPerDay: 20000,
				MaxDataPerDayMB:   1024,
			},
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: false,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv", "yaml"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if c.Output.Precision < -1 || c.Output.Precision > 17 {
		return fmt.Errorf("invalid output precision: %d (must be between -1 and 17)", c.Output.Precision)
	}

	if c.CTC.RowSumTolerance <= 0 || c.CTC.RowSumTolerance >= 1 {
		return fmt.Errorf("invalid ctc.row_sum_tolerance: %g (must be in (0, 1))", c.CTC.RowSumTolerance)
	}
	if c.CTC.MaxTimeSteps < 0 {
		return fmt.Errorf("invalid ctc.max_time_steps: %d (must not be negative)", c.CTC.MaxTimeSteps)
	}
	if c.CTC.MaxLabelLength < 0 {
		return fmt.Errorf("invalid ctc.max_label_length: %d (must not be negative)", c.CTC.MaxLabelLength)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxBodyMB <= 0 {
		return fmt.Errorf("invalid max body size: %d (must be positive)", c.Server.MaxBodyMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayMB < 0 {
		return fmt.Errorf("invalid rate limit: values must not be negative")
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	return nil
}

// ToCTCConfig converts the config to the scoring core's configuration.
func (c *Config) ToCTCConfig() ctc.Config {
	return ctc.Config{
		Strict:          c.CTC.Strict,
		RowSumTolerance: c.CTC.RowSumTolerance,
		MaxTimeSteps:    c.CTC.MaxTimeSteps,
		MaxLabelLength:  c.CTC.MaxLabelLength,
		NormalizeLabels: c.CTC.NormalizeLabels,
	}
}
