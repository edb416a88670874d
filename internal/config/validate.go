package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"levelset/internal/loudness"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLoudness(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	sub := c.Paths.OutputSubdir
	if filepath.IsAbs(sub) || sub == "." || sub == ".." || strings.HasPrefix(sub, ".."+string(filepath.Separator)) {
		return fmt.Errorf("paths.output_subdir must be a subdirectory name relative to the input folder, got %q", sub)
	}
	return nil
}

func (c *Config) validateLoudness() error {
	if !loudness.IsSupportedTarget(c.Loudness.TargetLUFS) {
		return fmt.Errorf("loudness.target_lufs must be one of %s, got %v", loudness.SupportedTargetList(), c.Loudness.TargetLUFS)
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	return ensurePositiveMap(map[string]int{
		"ffmpeg.analysis_timeout_seconds": c.FFmpeg.AnalysisTimeoutSeconds,
		"ffmpeg.execute_timeout_seconds":  c.FFmpeg.ExecuteTimeoutSeconds,
	})
}

func (c *Config) validateLogging() error {
	if c.Logging.RetentionDays < 0 {
		return fmt.Errorf("logging.retention_days must be zero (keep everything) or positive, got %d", c.Logging.RetentionDays)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
