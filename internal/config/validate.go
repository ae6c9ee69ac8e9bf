package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateFrames(); err != nil {
		return err
	}
	if err := c.validateNormalize(); err != nil {
		return err
	}
	if err := c.validateCaptions(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("logging.color: unsupported value %q", c.Logging.Color)
	}
	return nil
}

func (c *Config) validateFrames() error {
	if c.Frames.Interval < 1 {
		return errors.New("frames.interval must be at least 1")
	}
	if err := validateQuality("frames.jpeg_quality", c.Frames.JPEGQuality); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNormalize() error {
	if c.Normalize.Resolution <= 0 {
		return errors.New("normalize.resolution must be positive")
	}
	switch c.Normalize.OnError {
	case "abort", "skip":
	default:
		return fmt.Errorf("normalize.on_error: unsupported value %q (expected abort or skip)", c.Normalize.OnError)
	}
	return validateQuality("normalize.jpeg_quality", c.Normalize.JPEGQuality)
}

func (c *Config) validateCaptions() error {
	switch c.Captions.Backend {
	case "hf", "ollama":
	default:
		return fmt.Errorf("captions.backend: unsupported value %q (expected hf or ollama)", c.Captions.Backend)
	}
	switch c.Captions.Device {
	case "auto", "cuda", "mps", "cpu":
	default:
		return fmt.Errorf("captions.device: unsupported value %q", c.Captions.Device)
	}
	if c.Captions.MaxLength <= 0 {
		return errors.New("captions.max_length must be positive")
	}
	if c.Captions.NumBeams < 1 {
		return errors.New("captions.num_beams must be at least 1")
	}
	if c.Captions.ItemTimeoutSeconds < 0 {
		return errors.New("captions.item_timeout_seconds must be >= 0")
	}
	return nil
}

func validateQuality(field string, value int) error {
	if value < 1 || value > 100 {
		return fmt.Errorf("%s must be between 1 and 100", field)
	}
	return nil
}
