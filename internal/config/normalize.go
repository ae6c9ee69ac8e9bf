package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the settings that can be supplied through VLMPREP_*
// environment variables. Unset variables leave the pointer nil.
type envOverrides struct {
	StateDir        *string `env:"STATE_DIR"`
	LogLevel        *string `env:"LOG_LEVEL"`
	LogFormat       *string `env:"LOG_FORMAT"`
	CaptionsBackend *string `env:"CAPTIONS_BACKEND"`
	CaptionsModel   *string `env:"CAPTIONS_MODEL"`
	CaptionsBaseURL *string `env:"CAPTIONS_BASE_URL"`
	CaptionsAPIKey  *string `env:"CAPTIONS_API_KEY"`
	CaptionsDevice  *string `env:"CAPTIONS_DEVICE"`
	MetricsTextfile *string `env:"METRICS_TEXTFILE"`
}

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeNormalize()
	c.normalizeCaptions()
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.ParseWithOptions(&overrides, env.Options{Prefix: "VLMPREP_"}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	assign := func(dst *string, src *string) {
		if src != nil && strings.TrimSpace(*src) != "" {
			*dst = *src
		}
	}
	assign(&c.Paths.StateDir, overrides.StateDir)
	assign(&c.Logging.Level, overrides.LogLevel)
	assign(&c.Logging.Format, overrides.LogFormat)
	assign(&c.Captions.Backend, overrides.CaptionsBackend)
	assign(&c.Captions.Model, overrides.CaptionsModel)
	assign(&c.Captions.BaseURL, overrides.CaptionsBaseURL)
	assign(&c.Captions.APIKey, overrides.CaptionsAPIKey)
	assign(&c.Captions.Device, overrides.CaptionsDevice)
	assign(&c.Metrics.Textfile, overrides.MetricsTextfile)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "text", "console":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	if level == "warning" {
		level = "warn"
	}
	c.Logging.Level = level
	color := strings.ToLower(strings.TrimSpace(c.Logging.Color))
	if color == "" {
		color = defaultLogColor
	}
	c.Logging.Color = color
}

func (c *Config) normalizeNormalize() {
	c.Normalize.Extensions = normalizeExtensions(c.Normalize.Extensions)
	c.Normalize.OnError = strings.ToLower(strings.TrimSpace(c.Normalize.OnError))
	if c.Normalize.OnError == "" {
		c.Normalize.OnError = defaultNormalizeOnError
	}
}

func (c *Config) normalizeCaptions() {
	c.Captions.Backend = strings.ToLower(strings.TrimSpace(c.Captions.Backend))
	if c.Captions.Backend == "" {
		c.Captions.Backend = defaultCaptionBackend
	}
	c.Captions.Model = strings.TrimSpace(c.Captions.Model)
	if c.Captions.Model == "" {
		c.Captions.Model = defaultCaptionModel
	}
	c.Captions.BaseURL = strings.TrimRight(strings.TrimSpace(c.Captions.BaseURL), "/")
	if strings.TrimSpace(c.Captions.APIKey) == "" {
		for _, key := range []string{"HF_TOKEN", "HUGGING_FACE_HUB_TOKEN"} {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				c.Captions.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.Captions.Device = strings.ToLower(strings.TrimSpace(c.Captions.Device))
	if c.Captions.Device == "" {
		c.Captions.Device = defaultCaptionDevice
	}
	c.Captions.Extensions = normalizeExtensions(c.Captions.Extensions)
	if c.Captions.RetryAttempts <= 0 {
		c.Captions.RetryAttempts = defaultRetryAttempts
	}
	if c.Captions.RequestTimeoutSeconds <= 0 {
		c.Captions.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
}

func (c *Config) normalizeMetrics() error {
	if strings.TrimSpace(c.Metrics.Textfile) == "" {
		c.Metrics.Textfile = ""
		return nil
	}
	var err error
	if c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

// normalizeExtensions lowercases entries, adds the leading dot and drops
// duplicates. An empty list falls back to DefaultImageExtensions.
func normalizeExtensions(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultImageExtensions...)
	}
	return out
}
