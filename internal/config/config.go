package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and log directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// Color is one of "auto", "always" or "never".
	Color string `toml:"color"`
	// File enables the JSON log file under Paths.LogDir.
	File bool `toml:"file"`
}

// Frames contains configuration for the frame extraction stage.
type Frames struct {
	Interval    int  `toml:"interval"`
	JPEGQuality int  `toml:"jpeg_quality"`
	CleanStale  bool `toml:"clean_stale"`
}

// Normalize contains configuration for the image normalization stage.
type Normalize struct {
	Resolution  int      `toml:"resolution"`
	Extensions  []string `toml:"extensions"`
	OnError     string   `toml:"on_error"`
	JPEGQuality int      `toml:"jpeg_quality"`
}

// Captions contains configuration for the caption annotation stage and the
// model backend it talks to.
type Captions struct {
	Backend               string   `toml:"backend"`
	Model                 string   `toml:"model"`
	BaseURL               string   `toml:"base_url"`
	APIKey                string   `toml:"api_key"`
	MaxLength             int      `toml:"max_length"`
	NumBeams              int      `toml:"num_beams"`
	Device                string   `toml:"device"`
	Prompt                string   `toml:"prompt"`
	Extensions            []string `toml:"extensions"`
	ItemTimeoutSeconds    int      `toml:"item_timeout_seconds"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
	RetryAttempts         int      `toml:"retry_attempts"`
}

// Metrics contains configuration for the Prometheus textfile export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// RunLog contains configuration for the SQLite run history.
type RunLog struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for vlmprep.
//
// Configuration sections by subsystem:
//   - Paths: state (run log) and log directories
//   - Logging: log format, level, color and file output
//   - Frames: sampling interval and frame encoding
//   - Normalize: target resolution, extension filter and failure policy
//   - Captions: model backend, generation parameters and per-item timeout
//   - Metrics: optional node-exporter textfile path
//   - RunLog: run history persistence
type Config struct {
	Paths     Paths     `toml:"paths"`
	Logging   Logging   `toml:"logging"`
	Frames    Frames    `toml:"frames"`
	Normalize Normalize `toml:"normalize"`
	Captions  Captions  `toml:"captions"`
	Metrics   Metrics   `toml:"metrics"`
	RunLog    RunLog    `toml:"runlog"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vlmprep/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vlmprep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir}
	if c.Logging.File {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RunLogPath returns the SQLite run history location.
func (c *Config) RunLogPath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// LogFilePath returns the JSON log file location, or "" when file logging is off.
func (c *Config) LogFilePath() string {
	if !c.Logging.File || strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "vlmprep.log")
}

// FFmpegBinary returns the ffmpeg executable name used for frame decoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used to open video sources.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "vlmprep")
	}
	return defaultStateDirFallback
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ModelConfig contains the caption model settings resolved from [captions].
type ModelConfig struct {
	Backend        string
	Model          string
	BaseURL        string
	APIKey         string
	MaxLength      int
	NumBeams       int
	Device         string
	Prompt         string
	TimeoutSeconds int
	RetryAttempts  int
}

// CaptionModel returns the caption model connection settings. An unset base
// URL resolves from the final backend: the hosted inference API for hf, and
// empty for ollama so the client reads OLLAMA_HOST.
func (c *Config) CaptionModel() ModelConfig {
	backend := strings.ToLower(strings.TrimSpace(c.Captions.Backend))
	baseURL := strings.TrimRight(strings.TrimSpace(c.Captions.BaseURL), "/")
	if baseURL == "" && (backend == "" || backend == defaultCaptionBackend) {
		baseURL = defaultHFBaseURL
	}
	return ModelConfig{
		Backend:        backend,
		Model:          strings.TrimSpace(c.Captions.Model),
		BaseURL:        baseURL,
		APIKey:         strings.TrimSpace(c.Captions.APIKey),
		MaxLength:      c.Captions.MaxLength,
		NumBeams:       c.Captions.NumBeams,
		Device:         strings.TrimSpace(c.Captions.Device),
		Prompt:         strings.TrimSpace(c.Captions.Prompt),
		TimeoutSeconds: c.Captions.RequestTimeoutSeconds,
		RetryAttempts:  c.Captions.RetryAttempts,
	}
}
