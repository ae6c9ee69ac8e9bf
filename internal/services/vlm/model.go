package vlm

import (
	"context"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vlmprep/internal/config"
	"vlmprep/internal/deps"
	"vlmprep/internal/logging"
	"vlmprep/internal/services"
)

const stageName = "vlm"

// Backend names accepted by Load.
const (
	BackendHF     = "hf"
	BackendOllama = "ollama"
)

// Model is a loaded captioning model bound to one execution device.
type Model interface {
	Caption(ctx context.Context, img image.Image) (string, error)
	// Name is the model identifier.
	Name() string
	// Device is the execution device selected at load time.
	Device() string
	Close() error
}

// Option customizes model loading.
type Option func(*options)

type options struct {
	httpClient *http.Client
	detector   *deps.Detector
	retry      retryPolicy
}

// WithHTTPClient overrides the HTTP client used by the backends.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithDetector overrides accelerator detection for device "auto".
func WithDetector(detector deps.Detector) Option {
	return func(o *options) {
		o.detector = &detector
	}
}

// WithRetryBackoff overrides the transport retry delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(o *options) {
		o.retry.baseDelay = baseDelay
		o.retry.maxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(o *options) {
		o.retry.sleeper = sleeper
	}
}

// Load selects a device and acquires a model handle for cfg. Any failure is
// a configuration error: the caption stage cannot start without a model.
func Load(ctx context.Context, cfg config.ModelConfig, logger *slog.Logger, opts ...Option) (Model, error) {
	logger = logging.NewComponentLogger(logger, stageName)
	o := options{retry: defaultRetryPolicy()}
	if cfg.RetryAttempts > 0 {
		o.retry.attempts = cfg.RetryAttempts
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		timeout := defaultHTTPTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		o.httpClient = &http.Client{Timeout: timeout}
	}
	detector := deps.DefaultDetector()
	if o.detector != nil {
		detector = *o.detector
	}

	if strings.TrimSpace(cfg.Model) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "load", "model name is required", nil)
	}
	device := SelectDevice(ctx, cfg.Device, detector)

	var (
		model Model
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendHF, "":
		model, err = loadHF(ctx, cfg, device, o, logger)
	case BackendOllama:
		model, err = loadOllama(ctx, cfg, device, o, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "load", "unsupported backend "+cfg.Backend, nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "load", "load model "+cfg.Model, err)
	}
	logger.Info("caption model loaded",
		logging.String(logging.FieldEventType, "model_loaded"),
		logging.String("backend", cfg.Backend),
		logging.String("model", model.Name()),
		logging.String("device", model.Device()),
	)
	return model, nil
}
