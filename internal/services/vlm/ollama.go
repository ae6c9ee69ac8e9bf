package vlm

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"vlmprep/internal/config"
	"vlmprep/internal/logging"
	"vlmprep/internal/services"
	"vlmprep/internal/textutil"
)

// OllamaModel captions images with a vision model served by a local Ollama
// server.
type OllamaModel struct {
	client    *api.Client
	model     string
	prompt    string
	maxLength int
	device    string
	retry     retryPolicy
	logger    *slog.Logger
}

func loadOllama(ctx context.Context, cfg config.ModelConfig, device string, o options, logger *slog.Logger) (*OllamaModel, error) {
	var client *api.Client
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("ollama backend: parse base url: %w", err)
		}
		client = api.NewClient(parsed, o.httpClient)
	} else {
		fromEnv, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama backend: client from environment: %w", err)
		}
		client = fromEnv
	}

	m := &OllamaModel{
		client:    client,
		model:     strings.TrimSpace(cfg.Model),
		prompt:    strings.TrimSpace(cfg.Prompt),
		maxLength: cfg.MaxLength,
		device:    device,
		retry:     o.retry,
		logger:    logger,
	}
	if cfg.NumBeams > 1 {
		logging.WarnWithContext(logger, "beam search not supported by ollama backend", "num_beams_ignored",
			logging.Int("num_beams", cfg.NumBeams),
			logging.String(logging.FieldErrorHint, "set num_beams = 1 to silence this warning"),
			logging.String(logging.FieldImpact, "captions use the server's default sampling"),
		)
	}
	err := m.retry.do(ctx, "ollama show", func(ctx context.Context) error {
		_, err := m.client.Show(ctx, &api.ShowRequest{Model: m.model})
		return translateStatus(err)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Name returns the model identifier.
func (m *OllamaModel) Name() string { return m.model }

// Device returns the execution device. cpu forces num_gpu = 0.
func (m *OllamaModel) Device() string { return m.device }

// Close is a no-op; the server owns the model lifetime.
func (m *OllamaModel) Close() error { return nil }

// Caption generates a caption for img.
func (m *OllamaModel) Caption(ctx context.Context, img image.Image) (string, error) {
	encoded, err := encodeJPEG(img)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "caption", "", err)
	}
	stream := false
	req := &api.GenerateRequest{
		Model:   m.model,
		Prompt:  m.prompt,
		Images:  []api.ImageData{encoded},
		Stream:  &stream,
		Options: m.generateOptions(),
	}

	var text strings.Builder
	err = m.retry.do(ctx, "ollama generate", func(ctx context.Context) error {
		text.Reset()
		err := m.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
			text.WriteString(resp.Response)
			return nil
		})
		return translateStatus(err)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		marker := services.ErrExternalTool
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && retryableStatus(statusErr.StatusCode) {
			marker = services.ErrTransient
		}
		return "", services.Wrap(marker, stageName, "caption", m.model, err)
	}
	caption := textutil.StripPrompt(text.String(), m.prompt)
	m.logger.Debug("caption generated", "model", m.model, "chars", len(caption))
	return textutil.NormalizeCaption(caption), nil
}

func (m *OllamaModel) generateOptions() map[string]any {
	opts := map[string]any{
		"temperature": 0,
	}
	if m.maxLength > 0 {
		opts["num_predict"] = m.maxLength
	}
	if m.device == DeviceCPU {
		opts["num_gpu"] = 0
	}
	return opts
}

// translateStatus maps Ollama status errors onto the shared retry
// classification.
func translateStatus(err error) error {
	if err == nil {
		return nil
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		body := statusErr.ErrorMessage
		if body == "" {
			body = statusErr.Status
		}
		return &httpStatusError{StatusCode: statusErr.StatusCode, Body: body}
	}
	return err
}
