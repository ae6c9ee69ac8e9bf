package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"vlmprep/internal/config"
	"vlmprep/internal/services"
	"vlmprep/internal/textutil"
)

// HFModel captions images through a Hugging Face inference-compatible HTTP
// endpoint.
type HFModel struct {
	baseURL    string
	model      string
	apiKey     string
	maxLength  int
	numBeams   int
	device     string
	httpClient *http.Client
	retry      retryPolicy
	logger     *slog.Logger
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfParameters struct {
	MaxNewTokens int `json:"max_new_tokens"`
	NumBeams     int `json:"num_beams"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseGPU       bool `json:"use_gpu"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

func loadHF(ctx context.Context, cfg config.ModelConfig, device string, o options, logger *slog.Logger) (*HFModel, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("hf backend: base url is required")
	}
	m := &HFModel{
		baseURL:    baseURL,
		model:      strings.TrimSpace(cfg.Model),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		maxLength:  cfg.MaxLength,
		numBeams:   cfg.NumBeams,
		device:     device,
		httpClient: o.httpClient,
		retry:      o.retry,
		logger:     logger,
	}
	if err := m.status(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Name returns the model identifier.
func (m *HFModel) Name() string { return m.model }

// Device returns the device requested from the endpoint.
func (m *HFModel) Device() string { return m.device }

// Close releases idle connections.
func (m *HFModel) Close() error {
	m.httpClient.CloseIdleConnections()
	return nil
}

// status confirms the endpoint knows the model.
func (m *HFModel) status(ctx context.Context) error {
	endpoint, err := url.JoinPath(m.baseURL, "status", m.model)
	if err != nil {
		return fmt.Errorf("hf status: build url: %w", err)
	}
	return m.retry.do(ctx, "hf status", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		_, err = m.send(req)
		return err
	})
}

// Caption generates a caption for img.
func (m *HFModel) Caption(ctx context.Context, img image.Image) (string, error) {
	encoded, err := encodeJPEG(img)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "caption", "", err)
	}
	payload, err := json.Marshal(hfRequest{
		Inputs: base64.StdEncoding.EncodeToString(encoded),
		Parameters: hfParameters{
			MaxNewTokens: m.maxLength,
			NumBeams:     m.numBeams,
		},
		Options: hfOptions{
			WaitForModel: true,
			UseGPU:       m.device != DeviceCPU,
		},
	})
	if err != nil {
		return "", fmt.Errorf("hf caption: encode body: %w", err)
	}
	endpoint, err := url.JoinPath(m.baseURL, "models", m.model)
	if err != nil {
		return "", fmt.Errorf("hf caption: build url: %w", err)
	}

	var text string
	err = m.retry.do(ctx, "hf caption", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		body, err := m.send(req)
		if err != nil {
			return err
		}
		text, err = parseGeneration(body)
		return err
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
	m.logger.Debug("caption generated", "model", m.model, "chars", len(text))
	return textutil.NormalizeCaption(text), nil
}

func (m *HFModel) send(req *http.Request) ([]byte, error) {
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error (timeout=%s): %w", m.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return body, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	return body, nil
}

// parseGeneration accepts the list form returned by image-to-text pipelines
// and the single-object form some compatible servers use.
func parseGeneration(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("decode response: empty body")
	}
	if trimmed[0] == '[' {
		var generations []hfGeneration
		if err := json.Unmarshal(trimmed, &generations); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		if len(generations) == 0 {
			return "", nil
		}
		return generations[0].GeneratedText, nil
	}
	var apiErr hfError
	if err := json.Unmarshal(trimmed, &apiErr); err == nil && strings.TrimSpace(apiErr.Error) != "" {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(apiErr.Error))
	}
	var single hfGeneration
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return "", fmt.Errorf("decode response: %w (body: %s)", err, summarizeBody(string(trimmed)))
	}
	return single.GeneratedText, nil
}
