package vlm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"vlmprep/internal/config"
	"vlmprep/internal/services"
	"vlmprep/internal/testsupport"
)

func ollamaConfig(baseURL string) config.ModelConfig {
	return config.ModelConfig{
		Backend:       BackendOllama,
		Model:         "llava:7b",
		BaseURL:       baseURL,
		MaxLength:     32,
		NumBeams:      1,
		Device:        DeviceCPU,
		Prompt:        "Describe this image in one short sentence.",
		RetryAttempts: 1,
	}
}

func TestLoadOllamaShowsAndGenerates(t *testing.T) {
	var generateBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/show", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "llava:7b" {
			t.Errorf("show model = %v", req["model"])
		}
		_, _ = w.Write([]byte(`{"details":{"family":"llama"}}`))
	})
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&generateBody); err != nil {
			t.Errorf("decode generate: %v", err)
		}
		_, _ = w.Write([]byte(`{"model":"llava:7b","response":"Describe this image in one short sentence. A small  gradient.","done":true}` + "\n"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	model, err := Load(context.Background(), ollamaConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	defer model.Close()

	caption, err := model.Caption(context.Background(), testsupport.Gradient(8, 8))
	if err != nil {
		t.Fatalf("Caption returned error: %v", err)
	}
	if caption != "A small gradient." {
		t.Fatalf("caption = %q", caption)
	}

	if generateBody["model"] != "llava:7b" || generateBody["stream"] != false {
		t.Fatalf("generate body = %v", generateBody)
	}
	images, ok := generateBody["images"].([]any)
	if !ok || len(images) != 1 {
		t.Fatalf("images = %v, want one entry", generateBody["images"])
	}
	opts, ok := generateBody["options"].(map[string]any)
	if !ok {
		t.Fatalf("options missing: %v", generateBody)
	}
	if opts["num_predict"] != float64(32) || opts["num_gpu"] != float64(0) || opts["temperature"] != float64(0) {
		t.Fatalf("options = %v", opts)
	}
}

func TestLoadOllamaMissingModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llava:7b' not found"}`))
	}))
	defer server.Close()

	_, err := Load(context.Background(), ollamaConfig(server.URL), nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestOllamaGenerateOptionsOnAccelerator(t *testing.T) {
	m := &OllamaModel{maxLength: 0, device: DeviceCUDA}
	opts := m.generateOptions()
	if _, ok := opts["num_gpu"]; ok {
		t.Fatalf("num_gpu set on cuda: %v", opts)
	}
	if _, ok := opts["num_predict"]; ok {
		t.Fatalf("num_predict set without max length: %v", opts)
	}
}
