package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newOllamaTestProvider(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewOllamaProvider(Config{
		Kind:    "ollama",
		BaseURL: server.URL,
		Model:   "llama3.1:8b",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestOllamaProvider_FetchAnswers_Success(t *testing.T) {
	provider := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if req.Format != "json" {
			t.Errorf("expected JSON format, got %q", req.Format)
		}
		if req.Model != "llama3.1:8b" {
			t.Errorf("unexpected model %q", req.Model)
		}

		resp := ollamaResponse{
			Model:    "llama3.1:8b",
			Response: `[{"title":"Reuters","url":"https://www.reuters.com/a","answer":true,"confidence":0.85}]`,
			Done:     true,
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	answers, err := provider.FetchAnswers(context.Background(), "Did it happen?")
	if err != nil {
		t.Fatalf("FetchAnswers failed: %v", err)
	}
	if len(answers) != 1 || answers[0].Title != "Reuters" || answers[0].Provider != "ollama" {
		t.Errorf("unexpected answers: %+v", answers)
	}
}

func TestOllamaProvider_FetchAnswers_APIError(t *testing.T) {
	provider := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama3.1:8b' not found"}`))
	})

	if _, err := provider.FetchAnswers(context.Background(), "q"); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestOllamaProvider_FetchAnswers_Malformed(t *testing.T) {
	provider := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "I am not sure.", Done: true})
	})

	if _, err := provider.FetchAnswers(context.Background(), "q"); err == nil {
		t.Fatal("Expected error for response without JSON, got nil")
	}
}

func TestOllamaProvider_Ping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"running", http.StatusOK, false},
		{"unhealthy", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/tags" {
					t.Errorf("Expected path /api/tags, got %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			})

			err := provider.Ping(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Ping() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOllamaProvider_PingUnreachable(t *testing.T) {
	provider, err := NewOllamaProvider(Config{BaseURL: "http://127.0.0.1:1", Model: "m", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if err := provider.Ping(context.Background()); err == nil {
		t.Error("expected error for unreachable server")
	}
}
