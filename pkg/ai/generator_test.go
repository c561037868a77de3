package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewGeneratorSelectsProvider(t *testing.T) {
	cases := []struct {
		provider string
		wantErr  bool
	}{
		{provider: "", wantErr: false},
		{provider: "ollama", wantErr: false},
		{provider: "openai-compat", wantErr: false},
		{provider: "gemini", wantErr: false},
		{provider: "bedrock", wantErr: true},
	}
	for _, tc := range cases {
		gen, err := NewGenerator(Config{Provider: tc.provider, APIKey: "test-key", Model: "m"})
		if tc.wantErr {
			if err == nil {
				t.Fatalf("provider %q: expected error", tc.provider)
			}
			continue
		}
		if err != nil {
			t.Fatalf("provider %q: %v", tc.provider, err)
		}
		if gen == nil {
			t.Fatalf("provider %q: nil generator", tc.provider)
		}
	}
}

func TestOllamaGeneratorSendsOutputBound(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaChatMessage{Role: "assistant", Content: "a short summary"},
		})
	}))
	defer srv.Close()

	gen := NewOllamaGenerator(NewOllamaClient(srv.URL), "llama3")
	candidates, err := gen.Generate(context.Background(), Prompt{System: "summarize", User: "long text"}, Options{MaxTokens: 64})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(candidates) != 1 || candidates[0] != "a short summary" {
		t.Fatalf("unexpected candidates: %v", candidates)
	}
	if got.Options["num_predict"] != float64(64) {
		t.Fatalf("num_predict = %v, want 64", got.Options["num_predict"])
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestOllamaGeneratorEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{})
	}))
	defer srv.Close()

	gen := NewOllamaGenerator(NewOllamaClient(srv.URL), "llama3")
	if _, err := gen.Generate(context.Background(), Prompt{User: "hi"}, Options{}); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got: %v", err)
	}
}

func TestOpenAICompatGeneratorMapsOptions(t *testing.T) {
	var got oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Fatalf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"first"}},{"message":{"role":"assistant","content":"second"}}]}`))
	}))
	defer srv.Close()

	gen := NewOpenAICompatGenerator(srv.URL+"/v1", "sk-test", "gpt-4o-mini")
	candidates, err := gen.Generate(context.Background(), Prompt{System: "s", User: "u"}, Options{
		MaxTokens:   120,
		Temperature: 0.3,
		TopP:        0.9,
		Candidates:  2,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(candidates) != 2 || candidates[0] != "first" {
		t.Fatalf("unexpected candidates: %v", candidates)
	}
	if got.MaxTokens != 120 {
		t.Fatalf("max_tokens = %d, want 120", got.MaxTokens)
	}
	if got.Temperature != 0.3 || got.TopP != 0.9 || got.N != 2 {
		t.Fatalf("unexpected decoding params: %+v", got)
	}
}

func TestOpenAICompatGeneratorAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	gen := NewOpenAICompatGenerator(srv.URL+"/v1", "", "gpt-4o-mini")
	_, err := gen.Generate(context.Background(), Prompt{User: "u"}, Options{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got: %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.Message != "rate limited" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestGeminiGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGeminiGenerator("", "gemini-2.0-flash"); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestGeminiGeneratorParsesCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.MaxOutputTokens != 256 {
			t.Fatalf("missing maxOutputTokens: %+v", req.GenerationConfig)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"answer"}]}}]}`))
	}))
	defer srv.Close()

	gen, err := NewGeminiGenerator("test-key", "models/gemini-2.0-flash")
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	gen.baseURL = srv.URL
	candidates, err := gen.Generate(context.Background(), Prompt{User: "question"}, Options{MaxTokens: 256})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(candidates) != 1 || candidates[0] != "answer" {
		t.Fatalf("unexpected candidates: %v", candidates)
	}
}
