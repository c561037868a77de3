package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoCandidates signals that the backend answered but produced no usable text.
var ErrNoCandidates = errors.New("backend returned no candidates")

// Prompt is a role-tagged instruction: a fixed system directive plus the
// literal user text. Providers without a system role fold the two parts
// into a single message.
type Prompt struct {
	System string
	User   string
}

// Options carries the output bound and decoding parameters for one call.
// MaxTokens is the only contract-level field; the rest are provider tuning
// knobs and providers ignore the ones they cannot express.
type Options struct {
	MaxTokens         int
	Temperature       float64
	TopP              float64
	Candidates        int
	Beams             int
	LengthPenalty     float64
	RepetitionPenalty float64
	NoRepeatNGram     int
}

// Generator produces candidate completions for a prompt.
// All providers (Ollama, OpenAI-compatible, Gemini) implement this
// interface. Callers consume candidates in order, first one primary.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt, opts Options) ([]string, error)
}

// Config selects and configures a provider for NewGenerator.
type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
}

// NewGenerator builds a Generator for the configured provider.
// Supported providers: "ollama" (default), "openai-compat", "gemini".
func NewGenerator(cfg Config) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "ollama"
	}
	switch provider {
	case "ollama":
		return NewOllamaGenerator(NewOllamaClient(cfg.BaseURL), cfg.Model), nil
	case "openai", "openai-compat":
		return NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case "gemini":
		return NewGeminiGenerator(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", cfg.Provider)
	}
}
