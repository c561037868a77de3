package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiGenerator calls the Google AI Studio (Gemini) API.
type GeminiGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGeminiGenerator constructs a Gemini-backed Generator.
func NewGeminiGenerator(apiKey, model string) (*GeminiGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	return &GeminiGenerator{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		model:      normalizeGeminiModel(model),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Generate implements Generator via the generateContent endpoint.
// opts.MaxTokens maps to generationConfig.maxOutputTokens and
// opts.Candidates to candidateCount.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt Prompt, opts Options) ([]string, error) {
	if g.model == "" {
		return nil, fmt.Errorf("gemini generation model required")
	}
	reqBody := geminiGenerateRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: prompt.User}},
			},
		},
	}
	if strings.TrimSpace(prompt.System) != "" {
		reqBody.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: prompt.System}},
		}
	}
	genCfg := geminiGenerationConfig{}
	if opts.MaxTokens > 0 {
		genCfg.MaxOutputTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		genCfg.Temperature = opts.Temperature
	}
	if opts.TopP > 0 {
		genCfg.TopP = opts.TopP
	}
	if opts.Candidates > 1 {
		genCfg.CandidateCount = opts.Candidates
	}
	if genCfg != (geminiGenerationConfig{}) {
		reqBody.GenerationConfig = &genCfg
	}

	var resp geminiGenerateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	if err := g.doJSON(ctx, url, reqBody, &resp); err != nil {
		return nil, err
	}
	candidates := make([]string, 0, len(resp.Candidates))
	for _, candidate := range resp.Candidates {
		if len(candidate.Content.Parts) == 0 {
			continue
		}
		if text := strings.TrimSpace(candidate.Content.Parts[0].Text); text != "" {
			candidates = append(candidates, text)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("gemini generate: %w", ErrNoCandidates)
	}
	return candidates, nil
}

func normalizeGeminiModel(model string) string {
	model = strings.TrimSpace(model)
	return strings.TrimPrefix(model, "models/")
}

func (g *GeminiGenerator) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp geminiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Provider: "gemini", Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	CandidateCount  int     `json:"candidateCount,omitempty"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
