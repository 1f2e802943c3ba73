// Package analyzer classifies extracted page text (topic and language)
// through the Gemini generateContent REST API.
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxClassifyChars bounds how much page text is sent for classification; a
// page opening is plenty to determine topic and language.
const maxClassifyChars = 4000

const classifyPrompt = `Classify the following web page text. Respond with a JSON object with exactly two string fields: "topic" (a short noun phrase, e.g. "world news", "sports", "technology") and "language" (the English name of the language, e.g. "English", "Italian").`

// -- Gemini API payloads (internal to this file) --

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Analyzer implements schemas.TextAnalyzer.
type Analyzer struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ schemas.TextAnalyzer = (*Analyzer)(nil)

// New initializes the analyzer client.
func New(cfg config.AnalyzerConfig, logger *zap.Logger) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("analyzer API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	return &Analyzer{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("analyzer"),
	}, nil
}

// Classify determines the topic and language of the text.
func (a *Analyzer) Classify(ctx context.Context, text string) (*schemas.Classification, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text to classify")
	}
	if len(text) > maxClassifyChars {
		text = text[:maxClassifyChars]
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: text}},
			Role:  "user",
		}},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: classifyPrompt}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classification API returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("classification response contained no candidates")
	}

	var result schemas.Classification
	raw := parsed.Candidates[0].Content.Parts[0].Text
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to parse classification %q: %w", raw, err)
	}

	a.logger.Debug("Text classified",
		zap.String("topic", result.Topic), zap.String("language", result.Language))
	return &result, nil
}
