// Package llm extracts structured product data from reduced page content
// using an OpenAI-compatible chat completions endpoint. Extraction never
// fails the request: any model, transport, or parsing problem degrades to
// an empty result with a reason attached.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pagelens/pagelens/internal/models"
)

const systemPrompt = `You are a product data extraction assistant. You will be given the reduced HTML content of a retail product page, possibly including schema.org JSON-LD blocks.

Extract the following fields and respond with ONLY a JSON object, no other text:
{
  "price": <number or null>,
  "title": <string>,
  "size": <string>,
  "color": <string>
}

Rules:
- price: the current numeric selling price only. Ignore crossed-out, "was", or comparison prices. Use null if no price is visible.
- title: the concise product name, without brand taglines or promotional text. Use "" if not found.
- size: the currently selected or displayed size variant. Use "" if no size is selected or shown.
- color: the currently selected or displayed color variant. Use "" if no color is selected or shown.
- Prefer values from JSON-LD blocks when present.
- Never invent values.`

// Outcome is the result of an extraction attempt. Available is false when
// extraction could not run or did not produce usable data; Reason says why.
type Outcome struct {
	Data      models.ProductData
	Available bool
	Reason    string
}

// Extracted wraps a successful extraction.
func Extracted(data models.ProductData) Outcome {
	return Outcome{Data: data, Available: true}
}

// Unavailable wraps a degraded outcome with empty defaults.
func Unavailable(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Extractor calls an OpenAI-compatible API to pull product fields from
// reduced page content.
type Extractor struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds the extractor settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// New creates an extractor. An empty API key produces a disabled
// extractor whose Extract always returns an unavailable outcome.
func New(cfg Config, logger *slog.Logger) *Extractor {
	return &Extractor{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Enabled reports whether an API key is configured.
func (e *Extractor) Enabled() bool {
	return e.apiKey != ""
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Extract asks the model for product fields. It never returns an error;
// every failure mode maps to an unavailable outcome.
func (e *Extractor) Extract(ctx context.Context, content string) Outcome {
	if !e.Enabled() {
		return Unavailable("extraction disabled: no API key configured")
	}
	if strings.TrimSpace(content) == "" {
		return Unavailable("no content to extract from")
	}

	reqBody := chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content},
		},
		Temperature:    0.1,
		MaxTokens:      e.maxTokens,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Unavailable(fmt.Sprintf("failed to marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Unavailable(fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Warn("extraction request failed", "error", err)
		return Unavailable(fmt.Sprintf("extraction request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Unavailable(fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("extraction API returned error status",
			"status", resp.StatusCode, "body", string(body))
		return Unavailable(fmt.Sprintf("extraction API status %d", resp.StatusCode))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return Unavailable(fmt.Sprintf("invalid API response: %v", err))
	}
	if chat.Error != nil {
		return Unavailable("extraction API error: " + chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return Unavailable("extraction API returned no choices")
	}

	return parseModelOutput(chat.Choices[0].Message.Content)
}

// parseModelOutput validates the model's JSON field by field. A wrong type
// in one field degrades that field, not the whole result.
func parseModelOutput(content string) Outcome {
	content = stripFences(content)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Unavailable(fmt.Sprintf("model output is not valid JSON: %v", err))
	}

	var data models.ProductData

	if v, ok := raw["price"]; ok {
		var price float64
		if err := json.Unmarshal(v, &price); err == nil {
			data.Price = &price
		} else {
			// Models occasionally quote the number.
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				var p float64
				if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &p); err == nil {
					data.Price = &p
				}
			}
		}
	}
	if v, ok := raw["title"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			data.Title = strings.TrimSpace(s)
		}
	}
	if v, ok := raw["size"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			data.Size = strings.TrimSpace(s)
		}
	}
	if v, ok := raw["color"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			data.Color = strings.TrimSpace(s)
		}
	}

	return Extracted(data)
}

// stripFences removes a markdown code fence around the model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
