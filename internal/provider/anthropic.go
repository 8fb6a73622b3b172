package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/devon-ng/gatewaycore/internal/params"
)

const anthropicAPIVersion = "2023-06-01"

// anthropicAdapter implements Adapter for Anthropic's /v1/messages API:
// system prompt as a top-level field, content blocks instead of plain
// strings, and named SSE events instead of a single JSON shape per line.
type anthropicAdapter struct {
	endpoint string
	apiKey   string
}

// NewAnthropicAdapter builds the Anthropic adapter bound to endpoint
// (the full /v1/messages URL from the provider's config).
func NewAnthropicAdapter(endpoint string) *anthropicAdapter {
	return &anthropicAdapter{endpoint: endpoint}
}

func (a *anthropicAdapter) Initialize(apiKey string) { a.apiKey = apiKey }

func (a *anthropicAdapter) ResetStreamState() {}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
}

func textMessage(role, text string) anthropicMessage {
	return anthropicMessage{Role: role, Content: []anthropicContentBlock{{Type: "text", Text: text}}}
}

func (a *anthropicAdapter) buildRequestBody(structuredPrompt string, p params.Resolved, maxTokensOverride int) ([]byte, error) {
	req := anthropicRequest{
		Model:     p.Model,
		MaxTokens: p.MaxTokens,
		Stream:    true,
		System:    p.SystemPrompt,
	}
	if maxTokensOverride > 0 {
		req.MaxTokens = maxTokensOverride
	}
	if p.Temperature != nil {
		req.Temperature = p.Temperature
	}
	if p.TopP != nil {
		req.TopP = p.TopP
	}

	for _, m := range p.ConversationHistory {
		req.Messages = append(req.Messages, textMessage(string(m.Role), m.Content))
	}
	req.Messages = append(req.Messages, textMessage("user", structuredPrompt))

	return json.Marshal(req)
}

func (a *anthropicAdapter) headers() map[string]string {
	return map[string]string{
		"Content-Type":                            "application/json",
		"x-api-key":                                a.apiKey,
		"anthropic-version":                        anthropicAPIVersion,
		"anthropic-dangerous-direct-browser-access": "true",
	}
}

func (a *anthropicAdapter) BuildRequest(structuredPrompt string, p params.Resolved) (HTTPRequest, error) {
	raw, err := a.buildRequestBody(structuredPrompt, p, 0)
	if err != nil {
		return HTTPRequest{}, fmt.Errorf("building request body: %w", err)
	}
	return HTTPRequest{Method: http.MethodPost, URL: a.endpoint, Headers: a.headers(), Body: raw}, nil
}

func (a *anthropicAdapter) BuildValidationRequest(p params.Resolved) (HTTPRequest, error) {
	raw, err := a.buildRequestBody("ping", p, 1)
	if err != nil {
		return HTTPRequest{}, fmt.Errorf("building validation request: %w", err)
	}
	return HTTPRequest{Method: http.MethodPost, URL: a.endpoint, Headers: a.headers(), Body: raw}, nil
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseLine handles Anthropic's two line kinds: "event: " lines (only
// message_stop matters) and "data: " lines (content_block_delta and
// in-band error payloads).
func (a *anthropicAdapter) ParseLine(line string) StreamEvent {
	if strings.HasPrefix(line, "event: ") {
		if strings.TrimPrefix(line, "event: ") == "message_stop" {
			return doneEvent()
		}
		return ignoreEvent()
	}
	if !strings.HasPrefix(line, "data: ") {
		return ignoreEvent()
	}

	var event anthropicStreamEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
		return errorEvent(fmt.Sprintf("Error parsing stream data: %v", err))
	}

	switch event.Type {
	case "content_block_delta":
		if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
			return contentEvent(event.Delta.Text)
		}
		return ignoreEvent()
	case "error":
		return errorEvent(fmt.Sprintf("Stream error: %s - %s", event.Error.Type, event.Error.Message))
	default:
		return ignoreEvent()
	}
}
