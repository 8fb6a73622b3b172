package provider

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/devon-ng/gatewaycore/internal/params"
)

const geminiExperimentalMarker = "-exp-"

// geminiAdapter implements Adapter for Google's Gemini API: the model
// id is templated into the URL rather than the body, auth is a query
// parameter rather than a header, and the system prompt is a sibling
// of contents rather than a message in it.
type geminiAdapter struct {
	endpoint     string // base, e.g. https://generativelanguage.googleapis.com
	apiKey       string
	loggedFinish bool // dedupes the finishReason-only info log within one turn
}

// NewGeminiAdapter builds the Gemini adapter. endpoint is the scheme+host
// only (e.g. "https://generativelanguage.googleapis.com") — the version,
// model, and method are templated per call.
func NewGeminiAdapter(endpoint string) *geminiAdapter {
	return &geminiAdapter{endpoint: strings.TrimRight(endpoint, "/")}
}

func (a *geminiAdapter) Initialize(apiKey string) { a.apiKey = apiKey }

// ResetStreamState clears the per-turn dedup flag on the finishReason
// info log so every turn gets its own single log line, not a log line
// suppressed by a previous turn sharing this adapter instance.
func (a *geminiAdapter) ResetStreamState() { a.loggedFinish = false }

func (a *geminiAdapter) apiVersion(modelID string) string {
	if strings.Contains(modelID, geminiExperimentalMarker) {
		return "v1beta"
	}
	return "v1"
}

func (a *geminiAdapter) url(modelID, method string) string {
	return fmt.Sprintf("%s/%s/models/%s%s?alt=sse&key=%s",
		a.endpoint, a.apiVersion(modelID), modelID, method, a.apiKey)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
}

// geminiRole maps the internal assistant role onto Gemini's "model".
func geminiRole(role params.Role) string {
	if role == params.RoleAssistant {
		return "model"
	}
	return "user"
}

func (a *geminiAdapter) buildRequestBody(structuredPrompt string, p params.Resolved, maxTokensOverride int) ([]byte, error) {
	req := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{MaxOutputTokens: p.MaxTokens},
	}
	if maxTokensOverride > 0 {
		req.GenerationConfig.MaxOutputTokens = maxTokensOverride
	}
	if p.Temperature != nil {
		req.GenerationConfig.Temperature = p.Temperature
	}
	if p.TopP != nil {
		req.GenerationConfig.TopP = p.TopP
	}

	for _, m := range p.ConversationHistory {
		if m.Role == params.RoleSystem {
			continue
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  geminiRole(m.Role),
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: structuredPrompt}}})

	// Gemini's system prompt is silently dropped (with a warning) if
	// effective support is false — the resolver has already applied
	// that gate, so SystemPrompt is only ever non-empty here when
	// ModelSupportsSystemPrompt was true at resolve time (P8).
	if p.SystemPrompt != "" {
		if p.ModelSupportsSystemPrompt {
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: p.SystemPrompt}}}
		} else {
			log.Printf("gemini: dropping system prompt: model does not support system instructions")
		}
	}

	return json.Marshal(req)
}

func (a *geminiAdapter) BuildRequest(structuredPrompt string, p params.Resolved) (HTTPRequest, error) {
	raw, err := a.buildRequestBody(structuredPrompt, p, 0)
	if err != nil {
		return HTTPRequest{}, fmt.Errorf("building request body: %w", err)
	}
	return HTTPRequest{
		Method:  http.MethodPost,
		URL:     a.url(p.Model, ":streamGenerateContent"),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    raw,
	}, nil
}

func (a *geminiAdapter) BuildValidationRequest(p params.Resolved) (HTTPRequest, error) {
	raw, err := a.buildRequestBody("ping", p, 1)
	if err != nil {
		return HTTPRequest{}, fmt.Errorf("building validation request: %w", err)
	}
	return HTTPRequest{
		Method:  http.MethodPost,
		URL:     a.url(p.Model, ":generateContent"),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    raw,
	}, nil
}

type geminiStreamResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ParseLine handles Gemini's SSE framing: "data: " prefixed JSON, the
// literal "data: [DONE]" sentinel, an in-band error field, or a
// finishReason-only payload carrying no text (logged, then ignored).
func (a *geminiAdapter) ParseLine(line string) StreamEvent {
	if line == "data: [DONE]" {
		return doneEvent()
	}
	if !strings.HasPrefix(line, "data: ") {
		return ignoreEvent()
	}

	var resp geminiStreamResponse
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &resp); err != nil {
		return errorEvent(fmt.Sprintf("Error parsing stream data: %v", err))
	}

	if resp.Error != nil {
		return errorEvent(resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return ignoreEvent()
	}

	candidate := resp.Candidates[0]
	var texts []string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	if len(texts) > 0 {
		if len(texts) == 1 {
			return contentEvent(texts[0])
		}
		return contentMultiEvent(texts)
	}

	if candidate.FinishReason != "" {
		if !a.loggedFinish {
			log.Printf("gemini: candidate finished with reason %q and no text", candidate.FinishReason)
			a.loggedFinish = true
		}
	}
	return ignoreEvent()
}
