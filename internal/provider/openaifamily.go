package provider

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/devon-ng/gatewaycore/internal/config"
	"github.com/devon-ng/gatewaycore/internal/params"
)

// family distinguishes the one real behavioral difference among the
// four OpenAI-shaped wire protocols: how history gets folded into
// `messages`. Everything else — request shape, auth header, stream
// framing — is identical across openai/grok/mistral/deepseek, so they
// share this single adapter type instead of four near-duplicate files.
type family int

const (
	styleOpenAI family = iota
	styleGrok
	styleMistral
	styleDeepSeek
)

// openAIFamilyAdapter implements Adapter for openai, grok, mistral, and
// deepseek — the four providers whose wire protocol is OpenAI's
// chat-completions shape with bearer-token auth.
type openAIFamilyAdapter struct {
	endpoint string
	apiKey   string
	family   family
}

func newOpenAIFamilyAdapter(endpoint string, f family) *openAIFamilyAdapter {
	return &openAIFamilyAdapter{endpoint: endpoint, family: f}
}

func (a *openAIFamilyAdapter) Initialize(apiKey string) { a.apiKey = apiKey }

func (a *openAIFamilyAdapter) ResetStreamState() {}

// buildMessages assembles `[system?] ++ history ++ {user, structuredPrompt}`.
// DeepSeek additionally merges adjacent same-role entries (P7); the
// other three families pass history through unchanged.
func (a *openAIFamilyAdapter) buildMessages(structuredPrompt string, p params.Resolved) []map[string]string {
	if a.family == styleDeepSeek {
		return buildDeepSeekMessages(structuredPrompt, p)
	}

	var msgs []map[string]string
	if p.SystemPrompt != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": p.SystemPrompt})
	}
	for _, m := range p.ConversationHistory {
		msgs = append(msgs, map[string]string{"role": string(m.Role), "content": m.Content})
	}
	msgs = append(msgs, map[string]string{"role": "user", "content": structuredPrompt})
	return msgs
}

// buildDeepSeekMessages implements the merge rule from §4.4: the API
// rejects two consecutive same-role messages, so adjacent entries with
// the same mapped role are joined with "\n\n", and the current-turn
// user message is folded into a trailing user message the same way.
// Only user/assistant history entries are passed through.
func buildDeepSeekMessages(structuredPrompt string, p params.Resolved) []map[string]string {
	var msgs []map[string]string

	appendMerged := func(role, content string) {
		if n := len(msgs); n > 0 && msgs[n-1]["role"] == role {
			msgs[n-1]["content"] = msgs[n-1]["content"] + "\n\n" + content
			return
		}
		msgs = append(msgs, map[string]string{"role": role, "content": content})
	}

	if p.SystemPrompt != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": p.SystemPrompt})
	}

	for _, m := range p.ConversationHistory {
		role := string(m.Role)
		if role != "user" && role != "assistant" {
			log.Printf("deepseek: skipping history entry with unsupported role %q", role)
			continue
		}
		appendMerged(role, m.Content)
	}
	appendMerged("user", structuredPrompt)

	for i := 1; i < len(msgs); i++ {
		if msgs[i]["role"] == msgs[i-1]["role"] {
			log.Printf("deepseek: consecutive roles found after merge at index %d", i)
		}
	}
	return msgs
}

func (a *openAIFamilyAdapter) buildBody(structuredPrompt string, p params.Resolved, maxTokensOverride int) ([]byte, error) {
	body := map[string]any{
		"model":    p.Model,
		"stream":   true,
		"messages": a.buildMessages(structuredPrompt, p),
	}
	maxTokens := p.MaxTokens
	if maxTokensOverride > 0 {
		maxTokens = maxTokensOverride
	}
	tokenParam := p.TokenParameter
	if tokenParam == "" {
		tokenParam = "max_tokens"
	}
	body[tokenParam] = maxTokens

	// reasoning-style models (o1-class) reject temperature/top_p entirely.
	if p.ParameterStyle != config.StyleReasoning {
		if p.Temperature != nil {
			body["temperature"] = *p.Temperature
		}
		if p.TopP != nil {
			body["top_p"] = *p.TopP
		}
	}

	return json.Marshal(body)
}

func (a *openAIFamilyAdapter) BuildRequest(structuredPrompt string, p params.Resolved) (HTTPRequest, error) {
	raw, err := a.buildBody(structuredPrompt, p, 0)
	if err != nil {
		return HTTPRequest{}, fmt.Errorf("building request body: %w", err)
	}
	return HTTPRequest{
		Method: http.MethodPost,
		URL:    a.endpoint,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + a.apiKey,
		},
		Body: raw,
	}, nil
}

func (a *openAIFamilyAdapter) BuildValidationRequest(p params.Resolved) (HTTPRequest, error) {
	raw, err := a.buildBody("ping", p, 1)
	if err != nil {
		return HTTPRequest{}, fmt.Errorf("building validation request: %w", err)
	}
	return HTTPRequest{
		Method: http.MethodPost,
		URL:    a.endpoint,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + a.apiKey,
		},
		Body: raw,
	}, nil
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ParseLine implements the shared OpenAI-family framing: the literal
// sentinel `data: [DONE]`, else a `data: ` prefixed JSON payload whose
// choices[0].delta.content is the text fragment.
func (a *openAIFamilyAdapter) ParseLine(line string) StreamEvent {
	if line == "data: [DONE]" {
		return doneEvent()
	}
	if !strings.HasPrefix(line, "data: ") {
		return ignoreEvent()
	}

	var chunk openAIStreamChunk
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
		return errorEvent(fmt.Sprintf("Error parsing stream data: %v", err))
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return ignoreEvent()
	}
	return contentEvent(chunk.Choices[0].Delta.Content)
}
