package provider

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/devon-ng/gatewaycore/internal/params"
)

func TestGemini_URLTemplating_StableVsExperimental(t *testing.T) {
	a := NewGeminiAdapter("https://generativelanguage.googleapis.com")
	a.Initialize("my-key")

	req, err := a.BuildRequest("hi", params.Resolved{Model: "gemini-2.0-flash", MaxTokens: 1024})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	want := "https://generativelanguage.googleapis.com/v1/models/gemini-2.0-flash:streamGenerateContent?alt=sse&key=my-key"
	if req.URL != want {
		t.Errorf("URL = %q, want %q", req.URL, want)
	}

	expReq, err := a.BuildRequest("hi", params.Resolved{Model: "gemini-2.0-flash-exp-thinking", MaxTokens: 1024})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if !strings.Contains(expReq.URL, "/v1beta/models/gemini-2.0-flash-exp-thinking:streamGenerateContent") {
		t.Errorf("experimental URL = %q, want v1beta", expReq.URL)
	}

	validateReq, err := a.BuildValidationRequest(params.Resolved{Model: "gemini-2.0-flash", MaxTokens: 1024})
	if err != nil {
		t.Fatalf("BuildValidationRequest() error = %v", err)
	}
	if !strings.Contains(validateReq.URL, ":generateContent") {
		t.Errorf("validation URL = %q, want :generateContent", validateReq.URL)
	}
}

// TestGemini_SystemPromptGating exercises P8: the system prompt is
// attached as systemInstruction only when the resolved parameter set
// says the model supports it; otherwise it is silently dropped, never
// folded into contents.
func TestGemini_SystemPromptGating(t *testing.T) {
	a := NewGeminiAdapter("https://generativelanguage.googleapis.com")
	a.Initialize("my-key")

	supported, err := a.BuildRequest("hi", params.Resolved{
		Model: "gemini-2.0-flash", MaxTokens: 1024,
		SystemPrompt: "be terse", ModelSupportsSystemPrompt: true,
	})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	var supportedBody geminiRequest
	if err := json.Unmarshal(supported.Body, &supportedBody); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if supportedBody.SystemInstruction == nil || supportedBody.SystemInstruction.Parts[0].Text != "be terse" {
		t.Errorf("SystemInstruction = %+v, want attached", supportedBody.SystemInstruction)
	}

	unsupported, err := a.BuildRequest("hi", params.Resolved{
		Model: "gemini-2.0-flash-exp-thinking", MaxTokens: 1024,
		SystemPrompt: "be terse", ModelSupportsSystemPrompt: false,
	})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	var unsupportedBody geminiRequest
	if err := json.Unmarshal(unsupported.Body, &unsupportedBody); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if unsupportedBody.SystemInstruction != nil {
		t.Error("SystemInstruction must be nil when ModelSupportsSystemPrompt is false")
	}
	for _, c := range unsupportedBody.Contents {
		if strings.Contains(c.Parts[0].Text, "be terse") {
			t.Error("dropped system prompt must never be folded into contents")
		}
	}
}

func TestGemini_ParseLine(t *testing.T) {
	a := NewGeminiAdapter("https://generativelanguage.googleapis.com")

	if ev := a.ParseLine("data: [DONE]"); ev.Kind != EventDone {
		t.Errorf("kind = %v, want EventDone", ev.Kind)
	}

	single := `data: {"candidates":[{"content":{"parts":[{"text":"Hi"}]}}]}`
	if ev := a.ParseLine(single); ev.Kind != EventContent || ev.Text != "Hi" {
		t.Errorf("ParseLine(single part) = %+v", ev)
	}

	multi := `data: {"candidates":[{"content":{"parts":[{"text":"Hi"},{"text":" there"}]}}]}`
	ev := a.ParseLine(multi)
	if ev.Kind != EventContentMulti || len(ev.Texts) != 2 {
		t.Errorf("ParseLine(multi part) = %+v", ev)
	}

	finishOnly := `data: {"candidates":[{"finishReason":"STOP"}]}`
	if ev := a.ParseLine(finishOnly); ev.Kind != EventIgnore {
		t.Errorf("ParseLine(finish-only) kind = %v, want EventIgnore", ev.Kind)
	}

	errLine := `data: {"error":{"message":"API key not valid."}}`
	if ev := a.ParseLine(errLine); ev.Kind != EventError || ev.Message != "API key not valid." {
		t.Errorf("ParseLine(error) = %+v", ev)
	}
}
