package provider

import (
	"encoding/json"
	"testing"

	"github.com/devon-ng/gatewaycore/internal/params"
)

func TestAnthropic_BuildRequest_HeadersAndBody(t *testing.T) {
	a := NewAnthropicAdapter("https://api.anthropic.com/v1/messages")
	a.Initialize("sk-ant-test")

	req, err := a.BuildRequest("Hello", params.Resolved{
		Model: "claude-haiku-4-5-20251001", MaxTokens: 2048, SystemPrompt: "be concise",
	})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if req.Headers["x-api-key"] != "sk-ant-test" {
		t.Errorf("x-api-key = %q", req.Headers["x-api-key"])
	}
	if req.Headers["anthropic-version"] != anthropicAPIVersion {
		t.Errorf("anthropic-version = %q", req.Headers["anthropic-version"])
	}

	var body anthropicRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.System != "be concise" {
		t.Errorf("System = %q, want %q", body.System, "be concise")
	}
	if len(body.Messages) != 1 || body.Messages[0].Content[0].Text != "Hello" {
		t.Errorf("Messages = %+v", body.Messages)
	}
}

func TestAnthropic_BuildValidationRequest_UsesMaxTokensOne(t *testing.T) {
	a := NewAnthropicAdapter("https://api.anthropic.com/v1/messages")
	a.Initialize("sk-ant-test")

	req, err := a.BuildValidationRequest(params.Resolved{Model: "claude-haiku-4-5-20251001", MaxTokens: 2048})
	if err != nil {
		t.Fatalf("BuildValidationRequest() error = %v", err)
	}
	var body anthropicRequest
	_ = json.Unmarshal(req.Body, &body)
	if body.MaxTokens != 1 {
		t.Errorf("MaxTokens = %d, want 1", body.MaxTokens)
	}
	if body.Messages[0].Content[0].Text != "ping" {
		t.Errorf("prompt = %q, want ping", body.Messages[0].Content[0].Text)
	}
}

func TestAnthropic_ParseLine(t *testing.T) {
	a := NewAnthropicAdapter("https://api.anthropic.com/v1/messages")

	if ev := a.ParseLine("event: message_stop"); ev.Kind != EventDone {
		t.Errorf("kind = %v, want EventDone", ev.Kind)
	}
	if ev := a.ParseLine("event: ping"); ev.Kind != EventIgnore {
		t.Errorf("kind = %v, want EventIgnore", ev.Kind)
	}

	contentLine := `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi"}}`
	if ev := a.ParseLine(contentLine); ev.Kind != EventContent || ev.Text != "Hi" {
		t.Errorf("ParseLine(content) = %+v", ev)
	}

	errLine := `data: {"type":"error","error":{"type":"overloaded_error","message":"server overloaded"}}`
	ev := a.ParseLine(errLine)
	if ev.Kind != EventError || ev.Message != "Stream error: overloaded_error - server overloaded" {
		t.Errorf("ParseLine(error) = %+v", ev)
	}
}
