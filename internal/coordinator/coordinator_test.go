package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devon-ng/gatewaycore/internal/config"
	"github.com/devon-ng/gatewaycore/internal/kv/memstore"
	"github.com/devon-ng/gatewaycore/internal/params"
	"github.com/devon-ng/gatewaycore/internal/provider"
)

func boolPtr(b bool) *bool { return &b }

func newTestCoordinator(t *testing.T, endpoint string) *Coordinator {
	t.Helper()
	cfg := &config.Config{
		Providers: map[config.ProviderID]config.ProviderAPIConfig{
			config.ProviderOpenAI: {
				Endpoint:     endpoint,
				DefaultModel: "gpt-4o",
				Models: map[string]config.ModelDescriptor{
					"gpt-4o": {
						ID: "gpt-4o", MaxTokens: 1024, TokenParameter: "max_tokens",
						ParameterStyle: config.StyleStandard, SupportsTemperature: boolPtr(true),
					},
				},
			},
		},
	}
	resolver := params.New(cfg, params.NewSettingsStore(memstore.New()))
	return New(cfg, resolver, provider.NewRegistry(), memstore.New(), http.DefaultClient, nil)
}

func drain(t *testing.T, events <-chan Chunk, timeout time.Duration) []Chunk {
	t.Helper()
	var out []Chunk
	deadline := time.After(timeout)
	for {
		select {
		case c, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, c)
			if c.Done {
				return out
			}
		case <-deadline:
			t.Fatal("timed out waiting for events")
			return out
		}
	}
}

func TestProcessContentViaApi_OpenAIHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", `{"choices":[{"delta":{"content":"Hi"}}]}`)
		flusher.Flush()
		fmt.Fprintf(w, "data: %s\n\n", `{"choices":[{"delta":{"content":" there"}}]}`)
		flusher.Flush()
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	c := newTestCoordinator(t, srv.URL)
	streamID, err := c.ProcessContentViaApi(context.Background(), TurnInput{
		ProviderID: config.ProviderOpenAI, ModelID: "gpt-4o", Prompt: "Hello", APIKey: "sk-test",
	})
	if err != nil {
		t.Fatalf("ProcessContentViaApi() error = %v", err)
	}

	events, ok := c.Events(streamID)
	if !ok {
		t.Fatal("Events() not found for new stream")
	}
	chunks := drain(t, events, 2*time.Second)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "Hi" || chunks[0].Done {
		t.Errorf("chunk0 = %+v", chunks[0])
	}
	if chunks[1].Text != " there" || chunks[1].Done {
		t.Errorf("chunk1 = %+v", chunks[1])
	}
	final := chunks[2]
	if !final.Done || final.FullContent != "Hi there" || final.Error != "" || final.Cancelled {
		t.Errorf("final chunk = %+v, want done with fullContent=Hi there", final)
	}

	status, _, content, errMsg, err := c.Record(context.Background(), streamID)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if status != "completed" || content != "Hi there" || errMsg != "" {
		t.Errorf("Record() = (%q, %q, %q)", status, content, errMsg)
	}
}

func TestProcessContentViaApi_HTTP401IsExtracted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key"}}`)
	}))
	defer srv.Close()

	c := newTestCoordinator(t, srv.URL)
	streamID, err := c.ProcessContentViaApi(context.Background(), TurnInput{
		ProviderID: config.ProviderOpenAI, ModelID: "gpt-4o", Prompt: "Hello", APIKey: "sk-test",
	})
	if err != nil {
		t.Fatalf("ProcessContentViaApi() error = %v", err)
	}

	events, _ := c.Events(streamID)
	chunks := drain(t, events, 2*time.Second)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (error only): %+v", len(chunks), chunks)
	}

	want := "API error (401): Incorrect API key"
	if chunks[0].Error != want {
		t.Errorf("Error = %q, want %q", chunks[0].Error, want)
	}
	if chunks[0].Cancelled {
		t.Error("P4 violated: error chunk also marked cancelled")
	}

	status, _, _, errMsg, err := c.Record(context.Background(), streamID)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if status != "error" || errMsg != want {
		t.Errorf("Record() = (%q, %q)", status, errMsg)
	}
}

func TestProcessContentViaApi_Cancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: %s\n\n", `{"choices":[{"delta":{"content":"Hi"}}]}`)
		flusher.Flush()
		fmt.Fprintf(w, "data: %s\n\n", `{"choices":[{"delta":{"content":" there"}}]}`)
		flusher.Flush()
		// Simulate a provider that keeps the connection open far longer
		// than the test should have to wait for cancellation to land.
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestCoordinator(t, srv.URL)
	streamID, err := c.ProcessContentViaApi(context.Background(), TurnInput{
		ProviderID: config.ProviderOpenAI, ModelID: "gpt-4o", Prompt: "Hello", APIKey: "sk-test",
	})
	if err != nil {
		t.Fatalf("ProcessContentViaApi() error = %v", err)
	}
	events, _ := c.Events(streamID)

	var got []Chunk
	for i := 0; i < 2; i++ {
		select {
		case c := <-events:
			got = append(got, c)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for mid-stream chunks")
		}
	}

	if err := c.Cancel(streamID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	rest := drain(t, events, 2*time.Second)
	got = append(got, rest...)

	final := got[len(got)-1]
	if !final.Done || !final.Cancelled || final.Error != "" {
		t.Fatalf("final chunk = %+v, want cancelled with no error", final)
	}
	if final.FullContent != "Hi there" {
		t.Errorf("FullContent = %q, want %q", final.FullContent, "Hi there")
	}

	status, _, content, errMsg, err := c.Record(context.Background(), streamID)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if status != "completed" || content != "Hi there" || errMsg != "" {
		t.Errorf("Record() = (%q, %q, %q), want completed/Hi there/no error", status, content, errMsg)
	}
}

func TestCancel_UnknownStreamReturnsError(t *testing.T) {
	c := newTestCoordinator(t, "http://unused")
	if err := c.Cancel("stream_does_not_exist"); err == nil {
		t.Fatal("expected error for unknown stream")
	}
}
