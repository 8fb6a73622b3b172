package coordinator

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/devon-ng/gatewaycore/internal/config"
	"github.com/devon-ng/gatewaycore/internal/gatewayerr"
	"github.com/devon-ng/gatewaycore/internal/params"
	"github.com/devon-ng/gatewaycore/internal/provider"
)

// turn is the in-memory state of one end-to-end streaming invocation
// (the spec's Turn). It is created fresh per call and discarded at its
// first terminal chunk.
type turn struct {
	streamID         string
	provider         config.ProviderID
	adapter          provider.Adapter
	resolved         params.Resolved
	prompt           string
	formattedContent string
	handle           *cancelHandle
	events           chan Chunk
	client           *http.Client
}

// composeStructuredPrompt implements §4.4.a / P9: with empty
// formattedContent the structured prompt equals the raw prompt
// verbatim; otherwise it is the INSTRUCTION/EXTRACTED CONTENT form.
func composeStructuredPrompt(prompt, formattedContent string) string {
	if formattedContent == "" {
		return prompt
	}
	return fmt.Sprintf("# INSTRUCTION\n%s\n# EXTRACTED CONTENT\n%s", prompt, formattedContent)
}

func (t *turn) errorChunk(message string) Chunk {
	return Chunk{Done: true, Model: t.resolved.Model, Error: message}
}

func (t *turn) cancelledChunk(fullContent string) Chunk {
	return Chunk{Done: true, Model: t.resolved.Model, Cancelled: true, FullContent: fullContent}
}

// execute drives the Turn to completion and returns its terminal chunk.
// Mid-stream content chunks are sent directly to t.events as they are
// produced; the caller is responsible for forwarding the returned
// terminal chunk (run does this, so the persisted record and the event
// stream observe it in the same order).
func (t *turn) execute(ctx context.Context) Chunk {
	t.adapter.ResetStreamState()
	structuredPrompt := composeStructuredPrompt(t.prompt, t.formattedContent)

	httpReq, err := t.adapter.BuildRequest(structuredPrompt, t.resolved)
	if err != nil {
		return t.errorChunk(fmt.Sprintf("API Request Setup Error: %v", err))
	}

	// ctx2 is cancelled either by the caller's context or by the Turn's
	// own cancel handle firing — whichever happens first. The watcher
	// goroutine exits as soon as either fires, bounded by cancel()'s
	// defer below.
	ctx2, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-t.handle.Done():
			cancel()
		case <-ctx2.Done():
		}
	}()

	req, err := http.NewRequestWithContext(ctx2, httpReq.Method, httpReq.URL, bytes.NewReader(httpReq.Body))
	if err != nil {
		return t.errorChunk(fmt.Sprintf("API Request Setup Error: %v", err))
	}
	for k, v := range httpReq.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx2.Err() != nil {
			return t.cancelledChunk("")
		}
		return t.errorChunk(fmt.Sprintf("API Request Setup Error: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return t.errorChunk(gatewayerr.Extract(resp.StatusCode, resp.Status, body))
	}

	return t.readStream(ctx2, resp.Body)
}

// readStream implements §4.4.e: decode the body incrementally, split on
// newline, skip empty lines, dispatch each parsed line per §4.6, and on
// EOF flush any trailing partial line before the final success chunk.
func (t *turn) readStream(ctx context.Context, body io.Reader) Chunk {
	var fullContent strings.Builder
	reader := bufio.NewReader(body)

	dispatch := func(line string) (stop bool, errChunk Chunk) {
		event := t.adapter.ParseLine(line)
		switch event.Kind {
		case provider.EventContent:
			if event.Text != "" {
				fullContent.WriteString(event.Text)
				t.events <- Chunk{Text: event.Text, Model: t.resolved.Model}
			}
		case provider.EventContentMulti:
			for _, text := range event.Texts {
				if text == "" {
					continue
				}
				fullContent.WriteString(text)
				t.events <- Chunk{Text: text, Model: t.resolved.Model}
			}
		case provider.EventError:
			return true, t.errorChunk(event.Message)
		case provider.EventDone, provider.EventIgnore:
			// An observation, not a reason to stop reading (see the
			// provider package's Design Notes on EventDone).
		}
		return false, Chunk{}
	}

	for {
		line, readErr := reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed != "" {
			if stop, errChunk := dispatch(trimmed); stop {
				return errChunk
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return Chunk{Done: true, Model: t.resolved.Model, FullContent: fullContent.String()}
			}
			if ctx.Err() != nil {
				return t.cancelledChunk(fullContent.String())
			}
			return t.errorChunk(fmt.Sprintf("Stream read error: %v", readErr))
		}
	}
}
