// Package coordinator implements the Stream Coordinator (C6): it drives
// one end-to-end Turn from a resolved parameter set through a provider
// Adapter to a terminal chunk callback, owns the process-wide
// streamId -> cancel handle table, and persists the last-known response
// record for each stream. The shared orchestration the Design Notes
// call for — structured-prompt composition, the HTTP call, the
// line-by-line stream loop, and chunk dispatch — lives here rather than
// in a base adapter type; adapters are held only as the Adapter
// interface.
package coordinator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/devon-ng/gatewaycore/internal/config"
	"github.com/devon-ng/gatewaycore/internal/gatewayerr"
	"github.com/devon-ng/gatewaycore/internal/kv"
	"github.com/devon-ng/gatewaycore/internal/metrics"
	"github.com/devon-ng/gatewaycore/internal/params"
	"github.com/devon-ng/gatewaycore/internal/provider"
)

// Chunk is one onChunk invocation (§6.2). Exactly one terminal chunk
// (Done true) is ever emitted for a Turn. A successful one carries
// FullContent, a cancelled one carries Cancelled plus the partial
// FullContent, and a failed one carries Error; Cancelled and Error are
// never set together (P4).
type Chunk struct {
	Text        string `json:"chunk"`
	Done        bool   `json:"done"`
	Model       string `json:"model"`
	FullContent string `json:"fullContent,omitempty"`
	Cancelled   bool   `json:"cancelled,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TurnInput bundles one processContentViaApi call's arguments.
type TurnInput struct {
	TabID               int
	ProviderID          config.ProviderID
	ModelID             string
	Source              params.Source
	Prompt              string
	ConversationHistory []params.Message
	FormattedContent    string
	APIKey              string
}

// Coordinator is the Stream Coordinator. One instance is shared across
// Turns; each Turn gets its own adapter instance, goroutine, and chunk
// channel — the only state shared across Turns is the cancel-handle
// table and the persisted response records, both guarded here.
type Coordinator struct {
	cfg       *config.Config
	resolver  *params.Resolver
	registry  *provider.Registry
	responses kv.Store
	client    *http.Client
	metrics   *metrics.Recorder

	mu      sync.Mutex
	cancels map[string]*cancelHandle
	events  map[string]chan Chunk
}

// New builds a Coordinator. client is the shared *http.Client used for
// every provider call; responses is the backing store for persisted
// streaming-response records (§6.4). recorder may be nil, in which case
// metrics are simply not recorded — useful for tests that don't care.
func New(cfg *config.Config, resolver *params.Resolver, registry *provider.Registry, responses kv.Store, client *http.Client, recorder *metrics.Recorder) *Coordinator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Coordinator{
		cfg:       cfg,
		resolver:  resolver,
		registry:  registry,
		responses: responses,
		client:    client,
		metrics:   recorder,
		cancels:   make(map[string]*cancelHandle),
		events:    make(map[string]chan Chunk),
	}
}

func newStreamID() string {
	var buf [3]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("stream_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf[:]))
}

// ProcessContentViaApi starts a new Turn and returns its streamId
// immediately; the Turn itself runs on a background goroutine,
// delivering chunks to the channel returned by Events(streamId) until
// its terminal callback, per §4.6.
func (c *Coordinator) ProcessContentViaApi(ctx context.Context, in TurnInput) (string, error) {
	providerCfg, err := c.cfg.Provider(in.ProviderID)
	if err != nil {
		return "", gatewayerr.Wrap(gatewayerr.KindSetup, err, "")
	}

	resolved, err := c.resolver.Resolve(ctx, params.Input{
		ProviderID:          in.ProviderID,
		ModelID:             in.ModelID,
		ConversationHistory: in.ConversationHistory,
	})
	if err != nil {
		return "", err
	}

	adapter, err := c.registry.New(in.ProviderID, providerCfg.Endpoint)
	if err != nil {
		return "", gatewayerr.Wrap(gatewayerr.KindSetup, err, "")
	}
	adapter.Initialize(in.APIKey)

	streamID := newStreamID()
	handle := newCancelHandle()
	events := make(chan Chunk, 8)

	c.mu.Lock()
	c.cancels[streamID] = handle
	c.events[streamID] = events
	c.mu.Unlock()

	if err := c.putRecord(ctx, streamID, responseRecord{
		Status:     "streaming",
		ProviderID: in.ProviderID,
		Model:      resolved.Model,
		Timestamp:  time.Now().UnixMilli(),
	}); err != nil {
		c.forget(streamID)
		return "", fmt.Errorf("persisting initial response record: %w", err)
	}

	t := &turn{
		streamID: streamID,
		provider: in.ProviderID,
		adapter:  adapter,
		resolved: resolved,
		prompt:   in.Prompt,
		formattedContent: in.FormattedContent,
		handle:   handle,
		events:   events,
		client:   c.client,
	}

	go c.run(context.Background(), t)

	return streamID, nil
}

// run executes the turn and guarantees cleanup: exactly one terminal
// chunk is sent, the cancel handle and event channel are deregistered,
// and the persisted record reflects the terminal state (P1).
func (c *Coordinator) run(ctx context.Context, t *turn) {
	var stopTimer func(metrics.Outcome)
	if c.metrics != nil {
		stopTimer = c.metrics.TurnStarted(t.provider)
	}

	defer func() {
		close(t.events)
		c.forget(t.streamID)
	}()

	final := t.execute(ctx)
	t.events <- final

	if stopTimer != nil {
		switch {
		case final.Cancelled:
			stopTimer(metrics.OutcomeCancelled)
		case final.Error != "":
			stopTimer(metrics.OutcomeError)
		default:
			stopTimer(metrics.OutcomeCompleted)
		}
	}

	rec := responseRecord{
		Model:      t.resolved.Model,
		ProviderID: t.provider,
		Content:    final.FullContent,
		Timestamp:  time.Now().UnixMilli(),
	}
	if final.Error != "" {
		rec.Status = "error"
		rec.Error = final.Error
	} else {
		// Both natural completion and user cancellation persist as
		// "completed" with whatever partial content accumulated —
		// a cancel is success-with-partial-content from the
		// persistence layer's standpoint.
		rec.Status = "completed"
	}
	_ = c.putRecord(context.Background(), t.streamID, rec)
}

func (c *Coordinator) forget(streamID string) {
	c.mu.Lock()
	delete(c.cancels, streamID)
	delete(c.events, streamID)
	c.mu.Unlock()
}

// Events returns the channel a caller reads terminal/mid-stream chunks
// from for one stream, and whether that stream is currently known.
func (c *Coordinator) Events(streamID string) (<-chan Chunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.events[streamID]
	return ch, ok
}

// Cancel signals the cancel handle for streamID. The handle is
// edge-triggered and idempotent (§5); a second Cancel on the same
// stream is a no-op, not an error.
func (c *Coordinator) Cancel(streamID string) error {
	c.mu.Lock()
	handle, ok := c.cancels[streamID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("stream not found or already completed/cancelled")
	}
	handle.signal()
	return nil
}

type responseRecord struct {
	Status     string            `json:"status"`
	ProviderID config.ProviderID `json:"providerId"`
	Model      string            `json:"model"`
	Content    string            `json:"content"`
	Timestamp  int64             `json:"timestamp"`
	Error      string            `json:"error,omitempty"`
}

func responseKey(streamID string) string { return "turn:" + streamID }

func (c *Coordinator) putRecord(ctx context.Context, streamID string, rec responseRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal response record: %w", err)
	}
	return c.responses.Put(ctx, responseKey(streamID), string(raw))
}

// Record loads the persisted response record for a stream, mainly for
// tests and diagnostics — the HTTP surface itself only needs Events.
func (c *Coordinator) Record(ctx context.Context, streamID string) (status, model, content, errMsg string, err error) {
	raw, err := c.responses.Get(ctx, responseKey(streamID))
	if err != nil {
		return "", "", "", "", err
	}
	var rec responseRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return "", "", "", "", fmt.Errorf("corrupt response record: %w", err)
	}
	return rec.Status, rec.Model, rec.Content, rec.Error, nil
}
