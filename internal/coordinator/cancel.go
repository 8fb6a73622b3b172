package coordinator

import "sync"

// cancelHandle is an externally-signalable token bound to one Turn's
// in-flight HTTP call and byte-stream read. It is edge-triggered: a
// single signal call fires it, and every subsequent call is a no-op
// (§5's idempotence requirement).
type cancelHandle struct {
	once sync.Once
	done chan struct{}
}

func newCancelHandle() *cancelHandle {
	return &cancelHandle{done: make(chan struct{})}
}

func (h *cancelHandle) signal() {
	h.once.Do(func() { close(h.done) })
}

// Done returns a channel that is closed once signal has been called.
func (h *cancelHandle) Done() <-chan struct{} {
	return h.done
}
