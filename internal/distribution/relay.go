// Package distribution fans the Annex B access-unit stream out to QUIC
// subscribers. Each subscriber receives one unidirectional stream carrying
// varint-length-prefixed access units in stream order. The relay never
// blocks the demux pipeline: a subscriber that falls behind loses its
// oldest undelivered units.
package distribution

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// viewerBuffer is the per-subscriber channel depth: roughly two seconds of
// video at common frame rates, enough to absorb delivery jitter without
// holding stale frames.
const viewerBuffer = 60

// Viewer is one connected subscriber's delivery queue.
type Viewer struct {
	id      int64
	ch      chan []byte
	sent    atomic.Int64
	dropped atomic.Int64
}

// Units returns the channel on which the viewer receives access units.
func (v *Viewer) Units() <-chan []byte {
	return v.ch
}

// Stats returns the number of units queued for and dropped from this viewer.
func (v *Viewer) Stats() (sent, dropped int64) {
	return v.sent.Load(), v.dropped.Load()
}

// Relay is the fan-out hub between the demux pipeline and all connected
// subscribers.
type Relay struct {
	log    *slog.Logger
	mu     sync.RWMutex
	nextID int64
	views  map[int64]*Viewer
}

// NewRelay creates a Relay with no subscribers.
func NewRelay(log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		log:   log.With("component", "relay"),
		views: make(map[int64]*Viewer),
	}
}

// AddViewer registers a new subscriber and returns its delivery queue.
func (r *Relay) AddViewer() *Viewer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	v := &Viewer{id: r.nextID, ch: make(chan []byte, viewerBuffer)}
	r.views[v.id] = v
	r.log.Debug("viewer added", "id", v.id, "viewers", len(r.views))
	return v
}

// RemoveViewer unregisters a subscriber and closes its queue.
func (r *Relay) RemoveViewer(v *Viewer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.views[v.id]; !ok {
		return
	}
	delete(r.views, v.id)
	close(v.ch)
	r.log.Debug("viewer removed", "id", v.id, "viewers", len(r.views))
}

// ViewerCount returns the number of connected subscribers.
func (r *Relay) ViewerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// WriteAccessUnit distributes one access unit to every subscriber. The unit
// is copied once, so the caller keeps ownership of au. Implements the sink
// interface.
func (r *Relay) WriteAccessUnit(au []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.views) == 0 {
		return nil
	}

	buf := make([]byte, len(au))
	copy(buf, au)

	for _, v := range r.views {
		select {
		case v.ch <- buf:
			v.sent.Add(1)
		default:
			// Queue full: discard the oldest unit to make room.
			select {
			case <-v.ch:
				v.dropped.Add(1)
			default:
			}
			select {
			case v.ch <- buf:
				v.sent.Add(1)
			default:
				v.dropped.Add(1)
			}
		}
	}
	return nil
}

// Close removes every subscriber, closing their queues so delivery loops
// terminate.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range r.views {
		delete(r.views, id)
		close(v.ch)
	}
}
