package execution

import (
	"context"
	"sync"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

// Handle is the caller's view of one supervised execution. It stays valid
// after the process finishes; Record keeps returning the terminal snapshot.
type Handle struct {
	mu         sync.RWMutex
	record     ExecutionRecord
	done       chan struct{}
	cancelCh   chan struct{}
	cancelOnce sync.Once
}

func newHandle(record ExecutionRecord) *Handle {
	return &Handle{
		record:   record,
		done:     make(chan struct{}),
		cancelCh: make(chan struct{}),
	}
}

// ExecutionID returns the identifier assigned at launch.
func (h *Handle) ExecutionID() types.ID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.record.ExecutionID
}

// Record returns a point-in-time snapshot of the execution.
func (h *Handle) Record() ExecutionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.record.Clone()
}

// Done returns a channel closed once the execution reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the execution reaches a terminal state or ctx is done.
// The returned record is the latest snapshot either way; the error is non-nil
// only when ctx expired first.
func (h *Handle) Wait(ctx context.Context) (ExecutionRecord, error) {
	select {
	case <-h.done:
		return h.Record(), nil
	case <-ctx.Done():
		return h.Record(), ctx.Err()
	}
}

// Cancel requests termination of the execution. It is idempotent and safe to
// call after the execution has already finished.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(func() {
		close(h.cancelCh)
	})
}

// update applies fn to the live record under the handle lock.
func (h *Handle) update(fn func(*ExecutionRecord)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn(&h.record)
}
