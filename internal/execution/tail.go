package execution

import "sync"

// tailBuffer is an io.Writer that retains only the last max bytes written.
// Output streams of supervised processes are captured through it so a noisy
// tool cannot grow a record without bound. Writes and reads may come from
// different goroutines.
type tailBuffer struct {
	mu        sync.Mutex
	max       int
	buf       []byte
	total     int64
	truncated bool
}

// newTailBuffer creates a tailBuffer keeping the last max bytes.
func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 1
	}
	return &tailBuffer{max: max}
}

// Write appends p, discarding the oldest bytes once capacity is exceeded.
// It never returns an error.
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))

	if len(p) >= b.max {
		b.buf = append(b.buf[:0], p[len(p)-b.max:]...)
		if len(p) > b.max || b.truncated {
			b.truncated = true
		}
		return len(p), nil
	}

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		over := len(b.buf) - b.max
		b.buf = b.buf[over:]
		b.truncated = true
	}

	return len(p), nil
}

// String returns a copy of the retained tail.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.buf)
}

// Truncated reports whether older output was discarded.
func (b *tailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.truncated
}

// TotalWritten returns the total number of bytes ever written, including
// discarded ones.
func (b *tailBuffer) TotalWritten() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.total
}
