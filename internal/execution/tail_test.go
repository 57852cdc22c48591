package execution

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBufferUnderCapacity(t *testing.T) {
	t.Parallel()

	buf := newTailBuffer(32)

	n, err := buf.Write([]byte("hello "))
	assert.NoError(t, err)
	assert.Equal(t, 6, n)

	_, _ = buf.Write([]byte("world"))

	assert.Equal(t, "hello world", buf.String())
	assert.False(t, buf.Truncated())
	assert.Equal(t, int64(11), buf.TotalWritten())
}

func TestTailBufferDropsOldestAcrossWrites(t *testing.T) {
	t.Parallel()

	buf := newTailBuffer(8)

	for _, chunk := range []string{"aaaa", "bbbb", "cccc"} {
		_, _ = buf.Write([]byte(chunk))
	}

	assert.Equal(t, "bbbbcccc", buf.String())
	assert.True(t, buf.Truncated())
	assert.Equal(t, int64(12), buf.TotalWritten())
}

func TestTailBufferSingleOversizedWrite(t *testing.T) {
	t.Parallel()

	buf := newTailBuffer(4)

	n, err := buf.Write([]byte("0123456789"))
	assert.NoError(t, err)
	assert.Equal(t, 10, n)

	assert.Equal(t, "6789", buf.String())
	assert.True(t, buf.Truncated())
}

func TestTailBufferExactCapacityWrite(t *testing.T) {
	t.Parallel()

	buf := newTailBuffer(4)

	_, _ = buf.Write([]byte("abcd"))

	assert.Equal(t, "abcd", buf.String())
	assert.False(t, buf.Truncated())
}

func TestTailBufferStringReturnsCopy(t *testing.T) {
	t.Parallel()

	buf := newTailBuffer(16)
	_, _ = buf.Write([]byte("stable"))

	first := buf.String()
	_, _ = buf.Write([]byte(strings.Repeat("x", 16)))

	assert.Equal(t, "stable", first)
	assert.Equal(t, strings.Repeat("x", 16), buf.String())
}
