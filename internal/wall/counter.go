package wall

import (
	"math"
	"sync/atomic"
)

// Counter accumulates bytes written to the wall. Senders add concurrently;
// the reporting path consumes with ReadAndReset. No history is kept.
type Counter struct {
	n atomic.Int64
}

// Add records n more bytes sent.
func (c *Counter) Add(n int) { c.n.Add(int64(n)) }

// ReadAndReset zeroes the accumulator and converts the consumed byte count
// into an estimated pixel count, scaling by the active command set's
// serialized length and pixel count. A zero byteLen yields zero. Calling
// again before any further sends yields zero.
func (c *Counter) ReadAndReset(byteLen, pixels int) int64 {
	b := c.n.Swap(0)
	if byteLen <= 0 {
		return 0
	}
	return int64(math.Round(float64(b) / float64(byteLen) * float64(pixels)))
}
