package wall

import (
	"bytes"
	"net"
	"time"
)

// refillPoll is how often an idle sender rechecks for published work.
const refillPoll = 50 * time.Millisecond

// chunkBytes is the refill granularity. Chunks are cut back to the last
// newline so the residual always holds whole command lines.
const chunkBytes = 64 << 10

type conn struct {
	pool *Pool
	tc   *net.TCPConn

	gen      uint64
	blob     []byte
	cur      int
	residual []byte
}

// run is the per-connection sender loop: refill the residual from this
// connection's shuffle of the active set, write, advance by exactly what
// the kernel accepted. Blocking in Write is the readiness wait; the
// runtime netpoller parks the goroutine until the socket drains.
func (c *conn) run() {
	p := c.pool
	defer p.wg.Done()
	defer p.forget(c)

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if len(c.residual) == 0 {
			sig := p.workSignal()
			if !c.refill() {
				// Nothing published yet, or an empty set: wait for work.
				select {
				case <-p.stop:
					return
				case <-sig:
				case <-time.After(refillPoll):
				}
				continue
			}
		}

		n, err := c.tc.Write(c.residual)
		if n > 0 {
			c.residual = c.residual[n:]
			p.counter.Add(n)
		}
		if err != nil {
			select {
			case <-p.stop:
			default:
				p.log.Warn().Err(err).Str("endpoint", p.endpoint.Addr()).Msg("connection lost")
			}
			return
		}
	}
}

// refill loads the next whole-command chunk, first switching to a fresh
// shuffle of the newest published set if the generation moved. The blob is
// a ring: the cursor wraps to the start on exhaustion, flooding forever.
// Returns false when there is no non-empty set to send from.
func (c *conn) refill() bool {
	w := c.pool.work.Load()
	if w == nil || w.set.Pixels() == 0 {
		return false
	}
	if w.gen != c.gen {
		c.gen = w.gen
		c.blob = w.set.Blob()
		c.cur = 0
	}

	end := c.cur + chunkBytes
	if end >= len(c.blob) {
		c.residual = c.blob[c.cur:]
		c.cur = 0
		return true
	}
	cut := bytes.LastIndexByte(c.blob[c.cur:end], '\n')
	if cut < 0 {
		// A line longer than a chunk; take everything through the blob end.
		c.residual = c.blob[c.cur:]
		c.cur = 0
		return true
	}
	c.residual = c.blob[c.cur : c.cur+cut+1]
	c.cur += cut + 1
	return true
}
