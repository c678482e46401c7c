package wall

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/flutlabs/pxflood/internal/pix"
)

// ErrNoConnections means zero sockets could be opened to an endpoint, or
// that send failures emptied the pool. Fatal to the current endpoint.
var ErrNoConnections = errors.New("pxflood: no connections established")

// workSet pairs a command set with a generation number so senders can
// detect a newly published set at their refill points.
type workSet struct {
	gen uint64
	set *pix.CommandSet
}

// Pool owns the live TCP connections to one endpoint. The reconfiguration
// side publishes command sets and tears the pool down; the sender
// goroutines own the write path exclusively.
type Pool struct {
	endpoint Endpoint
	counter  *Counter
	log      zerolog.Logger

	work atomic.Pointer[workSet]

	mu    sync.Mutex
	conns map[*conn]struct{}
	wake  chan struct{} // closed and replaced on publish; created by Connect

	stop     chan struct{}
	stopOnce sync.Once

	drained   chan struct{}
	drainOnce sync.Once

	wg sync.WaitGroup
}

// Connect dials up to maxConns connections to endpoint and starts one
// sender per connection. A refused connection means the wall has no more
// capacity for us and stops the dial loop early; any other dial error also
// stops the loop but is logged. Zero connections is ErrNoConnections.
// Each socket gets an enlarged kernel send buffer hint of sendBuf bytes.
func Connect(endpoint Endpoint, maxConns, sendBuf int, dialTimeout time.Duration, counter *Counter, log zerolog.Logger) (*Pool, error) {
	p := &Pool{
		endpoint: endpoint,
		counter:  counter,
		log:      log,
		conns:    make(map[*conn]struct{}),
		wake:     make(chan struct{}),
		stop:     make(chan struct{}),
		drained:  make(chan struct{}),
	}

	d := net.Dialer{Timeout: dialTimeout}
	for i := 0; i < maxConns; i++ {
		nc, err := d.Dial("tcp", endpoint.Addr())
		if err != nil {
			if !errors.Is(err, syscall.ECONNREFUSED) {
				log.Warn().Err(err).Str("endpoint", endpoint.Addr()).Msg("dial failed, stopping early")
			}
			break
		}
		tc := nc.(*net.TCPConn)
		if sendBuf > 0 {
			_ = tc.SetWriteBuffer(sendBuf)
		}
		p.conns[&conn{pool: p, tc: tc}] = struct{}{}
	}

	if len(p.conns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoConnections, endpoint.Addr())
	}
	log.Info().Str("endpoint", endpoint.Addr()).Int("conns", len(p.conns)).Msg("connected to wall")

	for c := range p.conns {
		p.wg.Add(1)
		go c.run()
	}
	return p, nil
}

// SetCommands publishes set to the senders. Each sender picks it up at its
// next refill with an empty residual and builds its own fresh shuffle, so
// a swap never cuts a command line. Senders idling on an empty pool are
// woken immediately.
func (p *Pool) SetCommands(set *pix.CommandSet) {
	gen := uint64(1)
	if w := p.work.Load(); w != nil {
		gen = w.gen + 1
	}
	p.work.Store(&workSet{gen: gen, set: set})

	p.mu.Lock()
	if p.wake != nil {
		close(p.wake)
		p.wake = make(chan struct{})
	}
	p.mu.Unlock()
}

// workSignal returns a channel that closes on the next publish. Senders
// snapshot it before checking for work so a publish between the check and
// the wait still wakes them.
func (p *Pool) workSignal() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wake
}

// Size reports the number of live connections.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Endpoint returns the endpoint this pool is connected to.
func (p *Pool) Endpoint() Endpoint { return p.endpoint }

// Drained is closed when send failures empty the pool while it is not
// being closed; the caller treats it like ErrNoConnections.
func (p *Pool) Drained() <-chan struct{} { return p.drained }

// Close stops the senders, closes every socket to unblock in-flight
// writes, and waits for the senders to exit. Safe to call more than once.
func (p *Pool) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.mu.Lock()
	for c := range p.conns {
		c.tc.Close()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// forget removes a connection whose sender is exiting. The last removal
// outside of Close signals Drained.
func (p *Pool) forget(c *conn) {
	p.mu.Lock()
	delete(p.conns, c)
	empty := len(p.conns) == 0
	p.mu.Unlock()
	c.tc.Close()

	if !empty {
		return
	}
	select {
	case <-p.stop:
	default:
		p.drainOnce.Do(func() { close(p.drained) })
	}
}
