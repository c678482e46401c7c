// Package wall owns the flooding side of the client: a pool of TCP
// connections to the pixel wall with one sender goroutine per connection,
// each fed from its own shuffle of the active command set, plus the
// byte-accurate throughput counter the reporting path consumes.
package wall

import (
	"net"
	"strconv"
)

// Endpoint identifies the pixel wall. Changing it replaces the whole pool.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns the dialable host:port form.
func (e Endpoint) Addr() string { return net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) }

func (e Endpoint) String() string { return e.Addr() }
