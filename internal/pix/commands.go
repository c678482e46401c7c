package pix

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
)

// ErrInvalidColor reports a pixel color that is not valid hexadecimal of
// exactly 6 or 8 characters.
var ErrInvalidColor = errors.New("pxflood: invalid color format")

// A CommandSet holds the compiled draw commands for one (image, offset)
// pair together with the counts the throughput estimate needs. It is
// immutable once built; reconfiguration compiles a new set and publishes
// it whole.
type CommandSet struct {
	cmds    [][]byte
	byteLen int
}

// Compile turns an image plus an (dx, dy) offset into draw commands, one
// per opaque cell in row-major order. Transparent cells are skipped before
// validation. The first malformed color aborts the whole build; a partial
// set is never returned.
func Compile(img Image, dx, dy int) (*CommandSet, error) {
	set := &CommandSet{}
	for y, row := range img.rows {
		for x, tok := range row {
			if tok == Transparent {
				continue
			}
			if _, err := strconv.ParseUint(tok, 16, 32); err != nil {
				return nil, fmt.Errorf("%w: cell (%d,%d) %q", ErrInvalidColor, x, y, tok)
			}
			if len(tok) != 6 && len(tok) != 8 {
				return nil, fmt.Errorf("%w: cell (%d,%d) %q has length %d", ErrInvalidColor, x, y, tok, len(tok))
			}
			cmd := []byte(fmt.Sprintf("PX %d %d %s\n", x+dx, y+dy, tok))
			set.cmds = append(set.cmds, cmd)
			set.byteLen += len(cmd)
		}
	}
	return set, nil
}

// Pixels returns the number of draw commands in the set.
func (s *CommandSet) Pixels() int { return len(s.cmds) }

// ByteLen returns the total serialized length of the set.
func (s *CommandSet) ByteLen() int { return s.byteLen }

// Blob serializes the whole set into one buffer in a fresh random order.
// Every call shuffles independently, so each connection draws the image in
// its own order and simultaneous partial sends from different sockets do
// not reproduce a visible scan pattern.
func (s *CommandSet) Blob() []byte {
	order := make([]int, len(s.cmds))
	for i := range order {
		order[i] = i
	}
	rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	blob := make([]byte, 0, s.byteLen)
	for _, i := range order {
		blob = append(blob, s.cmds[i]...)
	}
	return blob
}
