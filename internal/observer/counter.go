package observer

import "sync/atomic"

// dropCounter is a small atomic wrapper so ChannelSink's drop count has
// a race-free increment on the hot publish path.
type dropCounter struct {
	n atomic.Uint64
}

func (c *dropCounter) inc() { c.n.Add(1) }

func (c *dropCounter) load() uint64 { return c.n.Load() }
