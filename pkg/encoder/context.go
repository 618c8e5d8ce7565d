package encoder

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/user/subband/pkg/frame"
)

// Context holds the working buffers of one frame. It is reference counted: the
// encoder holds one reference while the context is the current reference picture,
// and a predicted frame holds one on the context it predicts from until it is done.
type Context struct {
	refs  atomic.Int32
	table *contextTable

	Number   uint64
	Type     frame.Type
	Geometry frame.Geometry
	Quant    int

	Source        *frame.Frame   // padded input
	Pyramid       []*frame.Frame // level 0 is Source
	Prediction    *frame.Frame   // nil for intra frames
	Residual      *frame.Frame
	Reconstructed *frame.Frame

	// Ref is the context this frame is predicted from. It is held only while the
	// frame is being coded.
	Ref *Context
	// Field is the finest-level motion field of a predicted frame.
	Field []frame.MotionVector
}

// Retain adds a reference and returns c.
func (c *Context) Retain() *Context {
	if c.refs.Add(1) <= 1 {
		panic(fmt.Sprintf("encoder: retain of released context %d", c.Number))
	}
	return c
}

// Release drops a reference. The last release frees the buffers and drops the
// context's own hold on its reference picture.
func (c *Context) Release() {
	n := c.refs.Add(-1)
	switch {
	case n < 0:
		panic(fmt.Sprintf("encoder: context %d released too often", c.Number))
	case n == 0:
		c.free()
	}
}

// Refs returns the current reference count.
func (c *Context) Refs() int {
	return int(c.refs.Load())
}

// retire drops the hold on the reference picture once the frame is coded.
func (c *Context) retire() {
	if c.Ref != nil {
		c.Ref.Release()
		c.Ref = nil
	}
}

func (c *Context) free() {
	c.retire()
	c.Source = nil
	c.Pyramid = nil
	c.Prediction = nil
	c.Residual = nil
	c.Reconstructed = nil
	c.Field = nil
	if c.table != nil {
		c.table.remove(c)
	}
}

// contextTable indexes live contexts by frame number.
type contextTable struct {
	mu     sync.Mutex
	live   map[uint64]*Context
	onFree func(*Context)
}

func newContextTable() *contextTable {
	return &contextTable{live: make(map[uint64]*Context)}
}

// acquire creates a context for frame n holding one reference.
func (t *contextTable) acquire(n uint64, g frame.Geometry) *Context {
	c := &Context{table: t, Number: n, Geometry: g}
	c.refs.Store(1)
	t.mu.Lock()
	t.live[n] = c
	t.mu.Unlock()
	return c
}

func (t *contextTable) remove(c *Context) {
	t.mu.Lock()
	if t.live[c.Number] == c {
		delete(t.live, c.Number)
	}
	onFree := t.onFree
	t.mu.Unlock()
	if onFree != nil {
		onFree(c)
	}
}

// get returns the live context for frame n.
func (t *contextTable) get(n uint64) (*Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.live[n]
	return c, ok
}

func (t *contextTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}
