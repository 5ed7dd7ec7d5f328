// Package mp implements the belief-propagation message-passing
// algorithm used to decode LT-coded blocks: a bipartite graph between
// input symbols and the output (coded) symbols that cover them,
// solved by repeatedly peeling off degree-one output symbols and
// XOR-ing their value into the input symbol they now uniquely
// identify.
package mp

// Symbol is the payload carried by every node in the graph. A zero
// value (as reported by isZero) represents an as yet undecoded input
// symbol or an output symbol that has been fully peeled away.
type Symbol[S any] struct {
	IsZero func(S) bool
	XOR    func(a, b S) S
	Zero   func() S
}

type node[S any] struct {
	symbol S
	// next/prev serve two disjoint doubly/singly linked lists: next is
	// used by the ripple (input nodes only, singly linked) and by the
	// degree-one list (output nodes only, doubly linked); the two uses
	// never collide since ripple nodes are inputs and degree-one nodes
	// are outputs.
	next, prev *node[S]
	edges      map[*node[S]]struct{}
}

// Context runs the message-passing algorithm over a bipartite graph
// that starts with a fixed number of empty input symbols and grows
// incrementally as output symbols (and their edges to inputs) are
// added. The graph can be decoded incrementally: Run can be invoked
// many times as new output symbols arrive, without losing progress.
type Context[S any] struct {
	ops Symbol[S]

	inputs  []*node[S]
	outputs []*node[S]

	rippleFirst         *node[S]
	degOneFirst, degOneLast *node[S]

	decodedCount int
}

// NewContext builds a context with inSize empty input symbols.
func NewContext[S any](inSize int, ops Symbol[S]) *Context[S] {
	c := &Context[S]{
		ops:    ops,
		inputs: make([]*node[S], inSize),
	}
	for i := range c.inputs {
		c.inputs[i] = &node[S]{symbol: ops.Zero(), edges: make(map[*node[S]]struct{})}
	}
	return c
}

// AddOutput adds an output symbol connected to the input symbols at
// the given indices. It returns an error if an index is out of range
// or repeated (a parallel edge).
func (c *Context[S]) AddOutput(s S, edges []int) error {
	np := &node[S]{symbol: s, edges: make(map[*node[S]]struct{}, len(edges))}
	c.outputs = append(c.outputs, np)
	for _, idx := range edges {
		if idx < 0 || idx >= len(c.inputs) {
			return ErrEdgeOutOfRange
		}
		inp := c.inputs[idx]
		if _, dup := np.edges[inp]; dup {
			return ErrParallelEdge
		}
		np.edges[inp] = struct{}{}
		inp.edges[np] = struct{}{}
	}
	if len(np.edges) == 1 {
		c.insertDegOne(np)
	}
	return nil
}

// Run executes the message-passing algorithm against the current
// graph. It is a no-op if every input symbol is already decoded.
// Progress made by earlier calls is never undone; a later call with
// more output symbols added can decode further.
func (c *Context[S]) Run() {
	if c.HasDecoded() {
		return
	}
	for {
		c.decodeDegreeOne()
		if c.HasDecoded() || c.rippleFirst == nil {
			c.rippleFirst = nil
			return
		}
		c.processRipple()
	}
}

// Reset returns the context to its initial state: every input symbol
// becomes the zero value again and every output symbol is discarded.
func (c *Context[S]) Reset() {
	c.decodedCount = 0
	c.degOneFirst = nil
	c.degOneLast = nil
	c.rippleFirst = nil
	for _, inp := range c.inputs {
		inp.symbol = c.ops.Zero()
		inp.edges = make(map[*node[S]]struct{})
	}
	c.outputs = nil
}

// InputSize returns the number of input symbols.
func (c *Context[S]) InputSize() int { return len(c.inputs) }

// OutputSize returns the number of output symbols added so far.
func (c *Context[S]) OutputSize() int { return len(c.outputs) }

// DecodedCount returns the number of input symbols decoded as of the
// last call to Run.
func (c *Context[S]) DecodedCount() int { return c.decodedCount }

// HasDecoded reports whether every input symbol has been decoded.
func (c *Context[S]) HasDecoded() bool { return c.decodedCount == len(c.inputs) }

// InputSymbols returns every input symbol, decoded or not; undecoded
// slots hold the zero value.
func (c *Context[S]) InputSymbols() []S {
	out := make([]S, len(c.inputs))
	for i, inp := range c.inputs {
		out[i] = inp.symbol
	}
	return out
}

// DecodedSymbols returns the input symbols for which IsZero reports
// false, alongside their original index.
func (c *Context[S]) DecodedSymbols() (indices []int, symbols []S) {
	for i, inp := range c.inputs {
		if !c.ops.IsZero(inp.symbol) {
			indices = append(indices, i)
			symbols = append(symbols, inp.symbol)
		}
	}
	return indices, symbols
}

func (c *Context[S]) decodeDegreeOne() {
	for np := c.degOneFirst; np != nil; np = np.next {
		var inp *node[S]
		for n := range np.edges {
			inp = n
			break
		}
		if !c.ops.IsZero(inp.symbol) {
			// Already decoded by an earlier output symbol; nothing new.
		} else {
			inp.symbol, np.symbol = np.symbol, inp.symbol
			c.decodedCount++
			c.insertRipple(inp)
		}
		np.edges = make(map[*node[S]]struct{})
		delete(inp.edges, np)
	}
	c.degOneFirst = nil
	c.degOneLast = nil
}

func (c *Context[S]) processRipple() {
	for inp := c.rippleFirst; inp != nil; inp = inp.next {
		for outp := range inp.edges {
			outp.symbol = c.ops.XOR(outp.symbol, inp.symbol)
			delete(outp.edges, inp)
			switch len(outp.edges) {
			case 1:
				c.insertDegOne(outp)
			case 0:
				c.removeDegOne(outp)
			}
		}
		inp.edges = make(map[*node[S]]struct{})
	}
	c.rippleFirst = nil
}

func (c *Context[S]) insertDegOne(np *node[S]) {
	if c.degOneFirst != nil {
		np.prev = c.degOneLast
		np.next = nil
		c.degOneLast.next = np
		c.degOneLast = np
	} else {
		c.degOneFirst = np
		c.degOneLast = np
		np.next = nil
		np.prev = nil
	}
}

func (c *Context[S]) removeDegOne(np *node[S]) {
	switch {
	case c.degOneFirst != np && c.degOneLast != np:
		np.next.prev = np.prev
		np.prev.next = np.next
	case c.degOneFirst == np && c.degOneLast != np:
		np.next.prev = nil
		c.degOneFirst = np.next
	case c.degOneFirst != np && c.degOneLast == np:
		np.prev.next = nil
		c.degOneLast = np.prev
	default:
		c.degOneFirst = nil
		c.degOneLast = nil
	}
}

func (c *Context[S]) insertRipple(np *node[S]) {
	np.next = c.rippleFirst
	c.rippleFirst = np
}
