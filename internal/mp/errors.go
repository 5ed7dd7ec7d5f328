package mp

import "github.com/pkg/errors"

// ErrEdgeOutOfRange is returned by AddOutput when an edge index falls
// outside the range of input symbols the context was built with.
var ErrEdgeOutOfRange = errors.New("mp: edge index out of range")

// ErrParallelEdge is returned by AddOutput when the same input index
// is listed twice for a single output symbol.
var ErrParallelEdge = errors.New("mp: parallel edge on output symbol")
