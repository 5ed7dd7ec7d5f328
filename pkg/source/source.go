// Package source defines the collaborator boundary between the
// engine and whatever produces or consumes application data: a
// Source hands the sender a stream of (payload, priority) pairs, and
// a Sink receives the receiver's recovered (or confirmed-lost) output
// in order. The engine never interprets payload bytes.
package source

// Source is implemented by callers of internal/transport's Sender. It
// is modeled on the original's "convert to bool" + next_packet()
// collaborator: HasNext reports whether a call to Next would produce
// a packet, and Next returns the next payload to send along with its
// priority class.
type Source interface {
	// HasNext reports whether the source has at least one more packet
	// to offer.
	HasNext() bool
	// Next returns the next packet's payload and priority class. It
	// must not be called unless the prior HasNext call returned true.
	Next() (payload []byte, priority int)
}

// Sink is implemented by callers of internal/transport's Receiver. It
// receives every packet the receiver produces, in application
// sequence-number order, including synthesized entries for confirmed
// losses.
type Sink interface {
	// Push delivers the next packet in order. lost is true when the
	// packet could not be recovered; payload is then empty.
	Push(payload []byte, priority int, lost bool)
}

// SliceSource is a reference Source backed by an in-memory slice of
// packets, each tagged with a priority. It is primarily useful for
// tests and simple command-line tools.
type SliceSource struct {
	packets    [][]byte
	priorities []int
	next       int
}

// NewSliceSource builds a Source that replays packets in order, one
// per call to Next. packets and priorities must have the same length.
func NewSliceSource(packets [][]byte, priorities []int) *SliceSource {
	return &SliceSource{packets: packets, priorities: priorities}
}

// HasNext reports whether any packet remains unread.
func (s *SliceSource) HasNext() bool { return s.next < len(s.packets) }

// Next returns the next packet and its priority.
func (s *SliceSource) Next() ([]byte, int) {
	p, prio := s.packets[s.next], s.priorities[s.next]
	s.next++
	return p, prio
}

// SlicePacket records one packet delivered to a SliceSink.
type SlicePacket struct {
	Payload  []byte
	Priority int
	Lost     bool
}

// SliceSink is a reference Sink that simply accumulates every pushed
// packet in order.
type SliceSink struct {
	Packets []SlicePacket
}

// Push appends the packet to Packets.
func (s *SliceSink) Push(payload []byte, priority int, lost bool) {
	s.Packets = append(s.Packets, SlicePacket{Payload: payload, Priority: priority, Lost: lost})
}
