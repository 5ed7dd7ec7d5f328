package transport

import (
	"context"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/ARwMq9b6/uepfountain/internal/lt"
	"github.com/ARwMq9b6/uepfountain/internal/metrics"
	"github.com/ARwMq9b6/uepfountain/internal/seqcounter"
	"github.com/ARwMq9b6/uepfountain/internal/uep"
	"github.com/ARwMq9b6/uepfountain/internal/wire"
	"github.com/ARwMq9b6/uepfountain/internal/xorbuf"
	"github.com/ARwMq9b6/uepfountain/pkg/source"
)

// SenderConfig holds the Sender's tunable knobs, normally loaded from
// internal/config.Config.
type SenderConfig struct {
	// TargetBitrate paces transmissions, in bit/s. 0 or negative means
	// unlimited: the sender transmits as fast as the source and
	// encoder can keep up.
	TargetBitrate float64
	// MaxSequenceNumber forces a block advance once this many coded
	// packets have been sent for the current block, even if the
	// receiver never acks. 0 disables the limit.
	MaxSequenceNumber int
	// PadSize pads any block skipped over by an ack to this many
	// bytes per packet (see uep.Encoder.NextBlockTo).
	PadSize int
	// AckEnabled starts the ack-reading loop alongside the send loop.
	AckEnabled bool
}

// Sender paces coded packets for one UEP stream out over a UDP
// socket, tops its encoder up from a source.Source, and reacts to
// block acknowledgements by skipping ahead. It is grounded on
// data_server<Encoder,Source> in data_client_server.hpp: Run starts
// one goroutine per original async handler chain (schedule_next_pkt's
// timer-paced loop, and handle_ack's receive loop), coordinated with
// an errgroup instead of a Boost.Asio strand.
type Sender struct {
	id   xid.ID
	conn *net.UDPConn
	enc  *uep.Encoder
	src  source.Source
	met  *metrics.Transport

	cfg SenderConfig

	rateBits    atomic.Uint64
	maxSeq      atomic.Int64
	stopped     atomic.Bool
	currentBlno atomic.Uint32

	seqno uint32

	StopHandlerRegistry
}

// StopHandlerRegistry is embedded by Sender and Receiver to expose
// AddStopHandler/CancelStopHandlers.
type StopHandlerRegistry struct{ list stopHandlerList }

// AddStopHandler registers h to run once, when the owner stops.
func (r *StopHandlerRegistry) AddStopHandler(h StopHandler) { r.list.add(h) }

// CancelStopHandlers invokes every handler registered so far exactly
// once with context.Canceled, then clears the registry so the normal
// end-of-Run fire does not invoke them again. It returns the count
// notified this way.
func (r *StopHandlerRegistry) CancelStopHandlers() int { return r.list.cancel() }

// NewSender builds a Sender. conn should already be connected (via
// net.DialUDP) to the single remote peer this sender serves.
func NewSender(conn *net.UDPConn, enc *uep.Encoder, src source.Source, met *metrics.Transport, cfg SenderConfig) *Sender {
	s := &Sender{id: xid.New(), conn: conn, enc: enc, src: src, met: met, cfg: cfg}
	s.rateBits.Store(math.Float64bits(cfg.TargetBitrate))
	s.maxSeq.Store(int64(cfg.MaxSequenceNumber))
	return s
}

// ID returns the session identifier used in log lines.
func (s *Sender) ID() xid.ID { return s.id }

// TargetBitrate returns the sender's current pacing rate, in bit/s.
func (s *Sender) TargetBitrate() float64 { return math.Float64frombits(s.rateBits.Load()) }

// SetTargetBitrate changes the sender's pacing rate while it runs.
func (s *Sender) SetTargetBitrate(bitsPerSecond float64) {
	s.rateBits.Store(math.Float64bits(bitsPerSecond))
	s.met.SetSendRate(bitsPerSecond)
}

// MaxSequenceNumber returns the per-block coded-packet limit.
func (s *Sender) MaxSequenceNumber() int { return int(s.maxSeq.Load()) }

// SetMaxSequenceNumber changes the per-block coded-packet limit while
// the sender runs.
func (s *Sender) SetMaxSequenceNumber(n int) { s.maxSeq.Store(int64(n)) }

// IsStopped reports whether Run has returned.
func (s *Sender) IsStopped() bool { return s.stopped.Load() }

// CurrentBlockNo returns the expanded block number the sender is
// currently emitting coded packets for. Safe to call from any
// goroutine, unlike reaching into the encoder directly.
func (s *Sender) CurrentBlockNo() uint16 { return uint16(s.currentBlno.Load()) }

// Run drives the sender until ctx is cancelled, the source is
// exhausted, or an unrecoverable error occurs. It blocks until both
// the send loop and (if enabled) the ack loop have returned.
func (s *Sender) Run(ctx context.Context) error {
	defer s.stopped.Store(true)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	ackCh := make(chan uint16, 1)

	if s.cfg.AckEnabled {
		g.Go(func() error { return s.ackLoop(gctx, ackCh) })
	}
	g.Go(func() error {
		// The send loop returning ends the run; stop the ack loop too.
		defer cancel()
		return s.sendLoop(gctx, ackCh)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	s.list.fire(err)
	return err
}

// ackLoop reads one ack frame at a time and forwards the acked block
// number to the send loop, discarding malformed frames. It mirrors
// data_server::handle_ack's receive-then-repost pattern, but as a
// blocking read loop instead of an async callback chain.
func (s *Sender) ackLoop(ctx context.Context, ackCh chan<- uint16) error {
	buf := make([]byte, wire.AckHeaderSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			return errors.WithStack(err)
		}
		n, err := s.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return errors.WithStack(err)
		}
		bn, err := wire.DecodeAck(buf[:n])
		if err != nil {
			s.met.ObserveMalformedFrame()
			continue
		}
		s.met.ObserveAckReceived()
		select {
		case ackCh <- bn:
		case <-ctx.Done():
			return nil
		}
	}
}

// sendLoop is the paced sending loop, grounded on
// data_server::schedule_next_pkt/handle_send_timer/handle_sent: top up
// the encoder, produce one coded packet, pace its transmission to the
// target bitrate, and react immediately to any ack received while
// waiting.
func (s *Sender) sendLoop(ctx context.Context, ackCh <-chan uint16) error {
	codedThisBlock := 0
	first := true
	var lastSent time.Time

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := s.topUp(); err != nil {
			return err
		}

		if maxSeq := s.MaxSequenceNumber(); maxSeq > 0 && codedThisBlock >= maxSeq {
			if err := s.enc.NextBlock(); err != nil {
				return err
			}
			codedThisBlock = 0
			if err := s.topUp(); err != nil {
				return err
			}
		}

		if !s.enc.HasBlock() {
			glog.V(1).Infof("transport: sender %s stopping, source exhausted", s.id)
			return nil
		}

		select {
		case bn := <-ackCh:
			if err := s.handleAck(bn, &codedThisBlock); err != nil {
				return err
			}
			continue
		default:
		}

		coded, err := s.enc.NextCoded()
		if err != nil {
			return err
		}
		codedThisBlock++
		raw := wire.EncodeData(coded)

		if !first {
			// Interarrival time to hit the target send rate, sized
			// to the packet about to go out and scheduled relative
			// to when the previous one was actually sent, matching
			// schedule_next_pkt's expires_at(last_sent_time + ...).
			if wait := time.Until(nextSendAt(lastSent, len(raw), s.TargetBitrate())); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case bn := <-ackCh:
					timer.Stop()
					if err := s.handleAck(bn, &codedThisBlock); err != nil {
						return err
					}
					continue
				case <-ctx.Done():
					timer.Stop()
					return nil
				}
			}
		}
		first = false

		if _, err := s.conn.Write(raw); err != nil {
			return errors.WithStack(err)
		}
		lastSent = time.Now()
		s.met.ObservePacketSent(len(raw))
		blockNo := s.enc.BlockNo()
		s.met.SetCurrentBlock(blockNo)
		s.currentBlno.Store(uint32(blockNo))
	}
}

// nextSendAt returns the absolute time at which a wireSize-byte
// packet should go out to respect targetBitrate, measured from the
// previous send, matching the original's
// `last_sent_time + microseconds(size * (1e6 / sr))`. A non-positive
// or infinite rate means unlimited: send immediately.
func nextSendAt(lastSent time.Time, wireSize int, targetBitrate float64) time.Time {
	if targetBitrate <= 0 || math.IsInf(targetBitrate, 1) {
		return lastSent
	}
	seconds := float64(wireSize) * 8 / targetBitrate
	return lastSent.Add(time.Duration(seconds * float64(time.Second)))
}

// topUp pushes packets from the source into the encoder until it
// holds at least 2*K original packets or the source is exhausted,
// mirroring data_server::schedule_next_pkt's
// `while (*source_ && encoder_->size() < 2*encoder_->K())` loop (K
// here being the UEP block's original, pre-expansion size).
func (s *Sender) topUp() error {
	target := 2 * s.enc.OrigSize()
	for s.src.HasNext() && s.enc.Size() < target {
		payload, priority := s.src.Next()
		p := uep.Packet{Seqno: s.seqno, Payload: xorbuf.WrapPacket(payload)}
		s.seqno++
		if err := s.enc.Push(p, priority); err != nil {
			return err
		}
	}
	return nil
}

// handleAck reacts to a received ack naming the next block the
// receiver wants: stale or zero-distance acks are ignored, otherwise
// the encoder is topped up enough to cover the skipped blocks and
// jumped forward with NextBlockTo, mirroring
// data_server::handle_ack.
func (s *Sender) handleAck(nextWantedBlock uint16, codedThisBlock *int) error {
	cur := seqcounter.NewCircularCounter(lt.MaxBlockno)
	if err := cur.Set(uint32(s.enc.BlockNo())); err != nil {
		return err
	}
	target := seqcounter.NewCircularCounter(lt.MaxBlockno)
	if err := target.Set(uint32(nextWantedBlock)); err != nil {
		return err
	}
	dist, err := cur.ForwardDistance(target)
	if err != nil {
		return err
	}
	if dist == 0 || dist > lt.BlockWindow {
		return nil
	}

	required := int(dist) * s.enc.OrigSize()
	for s.src.HasNext() && s.enc.Size() < required {
		payload, priority := s.src.Next()
		p := uep.Packet{Seqno: s.seqno, Payload: xorbuf.WrapPacket(payload)}
		s.seqno++
		if err := s.enc.Push(p, priority); err != nil {
			return err
		}
	}

	if err := s.enc.NextBlockTo(nextWantedBlock, s.cfg.PadSize); err != nil {
		return err
	}
	*codedThisBlock = 0
	return nil
}
