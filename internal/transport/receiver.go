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

	"github.com/ARwMq9b6/uepfountain/internal/metrics"
	"github.com/ARwMq9b6/uepfountain/internal/uep"
	"github.com/ARwMq9b6/uepfountain/internal/wire"
	"github.com/ARwMq9b6/uepfountain/pkg/source"
)

// ReceiverConfig holds the Receiver's tunable knobs, normally loaded
// from internal/config.Config.
type ReceiverConfig struct {
	// Timeout is the inactivity timeout: if no datagram arrives for
	// this long, the receiver flushes the block its decoder has in
	// progress, delivers what is queued, and stops. 0 disables it.
	Timeout time.Duration
	// ExpectedCount stops the receiver once TotalDecoded+TotalFailed
	// reaches this many packets. 0 disables it.
	ExpectedCount int
	// AckEnabled sends a block ack back to the sender whenever a
	// block is confirmed complete (fully decoded or fully failed).
	AckEnabled bool
}

// recvDatagram carries one raw UDP payload, handed from the read pump
// to the main loop.
type recvDatagram struct {
	data []byte
}

// Receiver drains coded packets off a UDP socket, decodes them, and
// delivers the result to a source.Sink in order. It is grounded on
// data_client<Decoder,Sink> in data_client_server.hpp:
// handle_received's batch-drain-then-decode loop and
// handle_timeout's inactivity stop.
type Receiver struct {
	id   xid.ID
	conn *net.UDPConn
	dec  *uep.Decoder
	sink source.Sink
	met  *metrics.Transport

	cfg ReceiverConfig

	timeout       atomic.Int64 // time.Duration, 0 = disabled
	expectedCount atomic.Int64
	stopped       atomic.Bool

	// lastDecoded/lastFailed remember the decoder's cumulative totals
	// as of the previous drainDecoded call, so only the increment
	// since then is reported to the metrics counters.
	lastDecoded int
	lastFailed  int

	StopHandlerRegistry
}

// NewReceiver builds a Receiver. conn should already be connected (via
// net.DialUDP) to the single remote peer this receiver serves, or
// bound for a single expected sender.
func NewReceiver(conn *net.UDPConn, dec *uep.Decoder, sink source.Sink, met *metrics.Transport, cfg ReceiverConfig) *Receiver {
	r := &Receiver{id: xid.New(), conn: conn, dec: dec, sink: sink, met: met, cfg: cfg}
	r.timeout.Store(int64(cfg.Timeout))
	r.expectedCount.Store(int64(cfg.ExpectedCount))
	return r
}

// ID returns the session identifier used in log lines.
func (r *Receiver) ID() xid.ID { return r.id }

// Timeout returns the current inactivity timeout.
func (r *Receiver) Timeout() time.Duration { return time.Duration(r.timeout.Load()) }

// SetTimeout changes the inactivity timeout while the receiver runs.
func (r *Receiver) SetTimeout(d time.Duration) { r.timeout.Store(int64(d)) }

// IsStopped reports whether Run has returned.
func (r *Receiver) IsStopped() bool { return r.stopped.Load() }

// Run drives the receiver until ctx is cancelled, the inactivity
// timeout fires, ExpectedCount is reached, or an unrecoverable error
// occurs.
func (r *Receiver) Run(ctx context.Context) error {
	defer r.stopped.Store(true)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	pktCh := make(chan recvDatagram, 64)

	g.Go(func() error { return r.readPump(gctx, pktCh) })
	g.Go(func() error {
		// The main loop returning ends the run; stop the read pump too.
		defer cancel()
		return r.mainLoop(gctx, pktCh)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	r.list.fire(err)
	return err
}

// readPump blocks on the socket and forwards every datagram it reads
// to the main loop, using short read deadlines so it can notice ctx
// cancellation promptly. It mirrors the original's async_receive_from
// completion handler, minus the strand repost.
func (r *Receiver) readPump(ctx context.Context, pktCh chan<- recvDatagram) error {
	buf := make([]byte, MaxDatagramSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			return errors.WithStack(err)
		}
		n, err := r.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return errors.WithStack(err)
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case pktCh <- recvDatagram{data: data}:
		case <-ctx.Done():
			return nil
		}
	}
}

// mainLoop is the single owner of the decoder and sink: it drains
// whatever datagrams are already queued on each wakeup, decodes them,
// delivers recovered (or confirmed-lost) packets to the sink in
// order, acks any block that just completed, and stops after
// ExpectedCount packets or Timeout inactivity.
func (r *Receiver) mainLoop(ctx context.Context, pktCh <-chan recvDatagram) error {
	timer := time.NewTimer(r.timeoutOrForever())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			glog.V(1).Infof("transport: receiver %s stopping, inactivity timeout", r.id)
			if err := r.dec.FlushNBlocks(1); err != nil {
				return err
			}
			if err := r.drainDecoded(); err != nil {
				return err
			}
			return nil

		case first := <-pktCh:
			batch := []recvDatagram{first}
		drain:
			for {
				select {
				case more := <-pktCh:
					batch = append(batch, more)
				default:
					break drain
				}
			}

			before := r.dec.TotalDecoded() + r.dec.TotalFailed()
			for _, dg := range batch {
				fp, err := wire.DecodeData(dg.data)
				if err != nil {
					r.met.ObserveMalformedFrame()
					continue
				}
				r.met.ObservePacketReceived(len(dg.data))
				if _, err := r.dec.Push(fp); err != nil {
					return err
				}
			}
			after := r.dec.TotalDecoded() + r.dec.TotalFailed()

			if err := r.drainDecoded(); err != nil {
				return err
			}

			if after > before && r.cfg.AckEnabled {
				if err := r.sendAck(); err != nil {
					return err
				}
			}

			if r.reachedExpectedCount() {
				glog.V(1).Infof("transport: receiver %s stopping, expected count reached", r.id)
				return nil
			}

			resetTimer(timer, r.timeoutOrForever())
		}
	}
}

// timeoutOrForever returns the configured inactivity timeout, or a
// duration effectively unreachable (math.MaxInt64) when disabled, so
// a single timer can be reused either way.
func (r *Receiver) timeoutOrForever() time.Duration {
	if d := r.Timeout(); d > 0 {
		return d
	}
	return time.Duration(math.MaxInt64)
}

// resetTimer drains a possibly-already-fired timer before rearming
// it, as required by the time.Timer.Reset documentation.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// drainDecoded delivers every packet the decoder currently has queued
// to the sink, in sequence-number order, tagging each with the
// priority class its sequence number belongs to.
func (r *Receiver) drainDecoded() error {
	for r.dec.HasQueuedPackets() {
		p, ok := r.dec.NextDecoded()
		if !ok {
			break
		}
		priority := r.dec.PriorityOf(p.Seqno)
		r.sink.Push(p.Payload.Bytes(), priority, p.Padding)
	}
	decoded, failed := r.dec.TotalDecoded(), r.dec.TotalFailed()
	r.met.ObserveDecoded(decoded - r.lastDecoded)
	r.met.ObserveFailed(failed - r.lastFailed)
	r.lastDecoded, r.lastFailed = decoded, failed
	return nil
}

// reachedExpectedCount reports whether ExpectedCount is set and has
// been reached.
func (r *Receiver) reachedExpectedCount() bool {
	n := r.expectedCount.Load()
	if n <= 0 {
		return false
	}
	return int64(r.dec.TotalDecoded()+r.dec.TotalFailed()) >= n
}

// sendAck writes a block ack naming the block the decoder now
// expects next, mirroring data_client::handle_received's
// schedule_ack(bnc.next()) call whenever has_decoded() was true.
func (r *Receiver) sendAck() error {
	raw := wire.EncodeAck(r.dec.NextWantedBlockNumber())
	if _, err := r.conn.Write(raw); err != nil {
		return errors.WithStack(err)
	}
	r.met.ObserveAckSent()
	return nil
}
