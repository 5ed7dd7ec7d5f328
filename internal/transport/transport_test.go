package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ARwMq9b6/uepfountain/internal/metrics"
	"github.com/ARwMq9b6/uepfountain/internal/uep"
	"github.com/ARwMq9b6/uepfountain/internal/wire"
	"github.com/ARwMq9b6/uepfountain/internal/xorbuf"
	"github.com/ARwMq9b6/uepfountain/pkg/source"
)

func constSeed(seed uint32) func() uint32 { return func() uint32 { return seed } }

func testParams() uep.Params {
	return uep.Params{Ks: []int{4}, RFs: []int{1}, EF: 1, C: 0.1, Delta: 0.5}
}

// loopbackPair binds two UDP sockets on localhost and connects each
// to the other, so both sides can use Read/Write without specifying
// an address per call.
func loopbackPair(t *testing.T) (a, b *net.UDPConn) {
	t.Helper()

	// Bind two ephemeral ports, then dial each end to the other's
	// address so conn.Read/Write work without a destination argument,
	// matching how Sender/Receiver use *net.UDPConn.
	listenA, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	listenB, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	addrA := listenA.LocalAddr().(*net.UDPAddr)
	addrB := listenB.LocalAddr().(*net.UDPAddr)
	if err := listenA.Close(); err != nil {
		t.Fatal(err)
	}
	if err := listenB.Close(); err != nil {
		t.Fatal(err)
	}

	a, err = net.DialUDP("udp", addrA, addrB)
	if err != nil {
		t.Fatal(err)
	}
	b, err = net.DialUDP("udp", addrB, addrA)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close(); b.Close() })
	return a, b
}

func makePackets(n, size int) ([][]byte, []int) {
	packets := make([][]byte, n)
	priorities := make([]int, n)
	for i := range packets {
		p := make([]byte, size)
		for j := range p {
			p[j] = byte(i)
		}
		packets[i] = p
	}
	return packets, priorities
}

func TestSenderReceiverEndToEndNoLoss(t *testing.T) {
	senderConn, receiverConn := loopbackPair(t)

	params := testParams()
	enc, err := uep.NewEncoder(params, constSeed(7))
	if err != nil {
		t.Fatal(err)
	}
	dec, err := uep.NewDecoder(params)
	if err != nil {
		t.Fatal(err)
	}

	const numPackets = 12 // 3 full blocks of Ks[0]=4
	packets, priorities := makePackets(numPackets, 8)
	src := source.NewSliceSource(packets, priorities)
	sink := &source.SliceSink{}

	sender := NewSender(senderConn, enc, src, nil, SenderConfig{
		TargetBitrate:     0,
		MaxSequenceNumber: 40,
	})
	receiver := NewReceiver(receiverConn, dec, sink, nil, ReceiverConfig{
		Timeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	senderDone := make(chan error, 1)
	go func() { senderDone <- sender.Run(ctx) }()

	receiverDone := make(chan error, 1)
	go func() { receiverDone <- receiver.Run(ctx) }()

	select {
	case err := <-senderDone:
		if err != nil {
			t.Fatalf("Sender.Run() error = %v", err)
		}
	case <-time.After(9 * time.Second):
		t.Fatal("sender did not stop in time")
	}

	select {
	case err := <-receiverDone:
		if err != nil {
			t.Fatalf("Receiver.Run() error = %v", err)
		}
	case <-time.After(9 * time.Second):
		t.Fatal("receiver did not stop in time (inactivity timeout should have fired)")
	}

	if len(sink.Packets) != numPackets {
		t.Fatalf("sink received %d packets, want %d", len(sink.Packets), numPackets)
	}
	for i, got := range sink.Packets {
		if got.Lost {
			t.Fatalf("packet %d: unexpectedly lost in a loss-free loopback run", i)
		}
		if len(got.Payload) != len(packets[i]) {
			t.Fatalf("packet %d: payload length = %d, want %d", i, len(got.Payload), len(packets[i]))
		}
		for j := range got.Payload {
			if got.Payload[j] != packets[i][j] {
				t.Fatalf("packet %d: payload mismatch at byte %d", i, j)
			}
		}
	}
}

// TestSenderSkipsBlocksOnAck exercises the "block skip via ack"
// scenario: the sender is still producing coded packets for an early
// block when an ack naming a much later block arrives, and must jump
// straight to it rather than working through every block in between.
func TestSenderSkipsBlocksOnAck(t *testing.T) {
	senderConn, ackConn := loopbackPair(t)

	params := testParams()
	enc, err := uep.NewEncoder(params, constSeed(3))
	if err != nil {
		t.Fatal(err)
	}

	const numBlocks = 30
	packets, priorities := makePackets(numBlocks*params.Ks[0], 8)
	src := source.NewSliceSource(packets, priorities)

	sender := NewSender(senderConn, enc, src, nil, SenderConfig{
		TargetBitrate:     0,
		MaxSequenceNumber: 0, // never force-advance; only the ack should move it
		PadSize:           8,
		AckEnabled:        true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sender.Run(ctx) }()

	// Let the sender settle onto block 0 and start emitting coded
	// packets for it before acking a block far ahead.
	buf := make([]byte, MaxDatagramSize)
	if err := ackConn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, err := ackConn.Read(buf); err != nil {
		t.Fatalf("did not observe any coded packets before acking: %v", err)
	}

	const targetBlock = 10
	if _, err := ackConn.Write(wire.EncodeAck(targetBlock)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for sender.CurrentBlockNo() != targetBlock && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := sender.CurrentBlockNo(); got != targetBlock {
		t.Fatalf("sender.CurrentBlockNo() = %d, want %d after ack", got, targetBlock)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Sender.Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("sender did not stop after cancellation")
	}
}

func TestReceiverStopsOnExpectedCount(t *testing.T) {
	senderConn, receiverConn := loopbackPair(t)

	params := testParams()
	enc, err := uep.NewEncoder(params, constSeed(11))
	if err != nil {
		t.Fatal(err)
	}
	dec, err := uep.NewDecoder(params)
	if err != nil {
		t.Fatal(err)
	}

	packets, priorities := makePackets(params.Ks[0], 8)
	src := source.NewSliceSource(packets, priorities)
	sink := &source.SliceSink{}

	sender := NewSender(senderConn, enc, src, nil, SenderConfig{MaxSequenceNumber: 200})
	receiver := NewReceiver(receiverConn, dec, sink, nil, ReceiverConfig{
		Timeout:       5 * time.Second,
		ExpectedCount: params.Ks[0],
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go sender.Run(ctx)

	recvDone := make(chan error, 1)
	go func() { recvDone <- receiver.Run(ctx) }()

	select {
	case err := <-recvDone:
		if err != nil {
			t.Fatalf("Receiver.Run() error = %v", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("receiver did not stop after reaching ExpectedCount")
	}

	if len(sink.Packets) != params.Ks[0] {
		t.Fatalf("sink received %d packets, want %d", len(sink.Packets), params.Ks[0])
	}
}

// TestReceiverAcksNextWantedBlockAfterDecode exercises the ack-driven
// block-skip path end to end from the receiver's side: once a block
// fully decodes, the ack the receiver sends back must name the next
// block it wants (current + 1), not the block it just finished, and
// must keep doing so correctly even though the underlying block
// decoder resets its own notion of "current block" on every decode.
func TestReceiverAcksNextWantedBlockAfterDecode(t *testing.T) {
	feedConn, receiverConn := loopbackPair(t)

	params := testParams()
	enc, err := uep.NewEncoder(params, constSeed(9))
	if err != nil {
		t.Fatal(err)
	}
	dec, err := uep.NewDecoder(params)
	if err != nil {
		t.Fatal(err)
	}

	packets, priorities := makePackets(params.Ks[0], 8)
	src := source.NewSliceSource(packets, priorities)
	sink := &source.SliceSink{}

	receiver := NewReceiver(receiverConn, dec, sink, nil, ReceiverConfig{
		Timeout:    5 * time.Second,
		AckEnabled: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recvDone := make(chan error, 1)
	go func() { recvDone <- receiver.Run(ctx) }()

	// Feed exactly one block's worth of coded packets directly, without
	// a real Sender, so the only ack in flight is the one this test
	// cares about.
	var seqno uint32
	for src.HasNext() {
		payload, priority := src.Next()
		p := uep.Packet{Seqno: seqno, Payload: xorbuf.WrapPacket(payload)}
		seqno++
		if err := enc.Push(p, priority); err != nil {
			t.Fatal(err)
		}
	}
	// A K=4 robust-soliton block decodes with overwhelming probability
	// well within this many coded packets; unlike the other tests here,
	// this one can't synchronize on the sink (it belongs to the
	// concurrently running receiver goroutine) so it just sends a
	// generous fixed count instead of polling it.
	for i := 0; i < 40; i++ {
		coded, err := enc.NextCoded()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := feedConn.Write(wire.EncodeData(coded)); err != nil {
			t.Fatal(err)
		}
	}

	buf := make([]byte, MaxDatagramSize)
	if err := feedConn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	n, err := feedConn.Read(buf)
	if err != nil {
		t.Fatalf("did not receive an ack: %v", err)
	}
	ackedBlock, err := wire.DecodeAck(buf[:n])
	if err != nil {
		t.Fatalf("DecodeAck: %v", err)
	}
	if ackedBlock != 1 {
		t.Fatalf("acked block = %d, want 1 (current block 0, next wanted 1)", ackedBlock)
	}

	cancel()
	<-recvDone
}

func TestStopHandlersFireOnce(t *testing.T) {
	senderConn, _ := loopbackPair(t)

	params := testParams()
	enc, err := uep.NewEncoder(params, constSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	src := &source.SliceSource{}
	sender := NewSender(senderConn, enc, src, nil, SenderConfig{})

	calls := 0
	sender.AddStopHandler(func(err error) { calls++ })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sender.Run(ctx) }()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not stop after cancellation")
	}

	if calls != 1 {
		t.Fatalf("stop handler called %d times, want 1", calls)
	}
	if !sender.IsStopped() {
		t.Fatal("IsStopped() = false after Run returned")
	}
}

func TestCancelStopHandlersInvokesWithCancelledError(t *testing.T) {
	senderConn, _ := loopbackPair(t)

	params := testParams()
	enc, err := uep.NewEncoder(params, constSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	src := &source.SliceSource{}
	sender := NewSender(senderConn, enc, src, nil, SenderConfig{})

	calls := 0
	var gotErr error
	sender.AddStopHandler(func(err error) {
		calls++
		gotErr = err
	})
	if n := sender.CancelStopHandlers(); n != 1 {
		t.Fatalf("CancelStopHandlers() = %d, want 1", n)
	}
	if calls != 1 {
		t.Fatalf("stop handler called %d times by CancelStopHandlers, want 1", calls)
	}
	if !errors.Is(gotErr, context.Canceled) {
		t.Fatalf("stop handler error = %v, want context.Canceled", gotErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sender.Run(ctx) }()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not stop after cancellation")
	}

	// Run's own end-of-loop fire must not invoke the already-cancelled
	// handler a second time.
	if calls != 1 {
		t.Fatalf("stop handler called %d times total, want 1 (no re-fire from Run)", calls)
	}
}

func TestNilMetricsAreSafeToObserve(t *testing.T) {
	var m *metrics.Transport
	m.ObservePacketSent(10)
	m.ObserveAckSent()
	m.SetSendRate(1000)
	m.SetCurrentBlock(4)
}
