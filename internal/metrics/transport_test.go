package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetGauge().GetValue()
}

func TestTransportObserveIncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	tm, err := NewTransport(reg)
	if err != nil {
		t.Fatal(err)
	}

	tm.ObservePacketSent(100)
	tm.ObservePacketSent(50)
	tm.ObserveAckSent()
	tm.ObservePacketReceived(100)
	tm.ObserveAckReceived()
	tm.ObserveMalformedFrame()
	tm.ObserveDecoded(4)
	tm.ObserveFailed(1)
	tm.SetSendRate(1e6)
	tm.SetCurrentBlock(7)

	if got := counterValue(t, tm.sentPackets); got != 2 {
		t.Fatalf("sentPackets = %v, want 2", got)
	}
	if got := counterValue(t, tm.sentBytes); got != 150 {
		t.Fatalf("sentBytes = %v, want 150", got)
	}
	if got := counterValue(t, tm.sentAcks); got != 1 {
		t.Fatalf("sentAcks = %v, want 1", got)
	}
	if got := counterValue(t, tm.receivedPackets); got != 1 {
		t.Fatalf("receivedPackets = %v, want 1", got)
	}
	if got := counterValue(t, tm.malformedFrames); got != 1 {
		t.Fatalf("malformedFrames = %v, want 1", got)
	}
	if got := counterValue(t, tm.decodedPackets); got != 4 {
		t.Fatalf("decodedPackets = %v, want 4", got)
	}
	if got := counterValue(t, tm.failedPackets); got != 1 {
		t.Fatalf("failedPackets = %v, want 1", got)
	}
	if got := gaugeValue(t, tm.sendRate); got != 1e6 {
		t.Fatalf("sendRate = %v, want 1e6", got)
	}
	if got := gaugeValue(t, tm.currentBlock); got != 7 {
		t.Fatalf("currentBlock = %v, want 7", got)
	}
}

func TestNilTransportMethodsAreNoOps(t *testing.T) {
	var tm *Transport
	tm.ObservePacketSent(1)
	tm.ObserveAckSent()
	tm.ObservePacketReceived(1)
	tm.ObserveAckReceived()
	tm.ObserveMalformedFrame()
	tm.ObserveDecoded(1)
	tm.ObserveFailed(1)
	tm.SetSendRate(1)
	tm.SetCurrentBlock(1)
}

func TestNewTransportRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewTransport(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTransport(reg); err == nil {
		t.Fatal("expected an error registering the same collectors twice")
	}
}
