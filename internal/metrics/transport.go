package metrics

import "github.com/prometheus/client_golang/prometheus"

// Transport collects the Prometheus instrumentation exported by
// internal/transport's sender and receiver. A nil *Transport is valid
// and every method on it is a no-op, so callers that do not want
// metrics can simply leave the field unset.
type Transport struct {
	sentPackets     prometheus.Counter
	sentBytes       prometheus.Counter
	sentAcks        prometheus.Counter
	receivedPackets prometheus.Counter
	receivedBytes   prometheus.Counter
	receivedAcks    prometheus.Counter
	malformedFrames prometheus.Counter
	decodedPackets  prometheus.Counter
	failedPackets   prometheus.Counter
	sendRate        prometheus.Gauge
	currentBlock    prometheus.Gauge
}

// NewTransport registers and returns the transport metrics under reg.
// Pass a dedicated *prometheus.Registry per session, or
// prometheus.DefaultRegisterer to export them globally.
func NewTransport(reg prometheus.Registerer) (*Transport, error) {
	t := &Transport{
		sentPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uep", Subsystem: "transport", Name: "sent_packets_total",
			Help: "Coded data packets sent by the sender.",
		}),
		sentBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uep", Subsystem: "transport", Name: "sent_bytes_total",
			Help: "Raw bytes (including frame headers) sent by the sender.",
		}),
		sentAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uep", Subsystem: "transport", Name: "sent_acks_total",
			Help: "ACK frames sent by the receiver.",
		}),
		receivedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uep", Subsystem: "transport", Name: "received_packets_total",
			Help: "Coded data packets accepted by the receiver.",
		}),
		receivedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uep", Subsystem: "transport", Name: "received_bytes_total",
			Help: "Raw bytes (including frame headers) received by the receiver.",
		}),
		receivedAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uep", Subsystem: "transport", Name: "received_acks_total",
			Help: "ACK frames accepted by the sender.",
		}),
		malformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uep", Subsystem: "transport", Name: "malformed_frames_total",
			Help: "Raw datagrams dropped for failing to parse as a known frame.",
		}),
		decodedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uep", Subsystem: "transport", Name: "decoded_packets_total",
			Help: "Original packets successfully recovered by the receiver's decoder.",
		}),
		failedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uep", Subsystem: "transport", Name: "failed_packets_total",
			Help: "Original packets declared lost once their block was retired.",
		}),
		sendRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uep", Subsystem: "transport", Name: "send_rate_bits_per_second",
			Help: "Current target send rate of the sender, in bit/s.",
		}),
		currentBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uep", Subsystem: "transport", Name: "current_block_number",
			Help: "Block number currently being sent by the sender.",
		}),
	}
	collectors := []prometheus.Collector{
		t.sentPackets, t.sentBytes, t.sentAcks,
		t.receivedPackets, t.receivedBytes, t.receivedAcks,
		t.malformedFrames, t.decodedPackets, t.failedPackets,
		t.sendRate, t.currentBlock,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Transport) ObservePacketSent(wireSize int) {
	if t == nil {
		return
	}
	t.sentPackets.Inc()
	t.sentBytes.Add(float64(wireSize))
}

func (t *Transport) ObserveAckSent() {
	if t == nil {
		return
	}
	t.sentAcks.Inc()
}

func (t *Transport) ObservePacketReceived(wireSize int) {
	if t == nil {
		return
	}
	t.receivedPackets.Inc()
	t.receivedBytes.Add(float64(wireSize))
}

func (t *Transport) ObserveAckReceived() {
	if t == nil {
		return
	}
	t.receivedAcks.Inc()
}

func (t *Transport) ObserveMalformedFrame() {
	if t == nil {
		return
	}
	t.malformedFrames.Inc()
}

func (t *Transport) ObserveDecoded(n int) {
	if t == nil {
		return
	}
	t.decodedPackets.Add(float64(n))
}

func (t *Transport) ObserveFailed(n int) {
	if t == nil {
		return
	}
	t.failedPackets.Add(float64(n))
}

func (t *Transport) SetSendRate(bitsPerSecond float64) {
	if t == nil {
		return
	}
	t.sendRate.Set(bitsPerSecond)
}

func (t *Transport) SetCurrentBlock(bn uint16) {
	if t == nil {
		return
	}
	t.currentBlock.Set(float64(bn))
}
