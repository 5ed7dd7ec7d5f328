// Command uepsend reads lines from stdin, frames them as a UEP
// packet stream, and paces the coded output over UDP to a single
// peer. It is the Go counterpart of demo_ds.cpp: a minimal driver
// wiring a Source, an Encoder and a Sender together, in the same
// "config file + _main() error" shape cmd/dnsproxy/main.go uses.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ARwMq9b6/uepfountain/internal/config"
	"github.com/ARwMq9b6/uepfountain/internal/metrics"
	"github.com/ARwMq9b6/uepfountain/internal/transport"
	"github.com/ARwMq9b6/uepfountain/internal/uep"
	"github.com/ARwMq9b6/uepfountain/internal/xlog"
)

func main() {
	if err := _main(); err != nil {
		defer os.Exit(1)
		format, args := xlog.ReportFatal(err)
		glog.Errorf(format, args...)
	}
}

func _main() error {
	var configFile string
	flag.StringVar(&configFile, "c", "./config.toml", "path of config file")
	flag.Parse()

	conf, err := config.Load(configFile)
	if err != nil {
		return err
	}

	params := uep.Params{
		Ks: conf.Ks, RFs: conf.RFs, RFM: conf.RFM, RFL: conf.RFL,
		EF: conf.EF, C: conf.C, Delta: conf.Delta,
	}

	// uep.NewEncoder's seedGen must produce a uint32: that is what
	// actually travels on the wire per block, and rand.Rand.Uint32
	// guarantees every value fits, unlike time.Now().UnixNano().
	seedRng := rand.New(rand.NewSource(time.Now().UnixNano()))
	seedGen := func() uint32 { return seedRng.Uint32() }

	enc, err := uep.NewEncoder(params, seedGen)
	if err != nil {
		return err
	}

	met, err := metrics.NewTransport(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	if conf.MetricsListen != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(conf.MetricsListen, nil); err != nil {
				glog.Errorf("uepsend: metrics server stopped: %v", err)
			}
		}()
	}

	remote, err := net.ResolveUDPAddr("udp", conf.Remote)
	if err != nil {
		return errors.WithStack(err)
	}
	conn, err := net.DialUDP("udp", nil, remote)
	if err != nil {
		return errors.WithStack(err)
	}
	defer conn.Close()

	src := newLineSource(os.Stdin, conf.PacketSize, params.Ks)

	sender := transport.NewSender(conn, enc, src, met, transport.SenderConfig{
		TargetBitrate:     conf.TargetBitrate,
		MaxSequenceNumber: conf.MaxSequenceNumber,
		PadSize:           conf.PacketSize,
		AckEnabled:        conf.AckEnabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	glog.Infof("uepsend: streaming to %s", remote)
	return sender.Run(ctx)
}

// lineSource reads newline-delimited input from r, one stdin line per
// application packet, truncated or zero-padded to size bytes, and
// cycles priorities across a block the way Encoder.Push expects data
// to arrive: every Ks[0] packets at priority 0, the next Ks[1] at
// priority 1, and so on, repeating. It is the stdin-driven analogue
// of demo_ds.cpp's msg_pkt_src counter-based test source.
type lineSource struct {
	r        *bufio.Reader
	size     int
	ks       []int
	pos      int
	buffered []byte
	eof      bool
}

func newLineSource(r io.Reader, size int, ks []int) *lineSource {
	return &lineSource{r: bufio.NewReader(r), size: size, ks: ks}
}

// HasNext reads one line ahead so it can report whether input remains
// without consuming it from Next's perspective.
func (s *lineSource) HasNext() bool {
	if s.buffered != nil {
		return true
	}
	if s.eof {
		return false
	}
	line, err := s.r.ReadBytes('\n')
	if len(line) > 0 {
		s.buffered = framePacket(line, s.size)
	}
	if err != nil {
		s.eof = true
	}
	return s.buffered != nil
}

func (s *lineSource) Next() ([]byte, int) {
	p := s.buffered
	s.buffered = nil
	priority := s.priorityAt(s.pos)
	s.pos++
	return p, priority
}

// priorityAt derives the priority class a packet at cycle position
// pos belongs to, mirroring uep.Decoder.PriorityOf's convention for
// how a caller is expected to interleave priorities while pushing.
func (s *lineSource) priorityAt(pos int) int {
	if len(s.ks) <= 1 {
		return 0
	}
	total := 0
	for _, k := range s.ks {
		total += k
	}
	if total == 0 {
		return 0
	}
	pos %= total
	offset := 0
	for i, k := range s.ks {
		if pos < offset+k {
			return i
		}
		offset += k
	}
	return len(s.ks) - 1
}

func framePacket(line []byte, size int) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	p := make([]byte, size)
	copy(p, line)
	return p
}
