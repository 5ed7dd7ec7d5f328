// Command uepreceive binds a UDP socket, decodes an incoming UEP
// packet stream, and writes recovered payloads to stdout, one per
// line. It is the Go counterpart of demo_dc.cpp: a minimal driver
// wiring a Decoder, a Sink and a Receiver together, in the same
// "config file + _main() error" shape cmd/dnsproxy/main.go uses.
package main

import (
	"context"
	"flag"
	"fmt"
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

	dec, err := uep.NewDecoder(params)
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
				glog.Errorf("uepreceive: metrics server stopped: %v", err)
			}
		}()
	}

	local, err := net.ResolveUDPAddr("udp", conf.Listen)
	if err != nil {
		return errors.WithStack(err)
	}
	var conn *net.UDPConn
	if conf.Remote != "" {
		// Connect to the expected sender: reads are filtered to it and
		// acks can be written back on the same socket.
		remote, rerr := net.ResolveUDPAddr("udp", conf.Remote)
		if rerr != nil {
			return errors.WithStack(rerr)
		}
		conn, err = net.DialUDP("udp", local, remote)
	} else {
		conn, err = net.ListenUDP("udp", local)
	}
	if err != nil {
		return errors.WithStack(err)
	}
	defer conn.Close()

	sink := &coutSink{w: os.Stdout}

	receiver := transport.NewReceiver(conn, dec, sink, met, transport.ReceiverConfig{
		Timeout:       time.Duration(conf.Timeout * float64(time.Second)),
		ExpectedCount: conf.ExpectedCount,
		AckEnabled:    conf.AckEnabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	glog.Infof("uepreceive: listening on %s", conn.LocalAddr())
	return receiver.Run(ctx)
}

// coutSink prints each recovered payload to stdout, or a "... Failed
// ..." marker for a confirmed loss, matching demo_dc.cpp's
// cout_pkt_sink::push.
type coutSink struct {
	w interface {
		Write([]byte) (int, error)
	}
}

func (s *coutSink) Push(payload []byte, priority int, lost bool) {
	if lost {
		fmt.Fprintln(s.w, "... Failed ...")
		return
	}
	fmt.Fprintf(s.w, "%s\n", payload)
}
