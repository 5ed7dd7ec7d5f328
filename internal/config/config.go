// Package config loads the engine's TOML configuration file, exactly
// as cmd/dnsproxy/config.go loads config.toml: a single
// toml.DecodeFile call into a nested struct tagged with toml:"...".
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the full configuration surface from spec.md §6: the UEP
// code parameters, the transport pacing/ack/timeout knobs, and the
// listen/remote addresses needed to run cmd/uepsend or
// cmd/uepreceive.
type Config struct {
	// Ks holds the size of each priority sub-block, high to low
	// priority.
	Ks []int `toml:"ks"`
	// RFs holds the repetition factor of each sub-block. Leave empty
	// and set RFM/RFL to use the two-level fallback.
	RFs []int `toml:"rfs"`
	RFM int   `toml:"rfm"`
	RFL int   `toml:"rfl"`
	// EF is the global expansion factor.
	EF int `toml:"ef"`
	// C and Delta tune the Robust Soliton distribution.
	C     float64 `toml:"c"`
	Delta float64 `toml:"delta"`

	// PacketSize is the fixed payload size used to pad/assemble input
	// packets before framing.
	PacketSize int `toml:"packet_size"`
	// TargetBitrate paces the sender, in bit/s. A value of 0 or
	// negative is treated as unlimited.
	TargetBitrate float64 `toml:"target_bitrate"`
	// MaxSequenceNumber forces a block advance once this many coded
	// packets have been sent for it.
	MaxSequenceNumber int `toml:"max_sequence_number"`
	// AckEnabled enables the block-ack loop.
	AckEnabled bool `toml:"ack_enabled"`
	// Timeout is the receiver's inactivity timeout, in seconds; 0
	// disables it.
	Timeout float64 `toml:"timeout"`
	// ExpectedCount stops the receiver once this many packets have
	// been decoded or declared failed; 0 disables it.
	ExpectedCount int `toml:"expected_count"`
	// OneShot is read from the oneshot key; neither cmd/uepsend nor
	// cmd/uepreceive acts on it.
	OneShot bool `toml:"oneshot"`

	// Listen is the local UDP address to bind.
	Listen string `toml:"listen"`
	// Remote is the peer UDP address: the client for a sender, the
	// expected source for a receiver.
	Remote string `toml:"remote"`

	// MetricsListen is the HTTP address serving the Prometheus
	// /metrics endpoint, empty to disable it.
	MetricsListen string `toml:"metrics_listen"`
}

// Load reads and decodes a TOML configuration file from path.
func Load(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, errors.WithStack(err)
	}
	return &c, nil
}
