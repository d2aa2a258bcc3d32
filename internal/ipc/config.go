package ipc

import (
	"time"

	"github.com/danmuck/neuraflow/internal/protocol/frame"
)

// DefaultMaxMessageBytes bounds one stream message or one control payload.
const DefaultMaxMessageBytes uint32 = 4 * 1024 * 1024

// controlOverhead covers the TLV headers and action name wrapped around a control payload.
const controlOverhead uint32 = 64 * 1024

// Config defines transport limits and optional hardening timeouts.
type Config struct {
	// DialTimeout bounds connection establishment for Call and PushStream.
	DialTimeout time.Duration
	// ReplyTimeout bounds one Call exchange. Zero waits for the reply indefinitely.
	ReplyTimeout    time.Duration
	MaxMessageBytes uint32
}

func DefaultConfig() Config {
	return Config{
		DialTimeout:     5 * time.Second,
		ReplyTimeout:    0,
		MaxMessageBytes: DefaultMaxMessageBytes,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.ReplyTimeout < 0 {
		c.ReplyTimeout = 0
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = def.MaxMessageBytes
	}
	return c
}

func (c Config) streamLimits() frame.Limits {
	return frame.Limits{MaxPayloadBytes: c.MaxMessageBytes}
}

func (c Config) controlLimits() frame.Limits {
	if c.MaxMessageBytes > ^uint32(0)-controlOverhead {
		return frame.Limits{MaxPayloadBytes: ^uint32(0)}
	}
	return frame.Limits{MaxPayloadBytes: c.MaxMessageBytes + controlOverhead}
}
