package worker

import (
	"fmt"
	"strings"

	"github.com/danmuck/neuraflow/internal/ipc"
)

const (
	DefaultBrokerAddr    = "ipc:///tmp/neura.rpc.broker"
	DefaultOutputAddr    = "ipc:///tmp/neura.stream.broker"
	DefaultControlPrefix = "ipc:///tmp/neura.rpc"
)

// Config configures one worker process.
type Config struct {
	ServiceName string
	BrokerAddr  string
	// OutputAddr receives everything the worker emits.
	OutputAddr string
	// ControlPrefix derives the worker's own control address as prefix.<identity>.
	// Empty disables the worker control server.
	ControlPrefix string
	Backoff       BackoffConfig
	IPC           ipc.Config
}

func DefaultConfig(service string) Config {
	return Config{
		ServiceName:   service,
		BrokerAddr:    DefaultBrokerAddr,
		OutputAddr:    DefaultOutputAddr,
		ControlPrefix: DefaultControlPrefix,
		Backoff:       DefaultBackoff(),
		IPC:           ipc.DefaultConfig(),
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig(c.ServiceName)
	c.ServiceName = strings.TrimSpace(c.ServiceName)
	c.BrokerAddr = strings.TrimSpace(c.BrokerAddr)
	c.OutputAddr = strings.TrimSpace(c.OutputAddr)
	c.ControlPrefix = strings.TrimSpace(c.ControlPrefix)
	if c.BrokerAddr == "" {
		c.BrokerAddr = def.BrokerAddr
	}
	if c.OutputAddr == "" {
		c.OutputAddr = def.OutputAddr
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	c.IPC = c.IPC.WithDefaults()
	return c
}

// Validate checks the control prefix; an empty prefix is allowed and disables
// the worker control server.
func (c Config) Validate() error {
	if c.ControlPrefix == "" {
		return nil
	}
	if err := ipc.ValidatePrefix(c.ControlPrefix); err != nil {
		return fmt.Errorf("worker: control prefix: %w", err)
	}
	return nil
}
