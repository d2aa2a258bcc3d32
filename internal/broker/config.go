package broker

import (
	"fmt"
	"strings"

	"github.com/danmuck/neuraflow/internal/ipc"
)

const (
	DefaultControlAddr   = "ipc:///tmp/neura.rpc.broker"
	DefaultSinkAddr      = "ipc:///tmp/neura.stream.broker"
	DefaultStreamPrefix  = "ipc:///tmp/neura.stream"
	DefaultFirstIdentity = 100
)

// Config configures the broker endpoints and allocation scheme.
type Config struct {
	ControlAddr   string
	SinkAddr      string
	StreamPrefix  string
	FirstIdentity int64
	// AdminListenAddr enables the HTTP admin surface when non-empty (host:port).
	AdminListenAddr string
	// AdminAllowOrigins enables CORS on the admin surface for the listed origins.
	AdminAllowOrigins []string
	// AdminToken requires "Authorization: Bearer <token>" on every admin route but /health.
	AdminToken string
	IPC        ipc.Config
}

func DefaultConfig() Config {
	return Config{
		ControlAddr:   DefaultControlAddr,
		SinkAddr:      DefaultSinkAddr,
		StreamPrefix:  DefaultStreamPrefix,
		FirstIdentity: DefaultFirstIdentity,
		IPC:           ipc.DefaultConfig(),
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.ControlAddr) == "" {
		c.ControlAddr = def.ControlAddr
	}
	if strings.TrimSpace(c.SinkAddr) == "" {
		c.SinkAddr = def.SinkAddr
	}
	if strings.TrimSpace(c.StreamPrefix) == "" {
		c.StreamPrefix = def.StreamPrefix
	}
	if c.FirstIdentity <= 0 {
		c.FirstIdentity = def.FirstIdentity
	}
	c.ControlAddr = strings.TrimSpace(c.ControlAddr)
	c.SinkAddr = strings.TrimSpace(c.SinkAddr)
	c.StreamPrefix = strings.TrimSpace(c.StreamPrefix)
	c.AdminListenAddr = strings.TrimSpace(c.AdminListenAddr)
	origins := make([]string, 0, len(c.AdminAllowOrigins))
	for _, o := range c.AdminAllowOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AdminAllowOrigins = origins
	c.AdminToken = strings.TrimSpace(c.AdminToken)
	c.IPC = c.IPC.WithDefaults()
	return c
}

// Validate rejects settings that would hand workers unusable addresses.
func (c Config) Validate() error {
	if err := ipc.ValidatePrefix(c.StreamPrefix); err != nil {
		return fmt.Errorf("broker: stream prefix: %w", err)
	}
	return nil
}
