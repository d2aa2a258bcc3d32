package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/neuraflow/internal/broker"
	"github.com/danmuck/neuraflow/internal/config"
	"github.com/danmuck/neuraflow/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brokerd.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadBrokerConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
control_addr = "tcp://127.0.0.1:7100"
stream_prefix = " ipc:///run/neura.stream "
admin_listen_addr = "127.0.0.1:7110"
admin_allow_origins = ["http://localhost:3000"]
max_message_bytes = 2097152
reply_timeout = "3s"
`)
	cfg, err := loadBrokerConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ControlAddr != "tcp://127.0.0.1:7100" {
		t.Fatalf("unexpected control addr: %q", cfg.ControlAddr)
	}
	if cfg.SinkAddr != broker.DefaultSinkAddr {
		t.Fatalf("sink addr should keep default: %q", cfg.SinkAddr)
	}
	if cfg.StreamPrefix != "ipc:///run/neura.stream" {
		t.Fatalf("unexpected stream prefix: %q", cfg.StreamPrefix)
	}
	if cfg.FirstIdentity != broker.DefaultFirstIdentity {
		t.Fatalf("unexpected first identity: %d", cfg.FirstIdentity)
	}
	if cfg.AdminListenAddr != "127.0.0.1:7110" {
		t.Fatalf("unexpected admin listen: %q", cfg.AdminListenAddr)
	}
	if len(cfg.AdminAllowOrigins) != 1 || cfg.AdminAllowOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected origins: %+v", cfg.AdminAllowOrigins)
	}
	if cfg.IPC.MaxMessageBytes != 2*1024*1024 {
		t.Fatalf("unexpected max message bytes: %d", cfg.IPC.MaxMessageBytes)
	}
	if cfg.IPC.ReplyTimeout != 3*time.Second {
		t.Fatalf("unexpected reply timeout: %v", cfg.IPC.ReplyTimeout)
	}
}

func TestLoadBrokerConfigRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	if _, err := loadBrokerConfig(writeConfig(t, `first_identity = 0`)); err == nil {
		t.Fatalf("expected first_identity error")
	}
	_, err := loadBrokerConfig(writeConfig(t, `dial_timeout = "soon"`))
	if err == nil || !strings.Contains(err.Error(), "dial_timeout") {
		t.Fatalf("expected dial_timeout parse error, got %v", err)
	}
	_, err = loadBrokerConfig(writeConfig(t, `stream_prefix = "tcp://127.0.0.1:7000"`))
	if err == nil || !strings.Contains(err.Error(), "stream prefix") {
		t.Fatalf("expected stream prefix error, got %v", err)
	}
	if _, err := loadBrokerConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestLoadBrokerConfigTemplate(t *testing.T) {
	testlog.Start(t)
	tmpl, err := config.Template(config.KindBroker)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	cfg, err := loadBrokerConfig(writeConfig(t, tmpl))
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	def := broker.DefaultConfig()
	if cfg.ControlAddr != def.ControlAddr || cfg.SinkAddr != def.SinkAddr || cfg.StreamPrefix != def.StreamPrefix {
		t.Fatalf("template addresses drifted from defaults: %+v", cfg)
	}
	if cfg.FirstIdentity != def.FirstIdentity || cfg.IPC.MaxMessageBytes != def.IPC.MaxMessageBytes {
		t.Fatalf("template limits drifted from defaults: %+v", cfg)
	}
	if cfg.AdminToken != "" {
		t.Fatalf("template admin token should be empty")
	}
}
