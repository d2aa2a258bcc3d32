package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/neuraflow/internal/ipc"
	"github.com/danmuck/neuraflow/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestTemplatesValidate(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{KindBroker, KindWorker} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("%s write template: %v", kind, err)
		}
		if err := Validate(kind, path); err != nil {
			t.Fatalf("%s template invalid: %v", kind, err)
		}
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "keep = true\n")
	if err := WriteTemplate(path, KindBroker, false); err == nil {
		t.Fatalf("expected existing file error")
	}
	if err := WriteTemplate(path, KindBroker, true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestValidateRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "control_addr = \"ipc:///tmp/a\"\ncontrol_adr = \"typo\"\n")
	err := Validate(KindBroker, path)
	if err == nil || !strings.Contains(err.Error(), "config parse failed") {
		t.Fatalf("expected strict decode error, got %v", err)
	}
}

func TestValidateBrokerFile(t *testing.T) {
	testlog.Start(t)
	if err := ValidateBrokerFile(BrokerFile{ControlAddr: "zmq://nope"}); !errors.Is(err, ipc.ErrInvalidEndpoint) {
		t.Fatalf("expected invalid endpoint, got %v", err)
	}
	if err := ValidateBrokerFile(BrokerFile{ControlAddr: "ipc:///tmp/x", SinkAddr: "ipc:///tmp/x"}); err == nil {
		t.Fatalf("expected control/sink collision error")
	}
	if err := ValidateBrokerFile(BrokerFile{ReplyTimeout: "-1s"}); err == nil {
		t.Fatalf("expected negative duration error")
	}
	if err := ValidateBrokerFile(BrokerFile{}); err != nil {
		t.Fatalf("empty file should validate: %v", err)
	}
}

func TestValidateWorkerFile(t *testing.T) {
	testlog.Start(t)
	if err := ValidateWorkerFile(WorkerFile{BrokerAddr: "tcp://missing-port"}); !errors.Is(err, ipc.ErrInvalidEndpoint) {
		t.Fatalf("expected invalid endpoint, got %v", err)
	}
	err := ValidateWorkerFile(WorkerFile{RetryInterval: "often"})
	if err == nil || !strings.Contains(err.Error(), "retry_interval") {
		t.Fatalf("expected retry_interval error, got %v", err)
	}
}

func TestValidateRejectsTCPPrefixes(t *testing.T) {
	testlog.Start(t)
	err := ValidateBrokerFile(BrokerFile{StreamPrefix: "tcp://127.0.0.1:7000"})
	if !errors.Is(err, ipc.ErrInvalidPrefix) || !strings.Contains(err.Error(), "stream_prefix") {
		t.Fatalf("expected stream_prefix rejection, got %v", err)
	}
	err = ValidateWorkerFile(WorkerFile{ControlPrefix: "tcp://127.0.0.1:7000"})
	if !errors.Is(err, ipc.ErrInvalidPrefix) || !strings.Contains(err.Error(), "control_prefix") {
		t.Fatalf("expected control_prefix rejection, got %v", err)
	}
	if err := ValidateBrokerFile(BrokerFile{StreamPrefix: "ipc:///tmp/neura.stream"}); err != nil {
		t.Fatalf("ipc prefix should validate: %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	testlog.Start(t)
	if p, err := DefaultPath(" Broker "); err != nil || p != "cmd/brokerd/config.toml" {
		t.Fatalf("broker path=%q err=%v", p, err)
	}
	if _, err := DefaultPath("mirage"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
