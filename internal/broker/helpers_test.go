package broker

import (
	"path/filepath"
	"testing"

	"github.com/danmuck/neuraflow/internal/ipc"
	"github.com/danmuck/neuraflow/internal/testutil/testaddr"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := testaddr.Dir(t)
	return Config{
		ControlAddr:  ipc.SchemeIPC + filepath.Join(dir, "rpc.broker"),
		SinkAddr:     ipc.SchemeIPC + filepath.Join(dir, "stream.broker"),
		StreamPrefix: ipc.SchemeIPC + filepath.Join(dir, "stream"),
	}
}

func startTestBroker(t *testing.T) *Broker {
	t.Helper()
	b := New(testConfig(t))
	if err := b.Start(); err != nil {
		t.Fatalf("start broker: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}
