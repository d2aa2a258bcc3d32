package worker

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/neuraflow/internal/broker"
	"github.com/danmuck/neuraflow/internal/ipc"
	"github.com/danmuck/neuraflow/internal/testutil/testaddr"
)

type testEnv struct {
	dir          string
	brokerConfig broker.Config
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := testaddr.Dir(t)
	return testEnv{
		dir: dir,
		brokerConfig: broker.Config{
			ControlAddr:  ipc.SchemeIPC + filepath.Join(dir, "rpc.broker"),
			SinkAddr:     ipc.SchemeIPC + filepath.Join(dir, "stream.broker"),
			StreamPrefix: ipc.SchemeIPC + filepath.Join(dir, "stream"),
		},
	}
}

func (e testEnv) startBroker(t *testing.T) *broker.Broker {
	t.Helper()
	b := broker.New(e.brokerConfig)
	if err := b.Start(); err != nil {
		t.Fatalf("start broker: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func (e testEnv) workerConfig(service string) Config {
	cfg := DefaultConfig(service)
	cfg.BrokerAddr = e.brokerConfig.ControlAddr
	cfg.OutputAddr = e.brokerConfig.SinkAddr
	cfg.ControlPrefix = ipc.SchemeIPC + filepath.Join(e.dir, "rpc")
	cfg.Backoff = BackoffConfig{InitialDelay: 50 * time.Millisecond, Multiplier: 1}
	return cfg
}

// echoWorker emits every payload back out and accepts configs equal to "cfg-ok".
type echoWorker struct {
	mu       sync.Mutex
	received []string
	inits    atomic.Int32
	active   atomic.Int32
	overlap  atomic.Bool
	initWait time.Duration
}

func (w *echoWorker) Initialize(config []byte) bool {
	if w.active.Add(1) > 1 {
		w.overlap.Store(true)
	}
	defer w.active.Add(-1)
	w.inits.Add(1)
	if w.initWait > 0 {
		time.Sleep(w.initWait)
	}
	return string(config) == "cfg-ok"
}

func (w *echoWorker) Process(payload []byte, out Emitter) {
	w.mu.Lock()
	w.received = append(w.received, string(payload))
	w.mu.Unlock()
	_ = out.Emit(payload)
}

func (w *echoWorker) Received() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.received...)
}
