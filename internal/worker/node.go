package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/danmuck/neuraflow/internal/ipc"
	logs "github.com/danmuck/neuraflow/internal/logging"
)

// Control actions installed on every worker control server.
const (
	ActionInit   = "init"
	ActionPing   = "ping"
	ActionStatus = "status"
)

const (
	ReplyInitOK   = "OK"
	ReplyInitFail = "FAIL"
	ReplyPong     = "PONG"
)

var (
	ErrServiceNameRequired = errors.New("worker: service name required")
	ErrWorkerRequired      = errors.New("worker: implementation required")
	ErrAlreadyStarted      = errors.New("worker: already started")
)

// Emitter pushes results downstream.
type Emitter interface {
	Emit(payload []byte) error
}

// Worker is the service logic a Node hosts.
//
// Initialize runs once per "init" control call and its result becomes the reply
// "OK" or "FAIL". Process runs for every stream message, one at a time, and may
// emit any number of results. Neither may panic: the node does not recover.
type Worker interface {
	Initialize(config []byte) bool
	Process(payload []byte, out Emitter)
}

// Node binds a Worker to the broker-allocated channels.
type Node struct {
	cfg       Config
	impl      Worker
	ipc       *ipc.Node
	registrar *Registrar
	log       zerolog.Logger

	initMu sync.Mutex

	mu          sync.RWMutex
	started     bool
	initialized bool
}

func New(cfg Config, impl Worker) (*Node, error) {
	cfg = cfg.WithDefaults()
	if cfg.ServiceName == "" {
		return nil, ErrServiceNameRequired
	}
	if impl == nil {
		return nil, ErrWorkerRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Node{
		cfg:       cfg,
		impl:      impl,
		ipc:       ipc.NewNode(cfg.IPC),
		registrar: NewRegistrar(cfg.ServiceName, cfg.BrokerAddr, cfg.Backoff, cfg.IPC),
		log:       logs.With("service", cfg.ServiceName),
	}, nil
}

func (n *Node) ServiceName() string {
	return n.cfg.ServiceName
}

func (n *Node) Config() Config {
	return n.cfg
}

func (n *Node) Registrar() *Registrar {
	return n.registrar
}

// StreamAddr returns the broker-allocated stream address, empty before registration.
func (n *Node) StreamAddr() string {
	return n.ipc.StreamAddr()
}

// ControlAddr returns the worker control address, empty when not bound.
func (n *Node) ControlAddr() string {
	return n.ipc.ControlAddr()
}

func (n *Node) Initialized() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.initialized
}

// Start registers with the broker (retrying until ctx ends), then binds the stream
// receiver at the returned address and the control server beside it. A bind
// failure is returned as is; callers treat it as fatal.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return ErrAlreadyStarted
	}
	n.started = true
	n.mu.Unlock()

	n.log.Info().Str("broker", n.cfg.BrokerAddr).Msg("worker.Node starting")
	addr, err := n.registrar.Register(ctx)
	if err != nil {
		return fmt.Errorf("worker: register %q: %w", n.cfg.ServiceName, err)
	}

	n.ipc.RegisterHandler(ActionInit, n.handleInit)
	n.ipc.RegisterHandler(ActionPing, func([]byte) []byte { return []byte(ReplyPong) })
	n.ipc.RegisterHandler(ActionStatus, func([]byte) []byte { return []byte(n.registrar.State()) })

	if err := n.ipc.StartStreamReceiver(addr, n.process); err != nil {
		return err
	}
	if controlAddr := n.controlAddress(addr); controlAddr != "" {
		if err := n.ipc.StartControlServer(controlAddr); err != nil {
			return err
		}
	}
	n.log.Info().
		Str("stream", n.StreamAddr()).
		Str("control", n.ControlAddr()).
		Msg("worker.Node running")
	return nil
}

// Run starts the node and blocks until ctx is done, then closes it.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		_ = n.Close()
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	<-ctx.Done()
	return n.Close()
}

// Emit pushes payload to the configured output address.
func (n *Node) Emit(payload []byte) error {
	if err := n.ipc.PushStream(n.cfg.OutputAddr, payload); err != nil {
		n.log.Warn().Err(err).Str("output", n.cfg.OutputAddr).Msg("worker.Node.Emit failed")
		return err
	}
	return nil
}

func (n *Node) Close() error {
	return n.ipc.Close()
}

func (n *Node) handleInit(config []byte) []byte {
	n.initMu.Lock()
	defer n.initMu.Unlock()

	n.log.Info().Int("config_bytes", len(config)).Msg("worker.Node received init")
	ok := n.impl.Initialize(config)

	n.mu.Lock()
	n.initialized = ok
	n.mu.Unlock()
	if !ok {
		n.log.Warn().Msg("worker.Node initialize failed")
		return []byte(ReplyInitFail)
	}
	return []byte(ReplyInitOK)
}

func (n *Node) process(payload []byte) {
	n.impl.Process(payload, n)
}

func (n *Node) controlAddress(streamAddr string) string {
	if n.cfg.ControlPrefix == "" {
		return ""
	}
	id, err := ipc.IdentityFromAddress(streamAddr)
	if err != nil {
		n.log.Warn().Err(err).Msg("worker.Node control server disabled")
		return ""
	}
	return ipc.AllocatedAddress(n.cfg.ControlPrefix, id)
}
