package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/neuraflow/internal/ipc"
	logs "github.com/danmuck/neuraflow/internal/logging"
	"github.com/danmuck/neuraflow/internal/observability"
)

// Control actions served by the broker.
const (
	ActionRegister = "register"
	ActionLookup   = "lookup"
	ActionServices = "services"
)

const ReplyServiceNotFound = "ERROR: Service not found"

var ErrLifecycleOrder = errors.New("broker: invalid lifecycle transition")

// Phase is the broker runtime state.
type Phase string

const (
	PhaseStarting  Phase = "starting"
	PhaseListening Phase = "listening"
	PhaseStopped   Phase = "stopped"
)

// SinkObserver receives every payload arriving on the default sink.
type SinkObserver func(payload []byte)

// Broker is the singleton registration authority.
type Broker struct {
	cfg      Config
	node     *ipc.Node
	registry *Registry

	mu        sync.RWMutex
	phase     Phase
	observers []SinkObserver
	startedAt time.Time
	sinkCount uint64

	admin    *http.Server
	adminErr chan error
}

func New(cfg Config) *Broker {
	cfg = cfg.WithDefaults()
	return &Broker{
		cfg:      cfg,
		node:     ipc.NewNode(cfg.IPC),
		registry: NewRegistry(cfg.StreamPrefix, cfg.FirstIdentity),
		phase:    PhaseStarting,
	}
}

func (b *Broker) Config() Config {
	return b.cfg
}

func (b *Broker) Registry() *Registry {
	return b.registry
}

func (b *Broker) Phase() Phase {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.phase
}

// ControlAddr returns the bound control endpoint.
func (b *Broker) ControlAddr() string {
	return b.node.ControlAddr()
}

// SinkAddr returns the bound default sink endpoint.
func (b *Broker) SinkAddr() string {
	return b.node.StreamAddr()
}

// OnSink adds an observer for default sink traffic.
func (b *Broker) OnSink(fn SinkObserver) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

// Start installs handlers, binds the control server and the default sink, and
// transitions starting -> listening. Any bind failure is returned; callers are
// expected to terminate rather than run half-initialized.
func (b *Broker) Start() error {
	b.mu.Lock()
	if b.phase != PhaseStarting {
		phase := b.phase
		b.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrLifecycleOrder, phase, PhaseListening)
	}
	b.mu.Unlock()

	if err := b.cfg.Validate(); err != nil {
		return err
	}
	b.node.RegisterHandler(ActionRegister, func(p []byte) []byte {
		return []byte(b.HandleRegistration(string(p)))
	})
	b.node.RegisterHandler(ActionLookup, b.handleLookup)
	b.node.RegisterHandler(ActionServices, b.handleServices)

	if err := b.node.StartControlServer(b.cfg.ControlAddr); err != nil {
		_ = b.node.Close()
		return err
	}
	if err := b.node.StartStreamReceiver(b.cfg.SinkAddr, b.handleSink); err != nil {
		_ = b.node.Close()
		return err
	}
	if b.cfg.AdminListenAddr != "" {
		if err := b.startAdmin(); err != nil {
			_ = b.node.Close()
			return err
		}
	}

	b.mu.Lock()
	b.phase = PhaseListening
	b.startedAt = time.Now()
	b.mu.Unlock()

	logs.Infof("broker.Start listening control=%q sink=%q prefix=%q", b.ControlAddr(), b.SinkAddr(), b.cfg.StreamPrefix)
	return nil
}

// Run starts the broker and blocks until ctx is done, then closes it.
func (b *Broker) Run(ctx context.Context) error {
	if err := b.Start(); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	if b.adminErr != nil {
		g.Go(func() error {
			select {
			case err := <-b.adminErr:
				return err
			case <-gctx.Done():
				return nil
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err := g.Wait()
	return multierr.Append(err, b.Close())
}

// Close tears down every endpoint and moves the broker to stopped.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.phase == PhaseStopped {
		b.mu.Unlock()
		return nil
	}
	b.phase = PhaseStopped
	admin := b.admin
	b.mu.Unlock()

	var err error
	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = multierr.Append(err, admin.Shutdown(shutdownCtx))
		cancel()
	}
	err = multierr.Append(err, b.node.Close())
	logs.Infof("broker.Close stopped registered=%d", b.registry.Len())
	return err
}

// HandleRegistration allocates a new identity for service and returns its address.
func (b *Broker) HandleRegistration(service string) string {
	entry := b.registry.Register(service)
	observability.RecordRegistration(service, b.registry.Len())
	logs.Infof(
		"broker.HandleRegistration service=%q identity=%d address=%q registrations=%d",
		service,
		entry.Identity,
		entry.Address,
		entry.Registrations,
	)
	if entry.Registrations > 1 {
		logs.Warnf("broker.HandleRegistration re-registration service=%q previous address orphaned", service)
	}
	return entry.Address
}

func (b *Broker) handleLookup(p []byte) []byte {
	entry, ok := b.registry.Lookup(string(p))
	if !ok {
		return []byte(ReplyServiceNotFound)
	}
	return []byte(entry.Address)
}

func (b *Broker) handleServices([]byte) []byte {
	raw, err := json.Marshal(b.registry.Snapshot())
	if err != nil {
		return []byte("ERROR: " + err.Error())
	}
	return raw
}

func (b *Broker) handleSink(payload []byte) {
	observability.RecordSinkMessage()
	b.mu.Lock()
	b.sinkCount++
	observers := append([]SinkObserver(nil), b.observers...)
	b.mu.Unlock()

	logs.Infof("broker.sink received bytes=%d data=%q", len(payload), payload)
	for _, fn := range observers {
		fn(payload)
	}
}

// Status is the broker summary exposed on the admin surface.
type Status struct {
	Phase        Phase  `json:"phase"`
	ControlAddr  string `json:"control_addr"`
	SinkAddr     string `json:"sink_addr"`
	StreamPrefix string `json:"stream_prefix"`
	Services     int    `json:"services"`
	LastIdentity int64  `json:"last_identity"`
	SinkMessages uint64 `json:"sink_messages"`
	Uptime       string `json:"uptime"`
}

func (b *Broker) Status() Status {
	b.mu.RLock()
	phase := b.phase
	started := b.startedAt
	sinkCount := b.sinkCount
	b.mu.RUnlock()

	uptime := time.Duration(0)
	if !started.IsZero() {
		uptime = time.Since(started).Truncate(time.Second)
	}
	return Status{
		Phase:        phase,
		ControlAddr:  b.ControlAddr(),
		SinkAddr:     b.SinkAddr(),
		StreamPrefix: b.cfg.StreamPrefix,
		Services:     b.registry.Len(),
		LastIdentity: b.registry.LastIdentity(),
		SinkMessages: sinkCount,
		Uptime:       uptime.String(),
	}
}
