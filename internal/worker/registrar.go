package worker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/neuraflow/internal/ipc"
	logs "github.com/danmuck/neuraflow/internal/logging"
	"github.com/danmuck/neuraflow/internal/observability"
)

// ActionRegister is the broker control action used to obtain a stream address.
const ActionRegister = "register"

// State is the registration state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateAttempting   State = "attempting"
	StateRegistered   State = "registered"
)

// Registrar drives disconnected -> attempting -> registered against the broker.
// A failed attempt falls back to disconnected; Register keeps trying until it
// succeeds or its context ends.
type Registrar struct {
	service    string
	brokerAddr string
	backoff    BackoffConfig
	ipcCfg     ipc.Config
	log        zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.RWMutex
	state    State
	address  string
	attempts int
	lastErr  string
}

// NewRegistrar builds a registrar in the disconnected state. A backoff without a
// positive InitialDelay is replaced by DefaultBackoff so retries never spin.
func NewRegistrar(service, brokerAddr string, backoff BackoffConfig, ipcCfg ipc.Config) *Registrar {
	if backoff.InitialDelay <= 0 {
		backoff = DefaultBackoff()
	}
	return &Registrar{
		service:    service,
		brokerAddr: brokerAddr,
		backoff:    backoff,
		ipcCfg:     ipcCfg.WithDefaults(),
		log:        logs.With("service", service),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		state:      StateDisconnected,
	}
}

func (r *Registrar) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Address returns the allocated stream address once registered.
func (r *Registrar) Address() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.address
}

func (r *Registrar) Attempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.attempts
}

// LastError returns the reply text of the most recent failed attempt.
func (r *Registrar) LastError() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Register blocks until the broker hands out an address. There is no attempt cap;
// only ctx ends the loop early.
func (r *Registrar) Register(ctx context.Context) (string, error) {
	r.log.Info().Str("broker", r.brokerAddr).Msg("worker.Registrar connecting to broker")
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if addr, ok := r.Attempt(ctx); ok {
			return addr, nil
		}

		r.rngMu.Lock()
		delay := NextBackoffDelay(r.backoff, attempt, r.rng)
		r.rngMu.Unlock()
		r.log.Warn().
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Str("reply", r.LastError()).
			Msg("worker.Registrar registration failed (broker offline?)")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

// Attempt performs one register call and applies the resulting transition.
func (r *Registrar) Attempt(ctx context.Context) (string, bool) {
	r.mu.Lock()
	r.state = StateAttempting
	r.attempts++
	r.mu.Unlock()

	reply := ipc.CallWithConfig(ctx, r.ipcCfg, r.brokerAddr, ActionRegister, []byte(r.service))
	ok := AcceptsAddress(reply)
	observability.RecordRegistrationAttempt(r.service, ok)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !ok {
		r.state = StateDisconnected
		r.lastErr = reply.String()
		return "", false
	}
	r.state = StateRegistered
	r.address = reply.String()
	r.lastErr = ""
	r.log.Info().Str("address", r.address).Msg("worker.Registrar registration successful")
	return r.address, true
}

// AcceptsAddress reports whether a register reply carries a usable endpoint: an ok
// status, no ERROR marker, and a recognised address scheme.
func AcceptsAddress(reply ipc.Reply) bool {
	if reply.Failed() {
		return false
	}
	_, err := ipc.ParseEndpoint(reply.String())
	return err == nil
}
