package broker

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/neuraflow/internal/ipc"
)

// Entry is one registered service.
type Entry struct {
	Service      string    `json:"service"`
	Identity     int64     `json:"identity"`
	Address      string    `json:"address"`
	RegisteredAt time.Time `json:"registered_at"`
	// Registrations counts how many times this name has been registered.
	Registrations uint64 `json:"registrations"`
}

// Registry maps service names to their most recently allocated stream address.
// Re-registering a name allocates a fresh identity and orphans the previous address.
type Registry struct {
	prefix string
	next   atomic.Int64

	mu     sync.RWMutex
	routes map[string]Entry
}

func NewRegistry(prefix string, firstIdentity int64) *Registry {
	r := &Registry{
		prefix: prefix,
		routes: make(map[string]Entry),
	}
	r.next.Store(firstIdentity - 1)
	return r
}

// AddressFor derives the stream address for identity.
func (r *Registry) AddressFor(identity int64) string {
	return ipc.AllocatedAddress(r.prefix, identity)
}

// Register allocates the next identity and upserts name -> address.
func (r *Registry) Register(name string) Entry {
	id := r.next.Add(1)
	entry := Entry{
		Service:      name,
		Identity:     id,
		Address:      r.AddressFor(id),
		RegisteredAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.routes[name]
	if ok && prev.Identity > id {
		// a concurrent registration of the same name already stored a newer identity
		prev.Registrations++
		r.routes[name] = prev
		entry.Registrations = prev.Registrations
		return entry
	}
	entry.Registrations = prev.Registrations + 1
	r.routes[name] = entry
	return entry
}

func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.routes[name]
	return e, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Snapshot returns entries ordered by identity.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.routes))
	for _, e := range r.routes {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// LastIdentity returns the most recently allocated identity.
func (r *Registry) LastIdentity() int64 {
	return r.next.Load()
}
