package ipc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	logs "github.com/danmuck/neuraflow/internal/logging"
)

var (
	ErrNodeClosed   = errors.New("ipc: node closed")
	ErrAlreadyBound = errors.New("ipc: endpoint already bound on node")
)

// Node owns at most one control server and one stream receiver plus the
// outbound stream connections it has opened.
type Node struct {
	id  string
	cfg Config
	log zerolog.Logger

	mu          sync.Mutex
	closed      bool
	control     net.Listener
	controlAddr string
	stream      net.Listener
	streamAddr  string
	conns       map[net.Conn]struct{}

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	sendersMu sync.Mutex
	senders   map[string]net.Conn
	dial      func(ctx context.Context, ep Endpoint, timeout time.Duration) (net.Conn, error)

	done chan struct{}
	wg   sync.WaitGroup
}

func NewNode(cfg Config) *Node {
	id := uuid.NewString()
	return &Node{
		id:       id,
		cfg:      cfg.WithDefaults(),
		log:      logs.With("node", id),
		conns:    make(map[net.Conn]struct{}),
		handlers: make(map[string]Handler),
		senders:  make(map[string]net.Conn),
		dial:     dial,
		done:     make(chan struct{}),
	}
}

// ID returns the random instance id attached to this node's log lines.
func (n *Node) ID() string {
	return n.id
}

func (n *Node) Config() Config {
	return n.cfg
}

// ControlAddr returns the bound control endpoint, or "" before StartControlServer.
func (n *Node) ControlAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.controlAddr
}

// StreamAddr returns the bound stream endpoint, or "" before StartStreamReceiver.
func (n *Node) StreamAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.streamAddr
}

// Close stops every loop, closes bound endpoints and open connections, and waits
// for in-flight handlers and callbacks to return.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.done)
	var err error
	if n.control != nil {
		err = multierr.Append(err, ignoreClosed(n.control.Close()))
	}
	if n.stream != nil {
		err = multierr.Append(err, ignoreClosed(n.stream.Close()))
	}
	for conn := range n.conns {
		_ = conn.Close()
		delete(n.conns, conn)
	}
	n.mu.Unlock()

	n.sendersMu.Lock()
	for addr, conn := range n.senders {
		err = multierr.Append(err, ignoreClosed(conn.Close()))
		delete(n.senders, addr)
	}
	n.sendersMu.Unlock()

	n.wg.Wait()
	n.log.Debug().Msg("ipc.Node closed")
	return err
}

func (n *Node) isClosed() bool {
	select {
	case <-n.done:
		return true
	default:
		return false
	}
}

func (n *Node) trackConn(conn net.Conn) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return false
	}
	n.conns[conn] = struct{}{}
	return true
}

func (n *Node) untrackConn(conn net.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.conns, conn)
}

// bind parses and listens on address, storing the listener and bound address in the
// given node fields under n.mu.
func (n *Node) bind(address string, target *net.Listener, addr *string) (net.Listener, error) {
	ep, err := ParseEndpoint(address)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrNodeClosed
	}
	if *target != nil {
		return nil, ErrAlreadyBound
	}
	ln, err := listen(ep)
	if err != nil {
		return nil, err
	}
	*target = ln
	*addr = boundAddress(ep, ln)
	return ln, nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
