package ipc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"

	"github.com/danmuck/neuraflow/internal/observability"
	"github.com/danmuck/neuraflow/internal/protocol/frame"
	"github.com/danmuck/neuraflow/internal/protocol/schema"
)

// StreamCallback consumes one inbound stream message on the ingestion goroutine.
type StreamCallback func(payload []byte)

// StartStreamReceiver binds a one-way inbound endpoint. Every sender connection is read
// on its own goroutine, but cb is only ever invoked from a single ingestion goroutine,
// so a slow callback throttles this receiver and nothing else.
func (n *Node) StartStreamReceiver(address string, cb StreamCallback) error {
	ln, err := n.bind(address, &n.stream, &n.streamAddr)
	if err != nil {
		n.log.Error().Err(err).Str("addr", address).Msg("ipc.Node.StartStreamReceiver bind failed")
		return err
	}
	inbox := make(chan []byte)
	n.wg.Add(2)
	go n.ingest(inbox, cb)
	go n.serveStream(ln, inbox)
	n.log.Info().Str("addr", n.StreamAddr()).Msg("ipc.Node stream receiver listening")
	return nil
}

func (n *Node) serveStream(ln net.Listener, inbox chan<- []byte) {
	defer n.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if n.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			n.log.Warn().Err(err).Msg("ipc.Node stream accept failed")
			return
		}
		if !n.trackConn(conn) {
			_ = conn.Close()
			return
		}
		n.wg.Add(1)
		go n.readStreamConn(conn, inbox)
	}
}

func (n *Node) readStreamConn(conn net.Conn, inbox chan<- []byte) {
	defer n.wg.Done()
	defer n.untrackConn(conn)
	defer conn.Close()

	limits := n.cfg.streamLimits()
	reader := bufio.NewReader(conn)
	for {
		fr, err := frame.ReadFrame(reader, limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !n.isClosed() {
				n.log.Warn().Err(err).Msg("ipc.Node stream read")
			}
			return
		}
		if fr.Header.MessageType != schema.MsgStream {
			n.log.Warn().Uint32("message_type", fr.Header.MessageType).Msg("ipc.Node stream unexpected message")
			return
		}
		select {
		case inbox <- fr.Payload:
		case <-n.done:
			return
		}
	}
}

func (n *Node) ingest(inbox <-chan []byte, cb StreamCallback) {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case payload := <-inbox:
			observability.RecordStreamMessage("in", len(payload), true)
			if cb != nil {
				cb(payload)
			}
		}
	}
}

// PushStream sends one message to address without waiting for any acknowledgment.
// The node keeps one outbound connection per address so that consecutive pushes
// from this node arrive in order. A failed write on a cached connection is retried
// once on a fresh one; nothing else is retried. Dialing happens outside the sender
// lock so an unreachable address does not stall pushes to other addresses.
func (n *Node) PushStream(address string, payload []byte) error {
	if n.isClosed() {
		return ErrNodeClosed
	}
	if uint64(len(payload)) > uint64(n.cfg.MaxMessageBytes) {
		observability.RecordStreamMessage("out", len(payload), false)
		return frame.ErrPayloadTooLarge
	}
	limits := n.cfg.streamLimits()

	sent, err := n.writeCached(address, payload, limits)
	if err != nil || sent {
		return err
	}

	ep, err := ParseEndpoint(address)
	if err != nil {
		return err
	}
	conn, err := n.dial(context.Background(), ep, n.cfg.DialTimeout)
	if err != nil {
		observability.RecordStreamMessage("out", len(payload), false)
		return err
	}

	n.sendersMu.Lock()
	defer n.sendersMu.Unlock()
	if n.isClosed() {
		_ = conn.Close()
		return ErrNodeClosed
	}
	if cached, ok := n.senders[address]; ok {
		// another push dialed the same address meanwhile; keep a single connection
		_ = conn.Close()
		conn = cached
	}
	if err := writeStream(conn, payload, limits); err != nil {
		_ = conn.Close()
		delete(n.senders, address)
		observability.RecordStreamMessage("out", len(payload), false)
		return err
	}
	n.senders[address] = conn
	observability.RecordStreamMessage("out", len(payload), true)
	return nil
}

// writeCached writes on the cached connection for address, if any. It reports
// false with a nil error when the caller needs to dial a new connection.
func (n *Node) writeCached(address string, payload []byte, limits frame.Limits) (bool, error) {
	n.sendersMu.Lock()
	defer n.sendersMu.Unlock()
	if n.isClosed() {
		return false, ErrNodeClosed
	}
	conn, ok := n.senders[address]
	if !ok {
		return false, nil
	}
	if err := writeStream(conn, payload, limits); err != nil {
		_ = conn.Close()
		delete(n.senders, address)
		return false, nil
	}
	observability.RecordStreamMessage("out", len(payload), true)
	return true, nil
}

// Push opens a connection, sends one message and closes it.
func Push(ctx context.Context, address string, payload []byte) error {
	return PushWithConfig(ctx, DefaultConfig(), address, payload)
}

func PushWithConfig(ctx context.Context, cfg Config, address string, payload []byte) error {
	cfg = cfg.WithDefaults()
	ep, err := ParseEndpoint(address)
	if err != nil {
		return err
	}
	conn, err := dial(ctx, ep, cfg.DialTimeout)
	if err != nil {
		observability.RecordStreamMessage("out", len(payload), false)
		return err
	}
	defer conn.Close()
	if err := writeStream(conn, payload, cfg.streamLimits()); err != nil {
		observability.RecordStreamMessage("out", len(payload), false)
		return err
	}
	observability.RecordStreamMessage("out", len(payload), true)
	return nil
}
