package ipc

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"

	"github.com/danmuck/neuraflow/internal/observability"
	"github.com/danmuck/neuraflow/internal/protocol/frame"
)

// Handler answers one control action. It runs on the connection's goroutine and
// panics are not recovered.
type Handler func(payload []byte) []byte

// RegisterHandler installs or replaces the handler for action.
func (n *Node) RegisterHandler(action string, h Handler) {
	n.handlersMu.Lock()
	defer n.handlersMu.Unlock()
	n.handlers[action] = h
}

// StartControlServer binds the request/reply endpoint and starts its accept loop.
// A bind failure is returned wrapped in ErrBindFailed; process entrypoints treat it as fatal.
func (n *Node) StartControlServer(address string) error {
	ln, err := n.bind(address, &n.control, &n.controlAddr)
	if err != nil {
		n.log.Error().Err(err).Str("addr", address).Msg("ipc.Node.StartControlServer bind failed")
		return err
	}
	n.wg.Add(1)
	go n.serveControl(ln)
	n.log.Info().Str("addr", n.ControlAddr()).Msg("ipc.Node control server listening")
	return nil
}

func (n *Node) serveControl(ln net.Listener) {
	defer n.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if n.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			n.log.Warn().Err(err).Msg("ipc.Node control accept failed")
			return
		}
		if !n.trackConn(conn) {
			_ = conn.Close()
			return
		}
		n.wg.Add(1)
		go n.handleControlConn(conn)
	}
}

// handleControlConn serves sequential request/reply exchanges until the peer hangs up.
func (n *Node) handleControlConn(conn net.Conn) {
	defer n.wg.Done()
	defer n.untrackConn(conn)
	defer conn.Close()

	limits := n.cfg.controlLimits()
	reader := bufio.NewReader(conn)
	for {
		fr, err := frame.ReadFrame(reader, limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !n.isClosed() {
				n.log.Debug().Err(err).Msg("ipc.Node control read ended")
			}
			return
		}
		action, payload, err := decodeRequest(fr)
		if err != nil {
			n.log.Warn().Err(err).Msg("ipc.Node control decode request")
			return
		}

		start := time.Now()
		status, body := n.dispatch(action, payload)
		label := action
		if status == StatusActionNotFound {
			label = "unknown"
		}
		observability.RecordControlCall("server", label, status.String(), time.Since(start))

		if err := writeReply(conn, fr.Header.MessageID, status, body, limits); err != nil {
			n.log.Warn().Err(err).Str("action", action).Msg("ipc.Node control write reply")
			return
		}
	}
}

func (n *Node) dispatch(action string, payload []byte) (Status, []byte) {
	n.handlersMu.RLock()
	h, ok := n.handlers[action]
	n.handlersMu.RUnlock()
	if !ok {
		n.log.Warn().Str("action", action).Msg("ipc.Node control action not found")
		return StatusActionNotFound, []byte(ReplyActionNotFound)
	}
	body := h(payload)
	if IsErrorBody(body) {
		return StatusHandlerFailed, body
	}
	return StatusOK, body
}
