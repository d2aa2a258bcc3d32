package ipc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/neuraflow/internal/observability"
	"github.com/danmuck/neuraflow/internal/protocol/frame"
)

var callSeq atomic.Uint64

// Call performs one control exchange on a fresh connection using DefaultConfig.
func Call(ctx context.Context, address, action string, payload []byte) Reply {
	return CallWithConfig(ctx, DefaultConfig(), address, action, payload)
}

// CallWithConfig dials address, sends one request, waits for exactly one reply and
// closes the connection. Transport failures never surface as Go errors: they come
// back as StatusConnectFailed or StatusRecvFailed replies.
func CallWithConfig(ctx context.Context, cfg Config, address, action string, payload []byte) Reply {
	cfg = cfg.WithDefaults()
	start := time.Now()
	reply := call(ctx, cfg, address, action, payload)
	observability.RecordControlCall("client", action, reply.Status.String(), time.Since(start))
	return reply
}

func call(ctx context.Context, cfg Config, address, action string, payload []byte) Reply {
	ep, err := ParseEndpoint(address)
	if err != nil {
		return failedReply(StatusConnectFailed, err)
	}
	conn, err := dial(ctx, ep, cfg.DialTimeout)
	if err != nil {
		return failedReply(StatusConnectFailed, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if cfg.ReplyTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.ReplyTimeout))
	}

	limits := cfg.controlLimits()
	id := callSeq.Add(1)
	if err := writeRequest(conn, id, action, payload, limits); err != nil {
		return failedReply(StatusRecvFailed, contextOr(ctx, err))
	}
	fr, err := frame.ReadFrame(conn, limits)
	if err != nil {
		return failedReply(StatusRecvFailed, contextOr(ctx, err))
	}
	if fr.Header.MessageID != id {
		return failedReply(StatusRecvFailed, fmt.Errorf("ipc: reply message_id=%d want %d", fr.Header.MessageID, id))
	}
	reply, err := decodeReply(fr)
	if err != nil {
		return failedReply(StatusRecvFailed, err)
	}
	return reply
}

func contextOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}
