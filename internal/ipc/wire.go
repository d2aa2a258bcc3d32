package ipc

import (
	"fmt"
	"io"

	"github.com/danmuck/neuraflow/internal/protocol/frame"
	"github.com/danmuck/neuraflow/internal/protocol/schema"
	"github.com/danmuck/neuraflow/internal/protocol/tlv"
)

// writeRequest sends the action field and, when payload is non-nil, the payload field.
func writeRequest(w io.Writer, messageID uint64, action string, payload []byte, limits frame.Limits) error {
	fields := []tlv.Field{tlv.String(schema.FieldAction, action)}
	if payload != nil {
		fields = append(fields, tlv.Bytes(schema.FieldPayload, payload))
	}
	return frame.WriteFrame(w, frame.Frame{
		Header: frame.Header{
			MessageID:   messageID,
			MessageType: schema.MsgControlRequest,
		},
		Payload: tlv.EncodeFields(fields),
	}, limits)
}

func decodeRequest(f frame.Frame) (string, []byte, error) {
	if f.Header.MessageType != schema.MsgControlRequest {
		return "", nil, fmt.Errorf("ipc: unexpected message_type=%d", f.Header.MessageType)
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return "", nil, err
	}
	if err := schema.Validate(schema.MsgControlRequest, fields); err != nil {
		return "", nil, err
	}
	action, _ := tlv.GetField(fields, schema.FieldAction)
	var payload []byte
	if p, ok := tlv.GetField(fields, schema.FieldPayload); ok {
		payload = p.Value
	}
	return string(action.Value), payload, nil
}

func writeReply(w io.Writer, messageID uint64, status Status, body []byte, limits frame.Limits) error {
	flags := frame.FlagIsResponse
	if status != StatusOK {
		flags |= frame.FlagIsError
	}
	return frame.WriteFrame(w, frame.Frame{
		Header: frame.Header{
			MessageID:   messageID,
			MessageType: schema.MsgControlReply,
			Flags:       flags,
		},
		Payload: tlv.EncodeFields([]tlv.Field{
			tlv.U8(schema.FieldStatus, uint8(status)),
			tlv.Bytes(schema.FieldBody, body),
		}),
	}, limits)
}

func decodeReply(f frame.Frame) (Reply, error) {
	if f.Header.MessageType != schema.MsgControlReply {
		return Reply{}, fmt.Errorf("ipc: unexpected message_type=%d", f.Header.MessageType)
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Reply{}, err
	}
	if err := schema.Validate(schema.MsgControlReply, fields); err != nil {
		return Reply{}, err
	}
	statusField, _ := tlv.GetField(fields, schema.FieldStatus)
	status, err := statusField.U8()
	if err != nil {
		return Reply{}, err
	}
	reply := Reply{Status: Status(status)}
	if body, ok := tlv.GetField(fields, schema.FieldBody); ok {
		reply.Body = body.Value
	}
	return reply, nil
}

func writeStream(w io.Writer, payload []byte, limits frame.Limits) error {
	return frame.WriteFrame(w, frame.Frame{
		Header:  frame.Header{MessageType: schema.MsgStream},
		Payload: payload,
	}, limits)
}
