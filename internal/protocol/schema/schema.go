package schema

import (
	"fmt"

	logs "github.com/danmuck/neuraflow/internal/logging"
	"github.com/danmuck/neuraflow/internal/protocol/tlv"
)

// Message type IDs carried in frame.Header.MessageType.
const (
	MsgControlRequest uint32 = 1
	MsgControlReply   uint32 = 2
	MsgStream         uint32 = 3
)

// Field IDs inside control frames.
const (
	FieldAction  uint16 = 1
	FieldPayload uint16 = 2

	FieldStatus uint16 = 10
	FieldBody   uint16 = 11
)

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

// Stream frames carry raw bytes and have no field requirements.
var requirements = map[uint32][]Requirement{
	MsgControlRequest: {
		{FieldAction, tlv.TypeString},
	},
	MsgControlReply: {
		{FieldStatus, tlv.TypeU8},
	},
}

// optional lists fields that may be absent but must have the right type when present.
var optional = map[uint32][]Requirement{
	MsgControlRequest: {
		{FieldPayload, tlv.TypeBytes},
	},
	MsgControlReply: {
		{FieldBody, tlv.TypeBytes},
	},
}

// Validate enforces required fields and field types for a TLV message type.
// Unknown fields are ignored.
func Validate(messageType uint32, fields []tlv.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		logs.Errf("schema.Validate unknown message_type=%d", messageType)
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			logs.Debugf("schema.Validate missing field message_type=%d field_id=%d", messageType, req.ID)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	for _, opt := range optional[messageType] {
		f, found := tlv.GetField(fields, opt.ID)
		if found && f.Type != opt.Type {
			return ValidationError{MessageType: messageType, FieldID: opt.ID, Reason: "type mismatch"}
		}
	}
	return nil
}
