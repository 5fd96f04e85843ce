package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zlib"

	"personal/cheesebot/src/opcodes"
)

var wireJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// maxHeartbeatIntervalMS is the largest interval that fits a time.Duration.
const maxHeartbeatIntervalMS = math.MaxInt64 / int64(time.Millisecond)

// opUnknown marks a frame whose envelope could not be read.
const opUnknown opcodes.Opcode = -1

// Frame is one decoded inbound gateway frame. Exactly one of the types
// below is returned for every well-formed frame.
type Frame interface {
	Opcode() opcodes.Opcode
}

type Dispatch struct {
	Event    string
	Sequence uint64
	Data     json.RawMessage
}

// HeartbeatRequest asks for an immediate heartbeat.
type HeartbeatRequest struct {
	LastSequence Seq
}

type Reconnect struct{}

type InvalidSession struct {
	Resumable bool
}

type Hello struct {
	HeartbeatIntervalMS int64
}

// Interval is the heartbeat cadence requested by the server.
func (h Hello) Interval() time.Duration {
	return time.Duration(h.HeartbeatIntervalMS) * time.Millisecond
}

type HeartbeatACK struct{}

func (Dispatch) Opcode() opcodes.Opcode         { return opcodes.Dispatch }
func (HeartbeatRequest) Opcode() opcodes.Opcode { return opcodes.Heartbeat }
func (Reconnect) Opcode() opcodes.Opcode        { return opcodes.Reconnect }
func (InvalidSession) Opcode() opcodes.Opcode   { return opcodes.InvalidSession }
func (Hello) Opcode() opcodes.Opcode            { return opcodes.Hello }
func (HeartbeatACK) Opcode() opcodes.Opcode     { return opcodes.HeartbeatACK }

// OutboundFrame is a frame the client sends.
type OutboundFrame interface {
	Opcode() opcodes.Opcode
	data() any
}

type Heartbeat struct {
	LastSequence Seq
}

type Identify struct {
	IdentifyData
}

type Resume struct {
	ResumeData
}

func (Heartbeat) Opcode() opcodes.Opcode { return opcodes.Heartbeat }
func (Identify) Opcode() opcodes.Opcode  { return opcodes.Identify }
func (Resume) Opcode() opcodes.Opcode    { return opcodes.Resume }

func (h Heartbeat) data() any { return h.LastSequence }
func (i Identify) data() any  { return i.IdentifyData }
func (r Resume) data() any    { return r.ResumeData }

// Encode serializes an outbound frame as {"op": ..., "d": ...}.
func Encode(f OutboundFrame) ([]byte, error) {
	payload, err := wireJSON.Marshal(outboundPacket{Op: f.Opcode(), D: f.data()})
	if err != nil {
		return nil, fmt.Errorf("could not marshal %s frame: %w", f.Opcode(), err)
	}
	return payload, nil
}

// Decode parses one websocket message. Binary messages are zlib payloads.
// Every failure is a *DecodeError.
func Decode(messageType int, message []byte) (Frame, error) {
	if messageType == websocket.BinaryMessage {
		inflated, err := inflate(message)
		if err != nil {
			return nil, &DecodeError{Op: opUnknown, Err: err}
		}
		message = inflated
	}

	var packet Packet
	if err := wireJSON.Unmarshal(message, &packet); err != nil {
		return nil, &DecodeError{Op: opUnknown, Err: err}
	}

	frame, err := decodePacket(packet)
	if err != nil {
		return nil, &DecodeError{Op: packet.Op, Err: err}
	}
	return frame, nil
}

func decodePacket(packet Packet) (Frame, error) {
	switch packet.Op {
	case opcodes.Dispatch:
		if packet.T == "" {
			return nil, errors.New("missing event name")
		}
		if !packet.S.Valid {
			return nil, errors.New("missing sequence number")
		}
		return Dispatch{Event: packet.T, Sequence: packet.S.Value, Data: packet.D}, nil

	case opcodes.Heartbeat:
		var last Seq
		if len(packet.D) > 0 {
			if err := wireJSON.Unmarshal(packet.D, &last); err != nil {
				return nil, err
			}
		}
		return HeartbeatRequest{LastSequence: last}, nil

	case opcodes.Reconnect:
		return Reconnect{}, nil

	case opcodes.InvalidSession:
		var resumable bool
		if len(packet.D) == 0 {
			return nil, errors.New("missing resumable flag")
		}
		if err := wireJSON.Unmarshal(packet.D, &resumable); err != nil {
			return nil, err
		}
		return InvalidSession{Resumable: resumable}, nil

	case opcodes.Hello:
		var hello HelloData
		if len(packet.D) == 0 {
			return nil, errors.New("missing payload")
		}
		if err := wireJSON.Unmarshal(packet.D, &hello); err != nil {
			return nil, err
		}
		if hello.HeartbeatInterval <= 0 || hello.HeartbeatInterval > maxHeartbeatIntervalMS {
			return nil, fmt.Errorf("invalid heartbeat interval %d", hello.HeartbeatInterval)
		}
		return Hello{HeartbeatIntervalMS: hello.HeartbeatInterval}, nil

	case opcodes.HeartbeatACK:
		return HeartbeatACK{}, nil
	}

	if !packet.Op.Known() {
		return nil, errors.New("unknown opcode")
	}
	return nil, errors.New("unexpected opcode")
}

func inflate(message []byte) ([]byte, error) {
	z, err := zlib.NewReader(bytes.NewReader(message))
	if err != nil {
		return nil, fmt.Errorf("could not open zlib payload: %w", err)
	}
	defer z.Close()

	out, err := io.ReadAll(z)
	if err != nil {
		return nil, fmt.Errorf("could not inflate payload: %w", err)
	}
	return out, nil
}
