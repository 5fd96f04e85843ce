package client

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"personal/cheesebot/src/opcodes"
)

var (
	// ErrSendClosed is returned when a frame is enqueued after its connection ended.
	ErrSendClosed = errors.New("outbound channel closed")

	// ErrHeartbeatTimeout ends a connection whose heartbeats stopped being acknowledged.
	ErrHeartbeatTimeout = errors.New("heartbeat not acknowledged")
)

// MetadataFetchError reports a failed gateway metadata request.
type MetadataFetchError struct {
	Err error
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("fetch gateway metadata: %v", e.Err)
}

func (e *MetadataFetchError) Unwrap() error { return e.Err }

// ConnectError reports a failed websocket upgrade.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to gateway %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// DecodeError reports an inbound frame that could not be decoded.
// The frame is dropped and the connection stays open.
type DecodeError struct {
	Op  opcodes.Opcode
	Err error
}

func (e *DecodeError) Error() string {
	if e.Op == opUnknown {
		return fmt.Sprintf("decode frame: %v", e.Err)
	}
	return fmt.Sprintf("decode %s frame: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SendError reports that the websocket write path failed.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send frame: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// SignalKind names the server request that ended a connection.
type SignalKind int

const (
	SignalReconnect SignalKind = iota
	SignalInvalidSession
)

func (k SignalKind) String() string {
	switch k {
	case SignalReconnect:
		return "reconnect"
	case SignalInvalidSession:
		return "invalid session"
	default:
		return "unknown"
	}
}

// ProtocolSignal is returned when the server asks the client to drop the
// connection. It is expected, not a failure.
type ProtocolSignal struct {
	Kind      SignalKind
	Resumable bool
}

func (s *ProtocolSignal) Error() string {
	return fmt.Sprintf("gateway requested %s (resumable: %t)", s.Kind, s.Resumable)
}

// CloseError carries the close frame sent by the gateway.
type CloseError struct {
	Code int
	Text string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("gateway closed connection: %d %s", e.Code, e.Text)
}

// Fatal reports whether reconnecting cannot succeed with the same configuration.
func (e *CloseError) Fatal() bool {
	switch e.Code {
	case 4004, // authentication failed
		4010, // invalid shard
		4011, // sharding required
		4012, // invalid API version
		4013, // invalid intents
		4014: // disallowed intents
		return true
	}
	return false
}

// HTTPError is a non-2xx REST response.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// asCloseError converts a websocket close into a *CloseError and passes other errors through.
func asCloseError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: ce.Code, Text: ce.Text}
	}
	return err
}
