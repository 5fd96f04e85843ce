package client

import (
	"encoding/json"

	"personal/cheesebot/src/intents"
	"personal/cheesebot/src/opcodes"
)

type Snowflake string

// GatewayMetadata is the response of GET /gateway/bot.
type GatewayMetadata struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

type SessionStartLimit struct {
	Total          int `json:"total"`
	Remaining      int `json:"remaining"`
	ResetAfter     int `json:"reset_after"`
	MaxConcurrency int `json:"max_concurrency"`
}

// Packet is the envelope of every inbound frame.
type Packet struct {
	Op opcodes.Opcode  `json:"op"`
	T  string          `json:"t,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
	S  Seq             `json:"s"`
}

type outboundPacket struct {
	Op opcodes.Opcode `json:"op"`
	D  any            `json:"d"`
}

type HelloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type ConnectionProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type IdentifyData struct {
	Token          string               `json:"token"`
	Intents        intents.Intent       `json:"intents"`
	Properties     ConnectionProperties `json:"properties"`
	Compress       bool                 `json:"compress,omitempty"`
	LargeThreshold int                  `json:"large_threshold,omitempty"`
}

type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  uint64 `json:"seq"`
}
