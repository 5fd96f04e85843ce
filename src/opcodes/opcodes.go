package opcodes

import "strconv"

// 0	Dispatch	Receive	An event was dispatched.
// 1	Heartbeat	Send/Receive	Fired periodically by the client to keep the connection alive.
// 2	Identify	Send	Starts a new session during the initial handshake.
// 3	Presence Update	Send	Update the client's presence.
// 4	Voice State Update	Send	Used to join/leave or move between voice channels.
// 6	Resume	Send	Resume a previous session that was disconnected.
// 7	Reconnect	Receive	You should attempt to reconnect and resume immediately.
// 8	Request Guild Members	Send	Request information about offline guild members in a large guild.
// 9	Invalid Session	Receive	The session has been invalidated. You should reconnect and identify/resume accordingly.
// 10	Hello	Receive	Sent immediately after connecting, contains the heartbeat_interval to use.
// 11	Heartbeat ACK	Receive	Sent in response to receiving a heartbeat to acknowledge that it has been received.

// Opcode tags every gateway frame.
type Opcode int

const (
	Dispatch            Opcode = 0
	Heartbeat           Opcode = 1
	Identify            Opcode = 2
	PresenceUpdate      Opcode = 3
	VoiceStateUpdate    Opcode = 4
	Resume              Opcode = 6
	Reconnect           Opcode = 7
	RequestGuildMembers Opcode = 8
	InvalidSession      Opcode = 9
	Hello               Opcode = 10
	HeartbeatACK        Opcode = 11
)

var names = map[Opcode]string{
	Dispatch:            "Dispatch",
	Heartbeat:           "Heartbeat",
	Identify:            "Identify",
	PresenceUpdate:      "PresenceUpdate",
	VoiceStateUpdate:    "VoiceStateUpdate",
	Resume:              "Resume",
	Reconnect:           "Reconnect",
	RequestGuildMembers: "RequestGuildMembers",
	InvalidSession:      "InvalidSession",
	Hello:               "Hello",
	HeartbeatACK:        "HeartbeatACK",
}

func (o Opcode) String() string {
	if name, ok := names[o]; ok {
		return name
	}
	return "Opcode(" + strconv.Itoa(int(o)) + ")"
}

// Known reports whether o is part of the gateway protocol.
func (o Opcode) Known() bool {
	_, ok := names[o]
	return ok
}
