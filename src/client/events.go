package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Dispatch event names routed by the connection.
const (
	EventReady             = "READY"
	EventResumed           = "RESUMED"
	EventInteractionCreate = "INTERACTION_CREATE"
)

// Event is the payload of a Dispatch frame.
type Event interface {
	EventName() string
}

type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator"`
	GlobalName    *string   `json:"global_name,omitempty"`
	Avatar        *string   `json:"avatar"`
	Bot           *bool     `json:"bot,omitempty"`
}

type Member struct {
	User     *User       `json:"user,omitempty"`
	Nick     *string     `json:"nick,omitempty"`
	Roles    []Snowflake `json:"roles"`
	JoinedAt string      `json:"joined_at"`
}

type Application struct {
	ID    Snowflake `json:"id"`
	Flags int       `json:"flags"`
}

type UnavailableGuild struct {
	ID          Snowflake `json:"id"`
	Unavailable bool      `json:"unavailable"`
}

type Ready struct {
	Version          int                `json:"v"`
	User             User               `json:"user"`
	Guilds           []UnavailableGuild `json:"guilds"`
	SessionID        string             `json:"session_id"`
	ResumeGatewayURL string             `json:"resume_gateway_url"`
	Application      Application        `json:"application"`
}

type Resumed struct{}

type InteractionType int

const (
	InteractionPing InteractionType = iota + 1
	InteractionApplicationCommand
	InteractionMessageComponent
	InteractionApplicationCommandAutocomplete
	InteractionModalSubmit
)

func (t InteractionType) String() string {
	switch t {
	case InteractionPing:
		return "Ping"
	case InteractionApplicationCommand:
		return "ApplicationCommand"
	case InteractionMessageComponent:
		return "MessageComponent"
	case InteractionApplicationCommandAutocomplete:
		return "ApplicationCommandAutocomplete"
	case InteractionModalSubmit:
		return "ModalSubmit"
	default:
		return fmt.Sprintf("InteractionType(%d)", int(t))
	}
}

type InteractionDataOption struct {
	Name    string                  `json:"name"`
	Type    CommandOptionType       `json:"type"`
	Value   json.RawMessage         `json:"value,omitempty"`
	Options []InteractionDataOption `json:"options,omitempty"`
	Focused bool                    `json:"focused,omitempty"`
}

type InteractionData struct {
	ID      Snowflake               `json:"id"`
	Name    string                  `json:"name"`
	Type    CommandType             `json:"type"`
	Options []InteractionDataOption `json:"options,omitempty"`
}

type Interaction struct {
	ID            Snowflake        `json:"id"`
	ApplicationID Snowflake        `json:"application_id"`
	Type          InteractionType  `json:"type"`
	Data          *InteractionData `json:"data,omitempty"`
	GuildID       *Snowflake       `json:"guild_id,omitempty"`
	ChannelID     *Snowflake       `json:"channel_id,omitempty"`
	Member        *Member          `json:"member,omitempty"`
	User          *User            `json:"user,omitempty"`
	Token         string           `json:"token"`
	Version       int              `json:"version"`
}

// Invoker returns the user behind the interaction, in a guild or a DM.
func (i *Interaction) Invoker() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// UnknownEvent is any dispatch the connection does not route by name.
type UnknownEvent struct {
	Name string
	Data json.RawMessage
}

func (*Ready) EventName() string          { return EventReady }
func (*Resumed) EventName() string        { return EventResumed }
func (*Interaction) EventName() string    { return EventInteractionCreate }
func (e *UnknownEvent) EventName() string { return e.Name }

// DecodeEvent decodes the payload of a dispatch by its event name.
func DecodeEvent(d Dispatch) (Event, error) {
	var ev Event
	switch d.Event {
	case EventReady:
		ev = &Ready{}
	case EventResumed:
		return &Resumed{}, nil
	case EventInteractionCreate:
		ev = &Interaction{}
	default:
		return &UnknownEvent{Name: d.Event, Data: d.Data}, nil
	}

	if err := wireJSON.Unmarshal(d.Data, ev); err != nil {
		return nil, fmt.Errorf("could not unmarshal %s event data: %w", d.Event, err)
	}
	return ev, nil
}

// Handler receives application-level dispatch events. Methods run on the
// connection's read loop and should return promptly.
type Handler interface {
	OnReady(ctx context.Context, ready *Ready)
	OnInteractionCreate(ctx context.Context, interaction *Interaction)
	OnEvent(ctx context.Context, name string, data json.RawMessage)
}

// BaseHandler logs and ignores every event. Embed it to handle only some kinds.
type BaseHandler struct {
	Logger *slog.Logger
}

func (h BaseHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h BaseHandler) OnReady(_ context.Context, ready *Ready) {
	h.logger().Info("session ready", "user", ready.User.Username, "guilds", len(ready.Guilds))
}

func (h BaseHandler) OnInteractionCreate(_ context.Context, interaction *Interaction) {
	h.logger().Warn("unhandled interaction", "type", interaction.Type.String(), "id", interaction.ID)
}

func (h BaseHandler) OnEvent(_ context.Context, name string, _ json.RawMessage) {
	h.logger().Warn("unhandled dispatch", "event", name)
}
