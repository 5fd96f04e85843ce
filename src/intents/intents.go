// Package intents declares the gateway intent flags sent at identify time.
package intents

// Intent is a single gateway intent bit. A set of intents is the bitwise OR of its members.
type Intent uint64

const (
	Guilds Intent = 1 << iota
	GuildMembers
	GuildBans
	GuildEmojis
	GuildIntegrations
	GuildWebhooks
	GuildInvites
	GuildVoiceStates
	GuildPresences
	GuildMessages
	GuildMessageReactions
	GuildMessageTyping
	DirectMessages
	DirectMessageReactions
	DirectMessageTyping
)

const (
	None Intent = 0

	// AllWithoutPrivileged leaves out the intents that must be enabled in the developer portal.
	AllWithoutPrivileged = Guilds |
		GuildBans |
		GuildEmojis |
		GuildIntegrations |
		GuildWebhooks |
		GuildInvites |
		GuildVoiceStates |
		GuildMessages |
		GuildMessageReactions |
		GuildMessageTyping |
		DirectMessages |
		DirectMessageReactions |
		DirectMessageTyping

	All = AllWithoutPrivileged | GuildMembers | GuildPresences
)

// Combine ORs the given intents together.
func Combine(in ...Intent) Intent {
	var out Intent
	for _, i := range in {
		out |= i
	}
	return out
}

// Privileged reports whether i requests any privileged intent.
func (i Intent) Privileged() bool {
	return i&(GuildMembers|GuildPresences) != 0
}
