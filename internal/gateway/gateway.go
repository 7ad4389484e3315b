// Package gateway defines the interfaces the bot core consumes from the
// chat platform. The core never talks to the platform library directly; an
// adapter implements these and is injected at startup.
package gateway

import (
	"context"

	"sectbot/internal/render"
)

// Member is a point-in-time snapshot of a guild member.
type Member struct {
	GuildID   int64
	UserID    int64
	Username  string
	AvatarURL string
	Bot       bool
	RoleIDs   []int64
}

// HasRole reports whether the member holds roleID.
func (m Member) HasRole(roleID int64) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Role is a guild role.
type Role struct {
	ID       int64
	Name     string
	Color    int
	Position int
}

// Channel is a sendable text channel in a guild.
type Channel struct {
	ID      int64
	GuildID int64
	Name    string
}

// MessageRef identifies a previously sent message for in-place edits.
type MessageRef struct {
	ChannelID int64
	MessageID int64
}

// Zero reports whether the ref points at nothing.
func (r MessageRef) Zero() bool {
	return r.ChannelID == 0 && r.MessageID == 0
}

// ButtonStyle selects the platform's rendering of a button.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
)

// Button is one interactive component attached to a message. CustomID is
// routed back through Dispatcher.RegisterComponent on click.
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

// Message is the structured outbound payload: plain content, an optional
// embed, and optional buttons.
type Message struct {
	Content string
	Embed   *render.Embed
	Buttons []Button
}

// Session is the core's window onto the connected platform. All methods
// return tagged *Error values on platform faults.
type Session interface {
	// GuildName returns the display name of a guild.
	GuildName(ctx context.Context, guildID int64) (string, error)

	// GuildMembers lists every member of a guild, bots included.
	GuildMembers(ctx context.Context, guildID int64) ([]Member, error)

	// Member returns a single member snapshot with its current role set.
	Member(ctx context.Context, guildID, userID int64) (Member, error)

	// Role resolves a role by ID within a guild.
	Role(ctx context.Context, guildID, roleID int64) (Role, error)

	// Channels lists the guild's text channels the bot can send to,
	// in display order.
	Channels(ctx context.Context, guildID int64) ([]Channel, error)

	// SendMessage posts msg to a channel and returns a ref for edits.
	SendMessage(ctx context.Context, channelID int64, msg Message) (MessageRef, error)

	// EditMessage replaces a previously sent message in place.
	EditMessage(ctx context.Context, ref MessageRef, msg Message) error

	// SendDM delivers msg to the member's direct messages.
	SendDM(ctx context.Context, userID int64, msg Message) error
}

// Command is one slash-command invocation. Options hold the raw option
// values keyed by option name; handlers coerce types themselves.
type Command struct {
	Name    string
	GuildID int64
	Invoker Member
	Options map[string]string
}

// Component is one button click on a message the bot sent.
type Component struct {
	CustomID string
	GuildID  int64
	Invoker  Member
	Message  MessageRef
}

// Responder acknowledges an interaction within the platform's response
// window. Defer-then-Followup is supported for slow work.
type Responder interface {
	Defer(ctx context.Context, ephemeral bool) error
	Respond(ctx context.Context, msg Message, ephemeral bool) error
	Followup(ctx context.Context, msg Message, ephemeral bool) (MessageRef, error)
	// Edit rewrites the message the interaction was attached to; used by
	// pagination buttons to acknowledge and update in one round trip.
	Edit(ctx context.Context, msg Message) error
}

// CommandOption describes one declared slash-command option.
type CommandOption struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
}

// OptionType is the declared type of a command option.
type OptionType int

const (
	OptionString OptionType = iota
	OptionInteger
	OptionUser
	OptionRole
	OptionChannel
)

// CommandDef declares a slash command for registration.
type CommandDef struct {
	Description string
	AdminOnly   bool
	Options     []CommandOption
}

// CommandFunc handles one command invocation.
type CommandFunc func(ctx context.Context, cmd Command, r Responder)

// ComponentFunc handles one component click.
type ComponentFunc func(ctx context.Context, comp Component, r Responder)

// Dispatcher is the externally provided event/command delivery mechanism
// the core registers its handlers on.
type Dispatcher interface {
	RegisterCommand(name string, def CommandDef, fn CommandFunc)
	// RegisterComponent routes clicks whose custom ID starts with prefix.
	RegisterComponent(prefix string, fn ComponentFunc)
	OnMemberJoin(fn func(ctx context.Context, m Member))
	OnMemberLeave(fn func(ctx context.Context, m Member))
	OnMemberUpdate(fn func(ctx context.Context, before, after Member))
	OnGuildJoin(fn func(ctx context.Context, guildID int64))
}
