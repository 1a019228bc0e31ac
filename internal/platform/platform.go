// Package platform defines the chat-platform contract consumed by the core:
// inbound event shapes, the outbound messenger surface, and the exit codes
// handed to the process supervisor. Concrete clients live in subpackages.
package platform

import (
	"context"
	"errors"
)

// Exit codes consumed by the external process supervisor.
const (
	// ExitScheduledRestart signals a planned daily restart.
	ExitScheduledRestart = 7
	// ExitReconnectTimeout signals that the client could not reconnect
	// within the watchdog bound. The supervisor is expected to restart us.
	ExitReconnectTimeout = 8
)

// ErrMessageNotFound reports that the target message no longer exists,
// typically because a user deleted the rendered board.
var ErrMessageNotFound = errors.New("platform: message not found")

// MessageEvent is an inbound chat message.
type MessageEvent struct {
	ChannelID  int64
	GuildID    int64 // 0 for direct messages
	MessageID  int64
	AuthorID   int64
	AuthorName string
	IsBot      bool
	Content    string
	CanRespond bool // bot may send messages and read history in this channel
}

// ReactionEvent is an inbound control-emoji press on one of the bot's
// messages. Removal of a control is an equally valid signal and carries
// Removed=true; clients that cannot observe removals never set it.
type ReactionEvent struct {
	MessageID int64
	ChannelID int64
	GuildID   int64
	UserID    int64
	UserName  string
	Emoji     string
	Removed   bool
}

// ConnectivityEvent reports a shard connecting to or dropping from the
// chat gateway.
type ConnectivityEvent struct {
	ShardID   int
	Connected bool
}

// Messenger is the outbound surface of the chat client. All calls are
// fallible and best-effort from the core's perspective; Send is the one
// call whose result (the rendered message id) feeds back into dispatch.
type Messenger interface {
	// BotID returns the bot's own user id, used to ignore self-authored events.
	BotID() int64

	// Send posts a new message and returns its id. A non-empty controls
	// list attaches the given control emoji to the message.
	Send(ctx context.Context, channelID int64, text string, controls []string) (int64, error)

	// Edit replaces the content (and controls) of an existing message.
	// Returns ErrMessageNotFound if the message is gone.
	Edit(ctx context.Context, channelID, messageID int64, text string, controls []string) error

	// ClearControls strips all control emoji from a message.
	ClearControls(ctx context.Context, channelID, messageID int64) error

	// CreateDM opens (or retrieves) a direct channel with a user.
	CreateDM(ctx context.Context, userID int64) (int64, error)

	// RequestMembers asks the gateway to populate a guild's member list.
	RequestMembers(ctx context.Context, guildID int64) error
}
