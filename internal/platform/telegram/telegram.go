// Package telegram adapts the platform contract to Telegram via telebot.
// Inbound text becomes message events; control emoji are rendered as an
// inline keyboard and button presses come back as reaction events.
// Telegram cannot observe a control being un-pressed, so this client
// never emits removal events.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"chat-game-bot/internal/config"
	"chat-game-bot/internal/platform"
)

// Handlers carries the event callbacks the client feeds.
type Handlers struct {
	OnMessage      func(platform.MessageEvent)
	OnReaction     func(platform.ReactionEvent)
	OnConnectivity func(platform.ConnectivityEvent)
}

// Client is the Telegram chat client. It implements platform.Messenger.
type Client struct {
	bot      *tele.Bot
	handlers Handlers
}

// New creates a Telegram client and registers its update handlers.
func New(cfg *config.BotConfig, h Handlers) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Update handler error")
		},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	c := &Client{bot: bot, handlers: h}
	bot.Handle(tele.OnText, c.handleText)
	bot.Handle(tele.OnCallback, c.handleCallback)
	return c, nil
}

// Start begins long polling and blocks until Stop.
func (c *Client) Start() {
	log.Info().Str("username", c.bot.Me.Username).Msg("Starting Telegram client")
	if c.handlers.OnConnectivity != nil {
		c.handlers.OnConnectivity(platform.ConnectivityEvent{ShardID: 0, Connected: true})
	}
	c.bot.Start()
}

// Stop halts polling.
func (c *Client) Stop() {
	log.Info().Msg("Stopping Telegram client")
	if c.handlers.OnConnectivity != nil {
		c.handlers.OnConnectivity(platform.ConnectivityEvent{ShardID: 0, Connected: false})
	}
	c.bot.Stop()
}

func (c *Client) handleText(tc tele.Context) error {
	msg, sender, chat := tc.Message(), tc.Sender(), tc.Chat()
	if msg == nil || sender == nil || chat == nil {
		return nil
	}
	if c.handlers.OnMessage == nil {
		return nil
	}

	c.handlers.OnMessage(platform.MessageEvent{
		ChannelID:  chat.ID,
		GuildID:    guildOf(chat),
		MessageID:  int64(msg.ID),
		AuthorID:   sender.ID,
		AuthorName: displayName(sender),
		IsBot:      sender.IsBot,
		Content:    tc.Text(),
		// Long polling only delivers updates for chats the bot is in.
		CanRespond: true,
	})
	return nil
}

func (c *Client) handleCallback(tc tele.Context) error {
	cb := tc.Callback()
	if cb == nil || cb.Message == nil || tc.Sender() == nil {
		return nil
	}

	// Telebot v3 may prefix callback data with \f.
	emoji := strings.TrimPrefix(cb.Data, "\f")

	if c.handlers.OnReaction != nil {
		c.handlers.OnReaction(platform.ReactionEvent{
			MessageID: int64(cb.Message.ID),
			ChannelID: cb.Message.Chat.ID,
			GuildID:   guildOf(cb.Message.Chat),
			UserID:    tc.Sender().ID,
			UserName:  displayName(tc.Sender()),
			Emoji:     emoji,
		})
	}

	// Acknowledge so the button stops spinning.
	return tc.Respond(&tele.CallbackResponse{})
}

// BotID returns the bot's own user id.
func (c *Client) BotID() int64 {
	return c.bot.Me.ID
}

// Send posts a message, attaching controls as an inline keyboard.
func (c *Client) Send(ctx context.Context, channelID int64, text string, controls []string) (int64, error) {
	msg, err := c.bot.Send(tele.ChatID(channelID), text, markupFor(controls))
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return int64(msg.ID), nil
}

// Edit replaces a message's text and controls.
func (c *Client) Edit(ctx context.Context, channelID, messageID int64, text string, controls []string) error {
	_, err := c.bot.Edit(stored(channelID, messageID), text, markupFor(controls))
	return mapEditError(err)
}

// ClearControls strips the inline keyboard from a message.
func (c *Client) ClearControls(ctx context.Context, channelID, messageID int64) error {
	_, err := c.bot.EditReplyMarkup(stored(channelID, messageID), nil)
	return mapEditError(err)
}

// CreateDM resolves the private chat with a user. On Telegram the
// private chat id equals the user id once the user has talked to the
// bot.
func (c *Client) CreateDM(ctx context.Context, userID int64) (int64, error) {
	chat, err := c.bot.ChatByID(userID)
	if err != nil {
		return 0, fmt.Errorf("failed to open direct chat: %w", err)
	}
	return chat.ID, nil
}

// RequestMembers is a no-op: Telegram offers no bulk member download.
func (c *Client) RequestMembers(ctx context.Context, guildID int64) error {
	log.Debug().Int64("guild_id", guildID).Msg("Member download not supported; skipping")
	return nil
}

func stored(channelID, messageID int64) *tele.StoredMessage {
	return &tele.StoredMessage{
		MessageID: strconv.FormatInt(messageID, 10),
		ChatID:    channelID,
	}
}

// markupFor builds a single-row inline keyboard whose callback data is
// the control emoji itself. With no controls it returns an empty markup,
// which also clears an existing keyboard on edit.
func markupFor(controls []string) *tele.ReplyMarkup {
	if len(controls) == 0 {
		return &tele.ReplyMarkup{}
	}
	row := make([]tele.InlineButton, 0, len(controls))
	for _, emoji := range controls {
		row = append(row, tele.InlineButton{Text: emoji, Data: emoji})
	}
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{row}}
}

// mapEditError normalizes telebot's edit failures: an unmodified
// message is success, a deleted one is the portable not-found error.
func mapEditError(err error) error {
	switch {
	case err == nil:
		return nil
	case strings.Contains(err.Error(), "message is not modified"):
		return nil
	case strings.Contains(err.Error(), "not found"):
		return platform.ErrMessageNotFound
	default:
		return fmt.Errorf("failed to edit message: %w", err)
	}
}

func guildOf(chat *tele.Chat) int64 {
	if chat == nil || chat.Type == tele.ChatPrivate {
		return 0
	}
	return chat.ID
}

func displayName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
