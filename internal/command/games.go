package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"chat-game-bot/internal/game"
	"chat-game-bot/internal/game/connect4"
	"chat-game-bot/internal/game/rpg"
	"chat-game-bot/internal/game/snake"
	"chat-game-bot/internal/game/tictactoe"
	"chat-game-bot/internal/platform"
	"chat-game-bot/internal/session"
)

func (r *Router) handleTicTacToe(ctx context.Context, ev platform.MessageEvent, args []string) error {
	return r.startDuel(ctx, ev, args, "ttt")
}

func (r *Router) handleConnect4(ctx context.Context, ev platform.MessageEvent, args []string) error {
	return r.startDuel(ctx, ev, args, "connect4")
}

// startDuel starts a two-player board game, against the bot or against
// a challenged opponent who must accept first.
func (r *Router) startDuel(ctx context.Context, ev platform.MessageEvent, args []string, kind string) error {
	opponent, vsBot, ok := parseOpponent(args)
	if !ok {
		r.reply(ctx, ev, "Play against me with no argument, or challenge someone with their user id.")
		return nil
	}
	if opponent == ev.AuthorID {
		r.reply(ctx, ev, "You can't challenge yourself. Well, you can, but not here.")
		return nil
	}

	botID := r.messenger.BotID()
	var players [2]int64
	if vsBot {
		players = [2]int64{ev.AuthorID, botID}
	} else {
		if !r.awaitAccept(ctx, ev, opponent) {
			return nil
		}
		// The challenged player moves first.
		players = [2]int64{opponent, ev.AuthorID}
	}

	var g game.Game
	switch kind {
	case "ttt":
		g = tictactoe.New(ev.ChannelID, players, botID, r.cfg.Games.Expiry)
	case "connect4":
		g = connect4.New(ev.ChannelID, players, botID, r.cfg.Games.Expiry)
	}

	return r.startInChannel(ctx, ev, g, nil)
}

func (r *Router) handleSnake(ctx context.Context, ev platform.MessageEvent, _ []string) error {
	g := snake.New(ev.ChannelID, ev.AuthorID, r.cfg.Games.Expiry)
	return r.startInChannel(ctx, ev, g, g.Controls())
}

// startInChannel registers a new instance and posts its first render.
// Registration comes first so two racing starts can't both claim the
// channel; the loser never posts.
func (r *Router) startInChannel(ctx context.Context, ev platform.MessageEvent, g game.Game, controls []string) error {
	if err := r.registry.Add(g); err != nil {
		if errors.Is(err, session.ErrSlotConflict) {
			r.reply(ctx, ev, "There's already a game running here. Finish it or use "+r.cfg.Bot.Prefix+"cancel.")
			return nil
		}
		return err
	}

	id, err := r.messenger.Send(ctx, ev.ChannelID, g.Render(), controls)
	if err != nil {
		r.registry.Remove(g, false)
		return err
	}
	g.SetMessageID(id)
	return nil
}

// awaitAccept posts a challenge and blocks until the opponent answers
// or the invite times out. Reports whether the duel is on.
func (r *Router) awaitAccept(ctx context.Context, ev platform.MessageEvent, opponent int64) bool {
	invite := fmt.Sprintf(
		"%s challenges you to a game! Type `accept` within %s, or `deny`.",
		ev.AuthorName, r.cfg.Games.InviteTimeout,
	)
	inviteID, err := r.messenger.Send(ctx, ev.ChannelID, invite, nil)
	if err != nil {
		return false
	}

	answer := r.pending.Wait(ctx, r.cfg.Games.InviteTimeout, func(m platform.MessageEvent) bool {
		if m.ChannelID != ev.ChannelID || m.AuthorID != opponent {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(m.Content)) {
		case "accept", "yes", "deny", "no":
			return true
		default:
			return false
		}
	})

	if answer == nil {
		_ = r.messenger.Edit(ctx, ev.ChannelID, inviteID, "The challenge expired.", nil)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer.Content)) {
	case "accept", "yes":
		return true
	default:
		_ = r.messenger.Edit(ctx, ev.ChannelID, inviteID, "The challenge was declined.", nil)
		return false
	}
}

func (r *Router) handleRPG(ctx context.Context, ev platform.MessageEvent, args []string) error {
	sub := "summon"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	existing, hasGame := r.registry.FindByParticipant(ev.AuthorID)

	switch sub {
	case "start":
		if hasGame {
			r.reply(ctx, ev, "You already have an adventure. Use "+r.cfg.Bot.Prefix+"rpg to summon it here.")
			return nil
		}
		g := rpg.New(ev.ChannelID, ev.AuthorID, ev.AuthorName)
		if err := r.registry.Add(g); err != nil {
			return err
		}
		id, err := r.messenger.Send(ctx, ev.ChannelID, g.Render(), nil)
		if err != nil {
			r.registry.Remove(g, false)
			return err
		}
		g.SetMessageID(id)
		return nil

	case "delete":
		if !hasGame {
			r.reply(ctx, ev, "You don't have an adventure to delete.")
			return nil
		}
		r.registry.Remove(existing, false)
		r.reply(ctx, ev, "Your adventure has been deleted. Start over with "+r.cfg.Bot.Prefix+"rpg start.")
		return nil

	case "summon", "profile", "dm":
		if !hasGame {
			r.reply(ctx, ev, "You don't have an adventure yet. Start one with "+r.cfg.Bot.Prefix+"rpg start.")
			return nil
		}
		g, ok := existing.(*rpg.Game)
		if !ok {
			return fmt.Errorf("unexpected user game type %T", existing)
		}
		channelID := ev.ChannelID
		if sub == "dm" {
			if r.dms == nil {
				r.reply(ctx, ev, "Direct messages aren't available here.")
				return nil
			}
			dm, err := r.dms.DMChannel(ctx, ev.AuthorID)
			if err != nil {
				return err
			}
			channelID = dm
		}
		return r.locks.WithLock(g.ID(), func() error {
			id, err := r.messenger.Send(ctx, channelID, g.Render(), nil)
			if err != nil {
				return err
			}
			g.MoveTo(channelID, id)
			return nil
		})

	default:
		r.reply(ctx, ev, "Unknown rpg action. Try start, summon, dm or delete.")
		return nil
	}
}

func (r *Router) handleCancel(ctx context.Context, ev platform.MessageEvent, _ []string) error {
	g, ok := session.Find[game.Game](r.registry, ev.ChannelID)
	if !ok {
		r.reply(ctx, ev, "There's no game running here.")
		return nil
	}
	if !lo.Contains(g.Players(), ev.AuthorID) {
		r.reply(ctx, ev, "Only a player of this game can cancel it.")
		return nil
	}

	_ = r.locks.WithLock(g.ID(), func() error {
		g.Cancel()
		return nil
	})
	// Notify so the registry's update hook renders the final board.
	r.registry.Remove(g, true)
	return nil
}

// handleBump re-posts a game at the bottom of the channel, keeping the
// instance and retiring the old message.
func (r *Router) handleBump(ctx context.Context, ev platform.MessageEvent, _ []string) error {
	g, ok := session.Find[game.Game](r.registry, ev.ChannelID)
	if !ok {
		r.reply(ctx, ev, "There's no game running here.")
		return nil
	}

	return r.locks.WithLock(g.ID(), func() error {
		old := g.MessageID()
		var controls []string
		if rg, isReaction := g.(game.ReactionGame); isReaction && !g.State().Terminal() {
			controls = rg.Controls()
		}
		id, err := r.messenger.Send(ctx, ev.ChannelID, g.Render(), controls)
		if err != nil {
			return err
		}
		g.SetMessageID(id)
		_ = r.messenger.Edit(ctx, ev.ChannelID, old, "⬇️ The game moved below.", nil)
		return nil
	})
}

// parseOpponent interprets the first argument as an opponent: absent or
// "bot" plays against the bot, otherwise it must be a numeric user id.
func parseOpponent(args []string) (opponent int64, vsBot, ok bool) {
	if len(args) == 0 || strings.EqualFold(args[0], "bot") {
		return 0, true, true
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "@"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false, false
	}
	return id, false, true
}
