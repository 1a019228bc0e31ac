package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"chat-game-bot/internal/game"
	"chat-game-bot/internal/platform"
)

func (r *Router) handleStats(ctx context.Context, ev platform.MessageEvent, _ []string) error {
	all := r.registry.All()
	if len(all) == 0 {
		r.reply(ctx, ev, "No games are running right now.")
		return nil
	}

	counts := lo.CountValuesBy(all, func(g game.Game) string { return g.Name() })
	names := lo.Keys(counts)
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "**%d** games running:\n", len(all))
	for _, name := range names {
		fmt.Fprintf(&b, "• %s: %d\n", name, counts[name])
	}
	r.reply(ctx, ev, b.String())
	return nil
}

func (r *Router) handleTop(ctx context.Context, ev platform.MessageEvent, args []string) error {
	if r.scores == nil {
		r.reply(ctx, ev, "Leaderboards aren't available right now.")
		return nil
	}

	name := "snake"
	if len(args) > 0 {
		name = strings.ToLower(args[0])
	}

	entries, err := r.scores.Top(ctx, name, 10)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		r.reply(ctx, ev, "No scores recorded for "+name+" yet.")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top %s scores:\n", name)
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s — %d\n", i+1, e.Username, e.Score)
	}

	// Best-effort personal line; the leaderboard still goes out if the
	// lookup fails.
	best, err := r.scores.UserBest(ctx, name, ev.AuthorID)
	switch {
	case err != nil:
		log.Warn().Err(err).
			Str("game", name).
			Int64("user_id", ev.AuthorID).
			Msg("Could not look up personal best")
	case best != nil:
		fmt.Fprintf(&b, "Your best: %d\n", best.Score)
	}

	r.reply(ctx, ev, b.String())
	return nil
}

func (r *Router) handleHelp(ctx context.Context, ev platform.MessageEvent, _ []string) error {
	p := r.cfg.Bot.Prefix
	help := strings.Join([]string{
		"Games: " + p + "ttt, " + p + "c4 (add a user id to challenge someone), " + p + "snake, " + p + "rpg",
		"Manage: " + p + "cancel, " + p + "bump",
		"Info: " + p + "stats, " + p + "top <game>",
	}, "\n")
	r.reply(ctx, ev, help)
	return nil
}
