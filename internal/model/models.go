// Package model defines the data models persisted by the bot.
package model

import "time"

// ScoreEntry records one terminal, non-cancelled outcome of a
// score-eligible game.
type ScoreEntry struct {
	ID        int64     `db:"id"`
	Game      string    `db:"game"`
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	Score     int64     `db:"score"`
	Outcome   string    `db:"outcome"` // terminal state: win, lose, tie
	ChannelID int64     `db:"channel_id"`
	PlayedAt  time.Time `db:"played_at"`
}
