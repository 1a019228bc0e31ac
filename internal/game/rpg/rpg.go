// Package rpg implements a persistent per-user adventure. The instance
// is owned by its player, follows them across channels, and is never
// removed by the expiry sweep; defeat costs experience instead of
// ending the instance.
package rpg

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"chat-game-bot/internal/game"
)

// DefaultExpiry is nominal only: user games are exempt from sweeping.
const DefaultExpiry = 30 * 24 * time.Hour

var (
	ErrUnknownAction = errors.New("rpg: unknown action")
	ErrNoEnemy       = errors.New("rpg: no enemy to attack")
	ErrInCombat      = errors.New("rpg: cannot do that while fighting")
)

// enemy is a hostile encounter. Stats loosely follow a level curve.
type enemy struct {
	name     string
	level    int
	life     int
	maxLife  int
	damage   int
	expYield int
}

var bestiary = []enemy{
	{name: "Slime", level: 1, maxLife: 14, damage: 3, expYield: 2},
	{name: "Skeleton", level: 3, maxLife: 26, damage: 5, expYield: 4},
	{name: "Skellington", level: 8, maxLife: 42, damage: 7, expYield: 8},
	{name: "Spookington", level: 11, maxLife: 29, damage: 11, expYield: 10},
}

// Game is a player's standing adventure: profile, progress and the
// current encounter, if any.
type Game struct {
	game.Base

	owner     int64
	ownerName string
	channelID atomic.Int64 // render target follows the player

	level int
	exp   int
	life  int
	enemy *enemy
}

// New creates a fresh level-1 character for owner, rendering into
// channelID until summoned elsewhere.
func New(channelID, owner int64, ownerName string) *Game {
	g := &Game{
		Base:      game.NewBase("rpg", 0, []int64{owner}, DefaultExpiry),
		owner:     owner,
		ownerName: ownerName,
		level:     1,
	}
	g.life = g.maxLife()
	g.channelID.Store(channelID)
	return g
}

// OwnerID marks the instance as persistent and user-owned.
func (g *Game) OwnerID() int64 { return g.owner }

// ChannelID returns the channel the character was last summoned in.
func (g *Game) ChannelID() int64 { return g.channelID.Load() }

// MoveTo re-targets rendering to a new channel and message.
func (g *Game) MoveTo(channelID, messageID int64) {
	g.channelID.Store(channelID)
	g.SetMessageID(messageID)
}

func (g *Game) Level() int { return g.level }
func (g *Game) Exp() int   { return g.exp }
func (g *Game) Life() int  { return g.life }

func (g *Game) maxLife() int { return 20 + 5*g.level }

// expToLevel is the experience required to reach the next level.
func (g *Game) expToLevel() int { return 4 * g.level }

// IsInput reports whether content is a known action from the owner.
// It never mutates state.
func (g *Game) IsInput(content string, userID int64) bool {
	if g.State().Terminal() || userID != g.owner {
		return false
	}
	switch normalize(content) {
	case "fight", "attack", "heal", "flee", "profile":
		return true
	default:
		return false
	}
}

// Input applies one action. The dispatcher guarantees exclusive access
// for the duration of the call.
func (g *Game) Input(ctx context.Context, content string, userID int64) error {
	defer g.Touch()
	switch normalize(content) {
	case "fight":
		return g.fight()
	case "attack":
		return g.attack()
	case "heal":
		return g.heal()
	case "flee":
		return g.flee()
	case "profile":
		return nil // re-render only
	default:
		return ErrUnknownAction
	}
}

func (g *Game) fight() error {
	if g.enemy != nil {
		return ErrInCombat
	}
	// Pick the bestiary entry closest to the player's level, wobbling by
	// one slot to vary encounters.
	idx := 0
	for i, e := range bestiary {
		if e.level <= g.level {
			idx = i
		}
	}
	if idx+1 < len(bestiary) && rand.Intn(3) == 0 {
		idx++
	}
	e := bestiary[idx]
	e.life = e.maxLife
	g.enemy = &e
	return nil
}

func (g *Game) attack() error {
	if g.enemy == nil {
		return ErrNoEnemy
	}
	g.enemy.life -= 4 + g.level
	if g.enemy.life <= 0 {
		g.gainExp(g.enemy.expYield)
		g.enemy = nil
		return nil
	}

	g.life -= g.enemy.damage
	if g.life <= 0 {
		// Defeat does not end a persistent instance: respawn at full
		// life and lose progress toward the next level.
		g.life = g.maxLife()
		g.exp = 0
		g.enemy = nil
	}
	return nil
}

func (g *Game) heal() error {
	if g.enemy != nil {
		return ErrInCombat
	}
	g.life = g.maxLife()
	return nil
}

func (g *Game) flee() error {
	if g.enemy == nil {
		return ErrNoEnemy
	}
	g.enemy = nil
	return nil
}

func (g *Game) gainExp(n int) {
	g.exp += n
	for g.exp >= g.expToLevel() {
		g.exp -= g.expToLevel()
		g.level++
		g.life = g.maxLife()
	}
}

// Render returns the character sheet, and the encounter when fighting.
func (g *Game) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⚔️ %s — level %d\n", g.ownerName, g.level)
	fmt.Fprintf(&sb, "❤️ %d/%d   ✨ %d/%d exp\n", g.life, g.maxLife(), g.exp, g.expToLevel())

	switch {
	case g.State() == game.Cancelled:
		sb.WriteString("Character retired.")
	case g.enemy != nil:
		fmt.Fprintf(&sb, "💀 %s (lv %d) — %d/%d hp\n", g.enemy.name, g.enemy.level, g.enemy.life, g.enemy.maxLife)
		sb.WriteString("Send `attack` or `flee`.")
	default:
		sb.WriteString("Send `fight` to look for trouble, or `heal` to rest.")
	}
	return sb.String()
}

func normalize(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}
