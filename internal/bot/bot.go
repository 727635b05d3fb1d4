// Package bot fills empty seats with synthetic players. A bot presents
// the same Agent surface as a human seat; its replies are sampled on
// demand after a simulated think delay, and it never holds state beyond
// its seat and sampler.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/tgaller/triviador-server/internal/protocol"
	"github.com/tgaller/triviador-server/internal/session"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

// Names is the pool the lobby draws bot display names from.
var Names = []string{
	"Árpád vezér", "Kinizsi Pál", "Dobó István", "Zrínyi Ilona",
	"Hunyadi János", "Rozgonyi Cicelle", "Bottyán János", "Lehel kürtje",
}

// PickName samples a name not already taken. Falls back to a numbered
// name when the pool is exhausted.
func PickName(d triviador.Dice, taken map[string]bool) string {
	free := make([]string, 0, len(Names))
	for _, n := range Names {
		if !taken[n] {
			free = append(free, n)
		}
	}
	if len(free) == 0 {
		return fmt.Sprintf("Bot %d", d.Intn(1000))
	}
	return free[d.Intn(len(free))]
}

// Bot is a seat whose replies are synthesized from the prompt.
type Bot struct {
	seat     int
	name     string
	dice     triviador.Dice
	thinkMin time.Duration
	thinkMax time.Duration
}

// New returns a bot for seat. Think delays are sampled uniformly from
// [thinkMin, thinkMax]; tests pass zeros.
func New(seat int, name string, d triviador.Dice, thinkMin, thinkMax time.Duration) *Bot {
	if thinkMax < thinkMin {
		thinkMax = thinkMin
	}
	return &Bot{seat: seat, name: name, dice: d, thinkMin: thinkMin, thinkMax: thinkMax}
}

func (b *Bot) Seat() int    { return b.seat }
func (b *Bot) Human() bool  { return false }
func (b *Bot) Name() string { return b.name }

// Push discards the frame; bots do not read state documents.
func (b *Bot) Push(string) error { return nil }

// AwaitReady satisfies the barrier immediately.
func (b *Bot) AwaitReady(context.Context) error { return nil }

func (b *Bot) Drain() {}
func (b *Bot) Close() {}

// Recv samples a reply for the prompt after the think delay: a uniform
// pick from the available set, a uniform option in 1..4, or a tip in
// [0, TipMax].
func (b *Bot) Recv(ctx context.Context, p session.Prompt) (protocol.Command, error) {
	if err := b.think(ctx); err != nil {
		return protocol.Command{}, err
	}
	switch p.Kind {
	case triviador.HintSelect:
		countries := p.Available.Countries()
		if len(countries) == 0 {
			return protocol.Command{}, session.ErrTimeout
		}
		c := countries[b.dice.Intn(len(countries))]
		return protocol.Command{Kind: protocol.KindSelect, Area: int(c)}, nil
	case triviador.HintAnswer:
		return protocol.Command{Kind: protocol.KindAnswer, Answer: 1 + b.dice.Intn(4)}, nil
	case triviador.HintTip:
		max := p.TipMax
		if max < 0 {
			max = 0
		}
		return protocol.Command{Kind: protocol.KindTip, Tip: b.dice.Intn(max + 1)}, nil
	default:
		return protocol.Command{}, fmt.Errorf("bot: no reply for prompt kind %d", p.Kind)
	}
}

func (b *Bot) think(ctx context.Context) error {
	delay := b.thinkMin
	if span := b.thinkMax - b.thinkMin; span > 0 {
		delay += time.Duration(b.dice.Intn(int(span)))
	}
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return session.ErrTimeout
		}
		return session.ErrClosed
	}
}
