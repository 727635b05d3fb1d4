package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tgaller/triviador-server/internal/metrics"
	"github.com/tgaller/triviador-server/internal/protocol"
	"github.com/tgaller/triviador-server/internal/session"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

type tipEntry struct {
	seat    int
	tip     int
	elapsed time.Duration
	ok      bool
}

// tipOutcome is the resolved ordering of one tip contest.
type tipOutcome struct {
	Truth  int
	Winner int
	Second int
	Tipped map[int]bool
}

// tipRound runs one numeric-tip contest: the question goes out with the
// tip hint for the participants, their tips are collected concurrently
// against a shared deadline, and the resolved ordering is published. This
// is the engine's only fan-out across seats.
func (m *Match) tipRound(ctx context.Context, askPhase, resultPhase triviador.Phase, participants []int) (*tipOutcome, error) {
	tq, err := m.questions.NextTip(ctx)
	if err != nil {
		return nil, fmt.Errorf("next tip question: %w", err)
	}

	snap := m.state.Snapshot()
	hint := m.hint(triviador.HintTip, 0, tq.Max, participants...)
	if err := m.state.BeginPrompt(askPhase, snap.Round, snap.Available, hint); err != nil {
		return nil, err
	}
	withTipQuestion := func(d *protocol.Document) {
		d.TipQuestion = protocol.TipQuestionElement(*tq)
	}
	if err := m.step(ctx, withTipQuestion, m.humans(participants...)...); err != nil {
		return nil, err
	}

	start := time.Now()
	deadline := start.Add(m.cfg.TipTimeout)
	entries := make([]tipEntry, len(participants))
	g, gctx := errgroup.WithContext(ctx)
	for i, seat := range participants {
		g.Go(func() error {
			cmd, rerr := m.agents[seat-1].Recv(gctx, session.Prompt{
				Kind:     triviador.HintTip,
				TipMax:   tq.Max,
				Deadline: deadline,
			})
			entries[i] = tipEntry{seat: seat}
			switch {
			case rerr == nil:
				if cmd.Kind == protocol.KindExitRoom || cmd.Kind == protocol.KindCloseGame {
					m.markDisconnected(seat)
					return fmt.Errorf("seat %d left: %w", seat, session.ErrClosed)
				}
				if cmd.Kind == protocol.KindTip {
					entries[i] = tipEntry{seat: seat, tip: cmd.Tip, elapsed: time.Since(start), ok: true}
				}
			case errors.Is(rerr, session.ErrTimeout):
				metrics.PromptTimeouts.WithLabelValues(triviador.HintTip.String()).Inc()
			default:
				m.markDisconnected(seat)
				return fmt.Errorf("seat %d tip: %w", seat, rerr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out := resolveTips(entries, tq.Answer)

	var tips, elapsedMS [3]int
	var participated [3]bool
	for _, e := range entries {
		participated[e.seat-1] = true
		if e.ok {
			tips[e.seat-1] = e.tip
			elapsedMS[e.seat-1] = int(e.elapsed.Milliseconds())
		}
	}
	m.state.Commit(resultPhase)
	withResult := func(d *protocol.Document) {
		d.TipInfo = protocol.TipInfoElement(tips, elapsedMS, participated)
		d.TipResult = protocol.TipResultElement(out.Truth, out.Winner, out.Second)
	}
	if err := m.step(ctx, withResult); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveTips orders the entries: a given tip beats a missing one, closer
// beats farther, equal distance goes to the earlier tip, and a full tie
// goes to the lower seat.
func resolveTips(entries []tipEntry, truth int) *tipOutcome {
	sorted := append([]tipEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return a.seat < b.seat
		}
		da, db := absInt(a.tip-truth), absInt(b.tip-truth)
		if da != db {
			return da < db
		}
		if a.elapsed != b.elapsed {
			return a.elapsed < b.elapsed
		}
		return a.seat < b.seat
	})

	out := &tipOutcome{Truth: truth, Tipped: make(map[int]bool, len(entries))}
	for _, e := range entries {
		out.Tipped[e.seat] = e.ok
	}
	out.Winner = sorted[0].seat
	if len(sorted) > 1 {
		out.Second = sorted[1].seat
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
