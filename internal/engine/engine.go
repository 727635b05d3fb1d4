// Package engine drives a match through its phases: one orchestrator
// goroutine owns the state, pushes frames through the seat agents, waits
// on the ready barrier and collects prompted replies. Everything blocking
// is a receive with a deadline; the tip contest is the only place that
// fans out concurrent receives.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tgaller/triviador-server/internal/metrics"
	"github.com/tgaller/triviador-server/internal/model"
	"github.com/tgaller/triviador-server/internal/protocol"
	"github.com/tgaller/triviador-server/internal/question"
	"github.com/tgaller/triviador-server/internal/session"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

// ErrAborted wraps any condition that ends a match before its natural end.
var ErrAborted = errors.New("engine: match aborted")

const (
	conquestRounds = 5
	battleRounds   = 6
)

// Config holds the tunable timings of a match. Tests compress these.
type Config struct {
	SelectTimeout  time.Duration
	AnswerTimeout  time.Duration
	TipTimeout     time.Duration
	BarrierTimeout time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		SelectTimeout:  90 * time.Second,
		AnswerTimeout:  20 * time.Second,
		TipTimeout:     15 * time.Second,
		BarrierTimeout: 120 * time.Second,
	}
}

// Observer receives match lifecycle events. The live projection, the
// spectator hub and the metrics all hang off it.
type Observer interface {
	MatchStarted(matchID string, info model.MatchInfo)
	StateChanged(matchID string, snap *triviador.State, doc string)
	MatchEnded(matchID string, rec *model.MatchRecord)
}

// NoopObserver ignores every event.
type NoopObserver struct{}

func (NoopObserver) MatchStarted(string, model.MatchInfo)          {}
func (NoopObserver) StateChanged(string, *triviador.State, string) {}
func (NoopObserver) MatchEnded(string, *model.MatchRecord)         {}

// Match is one running game: three seat agents, the authoritative state
// and the orchestration that moves them through the phases.
type Match struct {
	id        string
	cfg       Config
	gameMap   *triviador.Map
	state     *triviador.State
	agents    [3]session.Agent
	questions question.Provider
	dice      triviador.Dice
	observer  Observer
	startedAt time.Time
}

// New assembles a match. A nil observer is replaced with a noop one.
func New(id string, cfg Config, m *triviador.Map, scoring triviador.Scoring, roomType int,
	agents [3]session.Agent, qp question.Provider, d triviador.Dice, obs Observer) *Match {
	if obs == nil {
		obs = NoopObserver{}
	}
	st := triviador.NewState(m, scoring, roomType)
	for seat := 1; seat <= 3; seat++ {
		st.SetConnected(seat, true)
	}
	return &Match{
		id:        id,
		cfg:       cfg,
		gameMap:   m,
		state:     st,
		agents:    agents,
		questions: qp,
		dice:      d,
		observer:  obs,
	}
}

// ID returns the match identifier.
func (m *Match) ID() string { return m.id }

// Snapshot exposes the current state for the projection and observer API.
func (m *Match) Snapshot() *triviador.State { return m.state.Snapshot() }

// Run drives the match to completion and returns its archive record. The
// record is non-nil even when the match aborts; err then carries the cause.
func (m *Match) Run(ctx context.Context) (*model.MatchRecord, error) {
	m.startedAt = time.Now()
	defer func() {
		for _, ag := range m.agents {
			ag.Close()
		}
	}()

	m.observer.MatchStarted(m.id, m.Info())
	log.Info().Str("matchId", m.id).Str("map", m.gameMap.Name).Msg("Match started")

	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{"setup", m.setupPhase},
		{"base", m.basePhase},
		{"conquest", m.conquestPhase},
		{"fill", m.fillPhase},
		{"battle", m.battlePhase},
	}
	for _, ph := range phases {
		if err := ph.run(ctx); err != nil {
			log.Warn().Err(err).Str("matchId", m.id).Str("phase", ph.name).Msg("Match aborted")
			return m.finish(true), fmt.Errorf("%w: %s: %v", ErrAborted, ph.name, err)
		}
		if err := m.state.Invariants(); err != nil {
			log.Error().Err(err).Str("matchId", m.id).Str("phase", ph.name).Msg("State invariant violated")
			return m.finish(true), fmt.Errorf("%w: %v", ErrAborted, err)
		}
	}

	rec := m.finish(false)
	log.Info().Str("matchId", m.id).Int("winner", rec.Winner).
		Str("scores", triviador.FormatScores(m.state.Snapshot().Scores)).
		Msg("Match finished")
	return rec, nil
}

// finish enters the end phase, pushes the closing document to every seat
// still reachable and builds the archive record.
func (m *Match) finish(aborted bool) *model.MatchRecord {
	standings := m.state.Standings()
	var places [3]int
	for i, seat := range standings {
		places[seat-1] = i + 1
	}
	winner := standings[0]
	result := model.MatchResultFinished
	if aborted {
		winner = 0
		result = model.MatchResultAborted
	}

	m.state.EnterPhase(triviador.Phase{State: triviador.StateEnd})
	snap := m.state.Snapshot()
	doc := &protocol.Document{
		State: protocol.StateElement(snap),
		End:   protocol.EndElement(winner, places, aborted),
	}
	if out, err := doc.Render(); err == nil {
		for _, ag := range m.agents {
			if perr := ag.Push(out); perr != nil {
				log.Debug().Str("matchId", m.id).Int("seat", ag.Seat()).Msg("End frame not deliverable")
			}
		}
		m.observer.StateChanged(m.id, snap, out)
	}

	rec := &model.MatchRecord{
		ID:         m.id,
		MapName:    snap.MapName,
		RoomType:   snap.RoomType,
		Result:     result,
		Winner:     winner,
		StartedAt:  m.startedAt,
		FinishedAt: time.Now(),
	}
	for i, ag := range m.agents {
		kind := model.SeatKindBot
		if ag.Human() {
			kind = model.SeatKindHuman
		}
		rec.Seats[i] = model.SeatResult{
			Seat:  i + 1,
			Name:  ag.Name(),
			Kind:  kind,
			Score: snap.Scores[i],
			Place: places[i],
		}
	}
	m.observer.MatchEnded(m.id, rec)
	return rec
}

// Info summarises the match for the live listing and the projection.
func (m *Match) Info() model.MatchInfo {
	snap := m.state.Snapshot()
	var players [3]string
	for i, ag := range m.agents {
		players[i] = ag.Name()
	}
	return model.MatchInfo{
		ID:        m.id,
		MapName:   snap.MapName,
		RoomType:  snap.RoomType,
		Phase:     snap.Phase.String(),
		Players:   players,
		StartedAt: m.startedAt,
	}
}

// markDisconnected records a seat dropping out of the match.
func (m *Match) markDisconnected(seat int) {
	m.state.SetConnected(seat, false)
	metrics.SeatDisconnects.Inc()
}

// broadcast renders the current state and pushes one frame per seat.
// extra decorates every seat's document; hintSeats get the hint variant
// and have their stale commands drained first. Any push failure on a seat
// is match-fatal.
func (m *Match) broadcast(extra func(*protocol.Document), hintSeats ...int) error {
	snap := m.state.Snapshot()
	stateEl := protocol.StateElement(snap)
	var hintEl *protocol.CmdEl
	if snap.Hint != nil {
		hintEl = protocol.HintElement(snap.Hint)
	}

	for i, ag := range m.agents {
		seat := i + 1
		doc := &protocol.Document{State: stateEl}
		if extra != nil {
			extra(doc)
		}
		if hintEl != nil && containsSeat(hintSeats, seat) {
			ag.Drain()
			doc.Cmd = hintEl
		}
		out, err := doc.Render()
		if err != nil {
			return fmt.Errorf("render frame: %w", err)
		}
		if err := ag.Push(out); err != nil {
			m.markDisconnected(seat)
			return fmt.Errorf("push to seat %d: %w", seat, err)
		}
	}

	obsDoc := &protocol.Document{State: stateEl}
	if extra != nil {
		extra(obsDoc)
	}
	if out, err := obsDoc.Render(); err == nil {
		m.observer.StateChanged(m.id, snap, out)
	}
	return nil
}

// barrier waits for every seat to acknowledge the last frame. Bots
// acknowledge immediately. A timeout marks the silent seat disconnected
// and aborts the match.
func (m *Match) barrier(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.BarrierTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, ag := range m.agents {
		g.Go(func() error {
			if err := ag.AwaitReady(gctx); err != nil {
				m.markDisconnected(ag.Seat())
				return fmt.Errorf("seat %d ready: %w", ag.Seat(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// step is the broadcast-then-barrier pair every phase advances with.
func (m *Match) step(ctx context.Context, extra func(*protocol.Document), hintSeats ...int) error {
	if err := m.broadcast(extra, hintSeats...); err != nil {
		return err
	}
	return m.barrier(ctx)
}

// collectSelect obtains the acting seat's pick from pool, substituting a
// random legal one on timeout, wrong kind or an out-of-pool pick.
func (m *Match) collectSelect(ctx context.Context, seat int, pool triviador.Bitmap) (triviador.Country, error) {
	cmd, err := m.agents[seat-1].Recv(ctx, session.Prompt{
		Kind:      triviador.HintSelect,
		Available: pool,
		Deadline:  time.Now().Add(m.cfg.SelectTimeout),
	})
	switch {
	case err == nil:
		if cmd.Kind == protocol.KindExitRoom || cmd.Kind == protocol.KindCloseGame {
			m.markDisconnected(seat)
			return 0, fmt.Errorf("seat %d left: %w", seat, session.ErrClosed)
		}
		if cmd.Kind == protocol.KindSelect {
			if c := triviador.Country(cmd.Area); pool.Has(c) {
				return c, nil
			}
		}
	case errors.Is(err, session.ErrTimeout):
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		metrics.PromptTimeouts.WithLabelValues(triviador.HintSelect.String()).Inc()
	default:
		m.markDisconnected(seat)
		return 0, fmt.Errorf("seat %d select: %w", seat, err)
	}
	return triviador.Pick(m.dice, pool.Countries()), nil
}

// hint builds the command hint for a prompt, or nil when no prompted seat
// is human.
func (m *Match) hint(kind triviador.HintKind, avail triviador.Bitmap, tipMax int, seats ...int) *triviador.CmdHint {
	if len(m.humans(seats...)) == 0 {
		return nil
	}
	var timeout time.Duration
	switch kind {
	case triviador.HintSelect:
		timeout = m.cfg.SelectTimeout
	case triviador.HintAnswer:
		timeout = m.cfg.AnswerTimeout
	case triviador.HintTip:
		timeout = m.cfg.TipTimeout
	}
	return &triviador.CmdHint{Kind: kind, Available: avail, Timeout: timeout, TipMax: tipMax}
}

// humans filters seats down to those backed by a human agent.
func (m *Match) humans(seats ...int) []int {
	var out []int
	for _, s := range seats {
		if m.agents[s-1].Human() {
			out = append(out, s)
		}
	}
	return out
}

// CommandLegal reports whether cmd from seat matches the outstanding
// prompt. Illegal action commands still queue (the engine substitutes),
// but the Command response carries R=1.
func (m *Match) CommandLegal(seat int, cmd protocol.Command) bool {
	switch cmd.Kind {
	case protocol.KindSelect, protocol.KindAnswer, protocol.KindTip:
	default:
		return true
	}

	snap := m.state.Snapshot()
	h := snap.Hint
	if h == nil || !promptedSeat(snap, seat) {
		return false
	}
	switch cmd.Kind {
	case protocol.KindSelect:
		return h.Kind == triviador.HintSelect && snap.Available.Has(triviador.Country(cmd.Area))
	case protocol.KindAnswer:
		return h.Kind == triviador.HintAnswer && cmd.Answer >= 1 && cmd.Answer <= 4
	case protocol.KindTip:
		return h.Kind == triviador.HintTip && cmd.Tip >= 0 && (h.TipMax == 0 || cmd.Tip <= h.TipMax)
	}
	return false
}

// promptedSeat reports whether seat is among those the current prompt
// addresses: the acting seat for selects, acting plus attacked for battle
// questions and tips, every surviving seat for fill tips.
func promptedSeat(snap *triviador.State, seat int) bool {
	if snap.Hint == nil || seat < 1 || seat > 3 {
		return false
	}
	switch snap.Hint.Kind {
	case triviador.HintSelect:
		return seat == snap.Round.Acting
	case triviador.HintAnswer:
		if snap.Phase.State == triviador.StateBattle {
			return seat == snap.Round.Acting || seat == snap.Round.Attacked
		}
		return seat == snap.Round.Acting
	case triviador.HintTip:
		if snap.Phase.State == triviador.StateBattle {
			return seat == snap.Round.Acting || seat == snap.Round.Attacked
		}
		return snap.Bases[seat-1].Towers < 3
	}
	return false
}

func containsSeat(seats []int, seat int) bool {
	for _, s := range seats {
		if s == seat {
			return true
		}
	}
	return false
}
