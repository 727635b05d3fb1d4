package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tgaller/triviador-server/pkg/triviador"
)

// Battle mini-phase steps past the shared announce/ask/commit sequence.
const (
	battleTipStep       = 11
	battleTipResultStep = 13
	battleUpdateStep    = 21
)

func phaseAt(state, round, step int) triviador.Phase {
	return triviador.Phase{State: state, Round: round, Step: step}
}

// setupPhase shows the freshly created match and waits for every seat to
// arrive before play begins.
func (m *Match) setupPhase(ctx context.Context) error {
	return m.step(ctx, nil)
}

// basePhase lets each seat in order pick its starting citadel.
func (m *Match) basePhase(ctx context.Context) error {
	m.state.Announce(phaseAt(triviador.StateBase, 0, 0), triviador.AllCountries())
	if err := m.step(ctx, nil); err != nil {
		return err
	}

	for seat := 1; seat <= 3; seat++ {
		pool := m.state.UnownedBitmap()
		hint := m.hint(triviador.HintSelect, pool, 0, seat)
		if err := m.state.BeginPrompt(
			phaseAt(triviador.StateBase, 0, 1),
			triviador.RoundInfo{Mini: seat, Acting: seat},
			pool, hint,
		); err != nil {
			return err
		}
		if err := m.step(ctx, nil, m.humans(seat)...); err != nil {
			return err
		}

		c, err := m.collectSelect(ctx, seat, pool)
		if err != nil {
			return err
		}
		if err := m.state.ApplyBaseSelection(seat, c); err != nil {
			return err
		}
		log.Debug().Str("matchId", m.id).Int("seat", seat).Int("country", int(c)).Msg("Base placed")

		m.state.Commit(phaseAt(triviador.StateBase, 0, 3))
		if err := m.step(ctx, nil); err != nil {
			return err
		}
	}
	return nil
}

// conquestPhase runs the expansion rounds: each acting seat claims a
// neighbouring country and has to answer for it.
func (m *Match) conquestPhase(ctx context.Context) error {
	order := triviador.NewWarOrder(conquestRounds, m.dice)
	if err := m.state.SetWarOrder(order); err != nil {
		return err
	}

	for r := 1; r <= conquestRounds; r++ {
		m.state.Announce(phaseAt(triviador.StateAreaConquest, r, 0), m.state.UnownedBitmap())
		if err := m.step(ctx, nil); err != nil {
			return err
		}
		mini := 0
		for _, seat := range triviador.WarOrderBlock(order, r) {
			mini++
			if err := m.conquestTurn(ctx, r, mini, seat); err != nil {
				return err
			}
		}
		m.state.ClearSelection()
	}
	return nil
}

func (m *Match) conquestTurn(ctx context.Context, r, mini, seat int) error {
	pool := m.expansionPool(seat)
	ri := triviador.RoundInfo{Mini: mini, Acting: seat}
	hint := m.hint(triviador.HintSelect, pool, 0, seat)
	if err := m.state.BeginPrompt(phaseAt(triviador.StateAreaConquest, r, 1), ri, pool, hint); err != nil {
		return err
	}
	if err := m.step(ctx, nil, m.humans(seat)...); err != nil {
		return err
	}

	c, err := m.collectSelect(ctx, seat, pool)
	if err != nil {
		return err
	}
	if err := m.state.RecordSelection(seat, c); err != nil {
		return err
	}
	m.state.Commit(phaseAt(triviador.StateAreaConquest, r, 3))
	if err := m.step(ctx, nil); err != nil {
		return err
	}

	correct, err := m.questionRound(ctx, phaseAt(triviador.StateAreaConquest, r, 4), []int{seat})
	if err != nil {
		return err
	}
	if correct[seat] {
		if err := m.state.ApplyOccupation(seat, c); err != nil {
			return err
		}
	} else {
		m.state.ReturnSelection(seat)
	}
	return m.step(ctx, nil)
}

// expansionPool is the set an acting seat may take: unowned neighbours of
// its territory, or any unowned country when none borders it.
func (m *Match) expansionPool(seat int) triviador.Bitmap {
	unowned := m.state.UnownedBitmap()
	var pool triviador.Bitmap
	for _, c := range m.gameMap.NeighboursOfAny(m.state.OwnedCountries(seat)) {
		if unowned.Has(c) {
			pool = pool.Set(c)
		}
	}
	if pool.Empty() {
		pool = unowned
	}
	return pool
}

// fillPhase assigns the countries still unowned after the conquest rounds
// through tip contests: the winner of each contest picks one.
func (m *Match) fillPhase(ctx context.Context) error {
	for !m.state.UnownedBitmap().Empty() {
		r := m.state.AdvanceFillRound()
		m.state.Announce(phaseAt(triviador.StateFillRemaining, r, 0), m.state.UnownedBitmap())
		if err := m.step(ctx, nil); err != nil {
			return err
		}

		out, err := m.tipRound(ctx,
			phaseAt(triviador.StateFillRemaining, r, 1),
			phaseAt(triviador.StateFillRemaining, r, 3),
			m.state.AliveSeats())
		if err != nil {
			return err
		}
		winner := out.Winner

		pool := m.state.UnownedBitmap()
		hint := m.hint(triviador.HintSelect, pool, 0, winner)
		ri := triviador.RoundInfo{Mini: 1, Acting: winner}
		if err := m.state.BeginPrompt(phaseAt(triviador.StateFillRemaining, r, 4), ri, pool, hint); err != nil {
			return err
		}
		if err := m.step(ctx, nil, m.humans(winner)...); err != nil {
			return err
		}

		c, err := m.collectSelect(ctx, winner, pool)
		if err != nil {
			return err
		}
		if err := m.state.ApplyOccupation(winner, c); err != nil {
			return err
		}
		m.state.Commit(phaseAt(triviador.StateFillRemaining, r, 6))
		if err := m.step(ctx, nil); err != nil {
			return err
		}
		m.state.ClearSelection()
	}
	return nil
}

// battlePhase runs the attack rounds until they are spent or fewer than
// two seats survive.
func (m *Match) battlePhase(ctx context.Context) error {
	order := triviador.NewWarOrder(battleRounds, m.dice)
	if err := m.state.SetWarOrder(order); err != nil {
		return err
	}

	for r := 1; r <= battleRounds; r++ {
		if len(m.state.AliveSeats()) < 2 {
			break
		}
		m.state.Announce(phaseAt(triviador.StateBattle, r, 0), 0)
		if err := m.step(ctx, nil); err != nil {
			return err
		}
		mini := 0
		for _, seat := range triviador.WarOrderBlock(order, r) {
			if len(m.state.AliveSeats()) < 2 {
				break
			}
			if m.state.Eliminated(seat) {
				continue
			}
			mini++
			if err := m.battleTurn(ctx, r, mini, seat); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Match) battleTurn(ctx context.Context, r, mini, att int) error {
	pool := m.attackPool(att)
	if pool.Empty() {
		return nil
	}
	ri := triviador.RoundInfo{Mini: mini, Acting: att}
	hint := m.hint(triviador.HintSelect, pool, 0, att)
	if err := m.state.BeginPrompt(phaseAt(triviador.StateBattle, r, 1), ri, pool, hint); err != nil {
		return err
	}
	if err := m.step(ctx, nil, m.humans(att)...); err != nil {
		return err
	}

	target, err := m.collectSelect(ctx, att, pool)
	if err != nil {
		return err
	}
	def := m.state.Owner(target)
	if def == 0 || def == att {
		return fmt.Errorf("%w: attack target %d owned by seat %d", triviador.ErrInternal, target, def)
	}
	if err := m.state.CommitAttack(phaseAt(triviador.StateBattle, r, 3), def); err != nil {
		return err
	}
	if err := m.step(ctx, nil); err != nil {
		return err
	}

	correct, err := m.questionRound(ctx, phaseAt(triviador.StateBattle, r, 4), []int{att, def})
	if err != nil {
		return err
	}

	captured := false
	switch {
	case correct[att] && !correct[def]:
		captured = true
	case correct[att] && correct[def]:
		out, terr := m.tipRound(ctx,
			phaseAt(triviador.StateBattle, r, battleTipStep),
			phaseAt(triviador.StateBattle, r, battleTipResultStep),
			[]int{att, def})
		if terr != nil {
			return terr
		}
		// The attacker takes the country only by winning the duel with an
		// actual tip; a double miss defends.
		captured = out.Winner == att && out.Tipped[att]
	}
	if captured {
		if err := m.resolveCapture(att, def, target); err != nil {
			return err
		}
	}

	m.state.Commit(phaseAt(triviador.StateBattle, r, battleUpdateStep))
	return m.step(ctx, nil)
}

// resolveCapture applies a won attack: a base country costs the defender
// a tower (the third eliminates them), anything else changes owner.
func (m *Match) resolveCapture(att, def int, c triviador.Country) error {
	snap := m.state.Snapshot()
	if snap.Bases[def-1].Country == c {
		towers, eliminated, err := m.state.ApplyTowerHit(att, def)
		if err != nil {
			return err
		}
		if eliminated {
			log.Info().Str("matchId", m.id).Int("seat", def).Msg("Seat eliminated")
		} else {
			log.Debug().Str("matchId", m.id).Int("seat", def).Int("towers", towers).Msg("Tower destroyed")
		}
		return nil
	}
	return m.state.ApplyCapture(att, def, c)
}

// attackPool is the set an attacker may strike: enemy countries bordering
// its territory, or the whole enemy holding when none does.
func (m *Match) attackPool(seat int) triviador.Bitmap {
	var enemies triviador.Bitmap
	for c := triviador.Country(1); c <= triviador.CountryCount; c++ {
		if owner := m.state.Owner(c); owner != 0 && owner != seat {
			enemies = enemies.Set(c)
		}
	}
	var pool triviador.Bitmap
	for _, c := range m.gameMap.NeighboursOfAny(m.state.OwnedCountries(seat)) {
		if enemies.Has(c) {
			pool = pool.Set(c)
		}
	}
	if pool.Empty() {
		pool = enemies
	}
	return pool
}
