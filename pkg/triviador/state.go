package triviador

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrInvalidMove is returned when a transition would violate a state
	// invariant; the state is left unchanged.
	ErrInvalidMove = errors.New("triviador: invalid move")

	// ErrInternal is returned when the state itself has been corrupted.
	ErrInternal = errors.New("triviador: internal state error")
)

// HintKind names what the command hint asks the client to do.
type HintKind uint8

const (
	HintNone HintKind = iota
	HintSelect
	HintAnswer
	HintTip
)

func (k HintKind) String() string {
	switch k {
	case HintSelect:
		return "SELECT"
	case HintAnswer:
		return "ANSWER"
	case HintTip:
		return "TIP"
	default:
		return ""
	}
}

// CmdHint tells the prompted client what reply is expected and how long it
// has to produce it.
type CmdHint struct {
	Kind      HintKind
	Available Bitmap
	Timeout   time.Duration
	TipMax    int
}

// RoundInfo tracks the acting-seat step within the current phase.
type RoundInfo struct {
	Mini     int
	Acting   int
	Attacked int
}

// State is the authoritative in-memory document of one match. All reads and
// writes go through its methods; mutators hold the write lock, Snapshot
// clones under the read lock so serialisation never blocks the engine.
type State struct {
	mu sync.RWMutex

	MapName       string
	Phase         Phase
	Scores        [3]int
	Bases         [3]Base
	Areas         [CountryCount + 1]Area
	Selection     [3]Country
	Available     Bitmap
	Round         RoundInfo
	WarOrder      []int
	ActiveSeat    int
	Hint          *CmdHint
	Connected     [3]bool
	ChatOpen      [3]bool
	UsedHelps     [3]int
	FillRound     int
	RoomType      int
	ShieldMission int

	scoring Scoring
}

// NewState returns a fresh match state in the Setup phase.
func NewState(m *Map, scoring Scoring, roomType int) *State {
	return &State{
		MapName:  m.Name,
		Phase:    Phase{State: StateSetup},
		RoomType: roomType,
		scoring:  scoring,
	}
}

// Snapshot returns a deep copy of the state for serialisation. The copy is
// not guarded; it must not be mutated.
func (s *State) Snapshot() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &State{
		MapName:       s.MapName,
		Phase:         s.Phase,
		Scores:        s.Scores,
		Bases:         s.Bases,
		Areas:         s.Areas,
		Selection:     s.Selection,
		Available:     s.Available,
		Round:         s.Round,
		ActiveSeat:    s.ActiveSeat,
		Connected:     s.Connected,
		ChatOpen:      s.ChatOpen,
		UsedHelps:     s.UsedHelps,
		FillRound:     s.FillRound,
		RoomType:      s.RoomType,
		ShieldMission: s.ShieldMission,
		scoring:       s.scoring,
	}
	c.WarOrder = append([]int(nil), s.WarOrder...)
	if s.Hint != nil {
		h := *s.Hint
		c.Hint = &h
	}
	return c
}

// EnterPhase moves to a new top-level phase: the triple is replaced, the
// prompt context cleared and the round counters reset.
func (s *State) EnterPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Phase = p
	s.Round = RoundInfo{}
	s.clearPromptLocked()
}

// Announce replaces the phase triple for a round or step announcement
// within the current top-level phase. Any prompt context and round info is
// cleared; avail is the pool the announcement shows (0 for none).
func (s *State) Announce(p Phase, avail Bitmap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Phase = p
	s.Round = RoundInfo{}
	s.clearPromptLocked()
	s.Available = avail
}

// BeginPrompt installs a prompt atomically: phase triple, round info,
// prompted seat, available set and (for human seats) the command hint.
func (s *State) BeginPrompt(p Phase, ri RoundInfo, avail Bitmap, hint *CmdHint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ri.Acting < 0 || ri.Acting > 3 {
		return fmt.Errorf("%w: acting seat %d", ErrInvalidMove, ri.Acting)
	}
	s.Phase = p
	s.Round = ri
	s.ActiveSeat = ri.Acting
	s.Available = avail
	if hint != nil {
		h := *hint
		s.Hint = &h
	} else {
		s.Hint = nil
	}
	return nil
}

// Commit closes the current prompt: the triple advances and the hint is
// withdrawn. The available set and selection stay visible for the commit
// frame.
func (s *State) Commit(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Phase = p
	s.Hint = nil
	s.ActiveSeat = 0
}

// CommitAttack is Commit plus the resolved attack target in the round info.
func (s *State) CommitAttack(p Phase, attacked int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attacked < 1 || attacked > 3 {
		return fmt.Errorf("%w: attacked seat %d", ErrInvalidMove, attacked)
	}
	s.Phase = p
	s.Hint = nil
	s.ActiveSeat = 0
	s.Round.Attacked = attacked
	return nil
}

// RecordSelection stores seat's choice for this mini-phase and withdraws the
// country from the available set.
func (s *State) RecordSelection(seat int, c Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSeatLocked(seat); err != nil {
		return err
	}
	if !s.Available.Has(c) {
		return fmt.Errorf("%w: country %d not selectable", ErrInvalidMove, c)
	}
	s.Selection[seat-1] = c
	s.Available = s.Available.Clear(c)
	return nil
}

// ClearSelection empties the per-seat selection map.
func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Selection = [3]Country{}
}

// ApplyBaseSelection establishes seat's starting citadel at c: the base is
// recorded, the area becomes owned at the base tier, the country leaves the
// available pool and the base points are granted.
func (s *State) ApplyBaseSelection(seat int, c Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSeatLocked(seat); err != nil {
		return err
	}
	if c < 1 || c > CountryCount {
		return fmt.Errorf("%w: country %d", ErrInvalidMove, c)
	}
	if s.Bases[seat-1].Country != 0 {
		return fmt.Errorf("%w: seat %d already has a base", ErrInvalidMove, seat)
	}
	if s.Areas[c].Occupied() {
		return fmt.Errorf("%w: country %d already owned", ErrInvalidMove, c)
	}
	s.Bases[seat-1] = Base{Country: c}
	s.Areas[c] = Area{Owner: seat, Tier: TierBase}
	s.Scores[seat-1] += s.scoring.Base
	s.Available = s.Available.Clear(c)
	s.Selection[seat-1] = 0
	return nil
}

// ApplyOccupation gives an unowned country to seat at tier T200 with the
// occupation points, resolving any pending selection of that seat.
func (s *State) ApplyOccupation(seat int, c Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSeatLocked(seat); err != nil {
		return err
	}
	if c < 1 || c > CountryCount {
		return fmt.Errorf("%w: country %d", ErrInvalidMove, c)
	}
	if s.Areas[c].Occupied() {
		return fmt.Errorf("%w: country %d already owned", ErrInvalidMove, c)
	}
	s.Areas[c] = Area{Owner: seat, Tier: TierT200}
	s.Scores[seat-1] += s.scoring.Occupation
	s.Available = s.Available.Clear(c)
	s.Selection[seat-1] = 0
	return nil
}

// ReturnSelection resolves a lost contest: the seat's pending selection is
// dropped and the country rejoins the available pool unowned.
func (s *State) ReturnSelection(seat int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seat < 1 || seat > 3 {
		return
	}
	c := s.Selection[seat-1]
	s.Selection[seat-1] = 0
	if c != 0 && !s.Areas[c].Occupied() {
		s.Available = s.Available.Set(c)
	}
}

// ApplyCapture transfers a non-base country from def to att at tier T200
// with the capture points.
func (s *State) ApplyCapture(att, def int, c Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSeatLocked(att); err != nil {
		return err
	}
	if err := s.checkSeatLocked(def); err != nil {
		return err
	}
	if att == def {
		return fmt.Errorf("%w: seat %d attacking itself", ErrInvalidMove, att)
	}
	if c < 1 || c > CountryCount || s.Areas[c].Owner != def {
		return fmt.Errorf("%w: country %d not owned by seat %d", ErrInvalidMove, c, def)
	}
	if s.Bases[def-1].Country == c {
		return fmt.Errorf("%w: country %d is a base", ErrInvalidMove, c)
	}
	s.Areas[c] = Area{Owner: att, Tier: TierT200}
	s.Scores[att-1] += s.scoring.Capture
	s.Selection[att-1] = 0
	return nil
}

// ApplyTowerHit records a successful attack on def's base: one tower falls
// and att collects the tower points. The third tower eliminates def; all of
// def's areas (base included) become unowned at tier T200.
func (s *State) ApplyTowerHit(att, def int) (towers int, eliminated bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSeatLocked(att); err != nil {
		return 0, false, err
	}
	if err := s.checkSeatLocked(def); err != nil {
		return 0, false, err
	}
	base := s.Bases[def-1]
	if base.Country == 0 {
		return 0, false, fmt.Errorf("%w: seat %d has no base", ErrInvalidMove, def)
	}
	if base.Towers >= 3 {
		return 0, false, fmt.Errorf("%w: seat %d already eliminated", ErrInvalidMove, def)
	}
	s.Bases[def-1].Towers++
	s.Scores[att-1] += s.scoring.TowerHit
	s.Selection[att-1] = 0
	towers = s.Bases[def-1].Towers
	if towers == 3 {
		for c := Country(1); c <= CountryCount; c++ {
			if s.Areas[c].Owner == def {
				s.Areas[c] = Area{Tier: TierT200}
			}
		}
		eliminated = true
	}
	return towers, eliminated, nil
}

// SetWarOrder installs a precomputed acting order. The order must cover
// whole rounds with each block a permutation of the seats.
func (s *State) SetWarOrder(order []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validWarOrder(order) {
		return fmt.Errorf("%w: war order %v", ErrInternal, order)
	}
	s.WarOrder = append([]int(nil), order...)
	return nil
}

// SetConnected flips a seat's liveness flag.
func (s *State) SetConnected(seat int, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seat >= 1 && seat <= 3 {
		s.Connected[seat-1] = connected
	}
}

// SetChatOpen flips a seat's chat flag.
func (s *State) SetChatOpen(seat int, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seat >= 1 && seat <= 3 {
		s.ChatOpen[seat-1] = open
	}
}

// AdvanceFillRound bumps and returns the fill-remaining round counter.
func (s *State) AdvanceFillRound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FillRound++
	return s.FillRound
}

// Owner returns the owning seat of c, 0 when unoccupied or invalid.
func (s *State) Owner(c Country) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c < 1 || c > CountryCount {
		return 0
	}
	return s.Areas[c].Owner
}

// OwnedCountries returns the countries seat owns, ascending.
func (s *State) OwnedCountries(seat int) []Country {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Country
	for c := Country(1); c <= CountryCount; c++ {
		if s.Areas[c].Owner == seat && seat != 0 {
			out = append(out, c)
		}
	}
	return out
}

// UnownedBitmap returns the set of countries without an owner.
func (s *State) UnownedBitmap() Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var b Bitmap
	for c := Country(1); c <= CountryCount; c++ {
		if !s.Areas[c].Occupied() {
			b = b.Set(c)
		}
	}
	return b
}

// Eliminated reports whether seat has lost all three base towers.
func (s *State) Eliminated(seat int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return seat >= 1 && seat <= 3 && s.Bases[seat-1].Towers >= 3
}

// AliveSeats returns the seats still in the match, ascending.
func (s *State) AliveSeats() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int
	for seat := 1; seat <= 3; seat++ {
		if s.Bases[seat-1].Towers < 3 {
			out = append(out, seat)
		}
	}
	return out
}

// Standings returns the seats ordered best first: higher score wins, ties
// go to the lower seat number.
func (s *State) Standings() [3]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order := [3]int{1, 2, 3}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if s.Scores[order[j]-1] > s.Scores[order[i]-1] {
				order[i], order[j] = order[j], order[i]
			}
		}
	}
	return order
}

// Invariants verifies the structural invariants of the document. A non-nil
// result wraps ErrInternal and means the match must be aborted.
func (s *State) Invariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for c := Country(1); c <= CountryCount; c++ {
		a := s.Areas[c]
		if a.Owner < 0 || a.Owner > 3 {
			return fmt.Errorf("%w: country %d owner %d", ErrInternal, c, a.Owner)
		}
		if a.Tier > TierT200 {
			return fmt.Errorf("%w: country %d tier %d", ErrInternal, c, a.Tier)
		}
		if a.Owner != 0 && a.Tier == TierNone {
			return fmt.Errorf("%w: country %d owned without tier", ErrInternal, c)
		}
	}
	for seat := 1; seat <= 3; seat++ {
		b := s.Bases[seat-1]
		if b.Country != 0 && b.Towers < 3 {
			a := s.Areas[b.Country]
			if a.Owner != seat || a.Tier != TierBase {
				return fmt.Errorf("%w: seat %d base at %d not held (owner %d tier %s)",
					ErrInternal, seat, b.Country, a.Owner, a.Tier)
			}
		}
		if sel := s.Selection[seat-1]; sel > CountryCount {
			return fmt.Errorf("%w: seat %d selection %d", ErrInternal, seat, sel)
		}
	}
	if st := s.Phase.State; st == StateBase || st == StateAreaConquest {
		for _, c := range s.Available.Countries() {
			if c > CountryCount {
				return fmt.Errorf("%w: available country %d", ErrInternal, c)
			}
			if s.Areas[c].Occupied() {
				return fmt.Errorf("%w: available country %d is owned", ErrInternal, c)
			}
		}
	}
	if len(s.WarOrder) > 0 && !validWarOrder(s.WarOrder) {
		return fmt.Errorf("%w: war order %v", ErrInternal, s.WarOrder)
	}
	return nil
}

func (s *State) clearPromptLocked() {
	s.Hint = nil
	s.ActiveSeat = 0
	s.Available = 0
	s.Round.Attacked = 0
}

func (s *State) checkSeatLocked(seat int) error {
	if seat < 1 || seat > 3 {
		return fmt.Errorf("%w: seat %d", ErrInvalidMove, seat)
	}
	return nil
}
