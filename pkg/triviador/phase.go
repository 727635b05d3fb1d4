package triviador

import (
	"fmt"
	"strconv"
	"strings"
)

// Top-level phase values of the phase triple.
const (
	StateBase          = 1
	StateAreaConquest  = 2
	StateFillRemaining = 3
	StateBattle        = 4
	StateEnd           = 5
	StateSetup         = 11
)

// Phase is the coupled (state, round, step) counter mirrored in every state
// document. It moves as one value; handlers never bump its components in
// place on the wire path.
type Phase struct {
	State int
	Round int
	Step  int
}

// String renders the triple as decimal "state,round,step".
func (p Phase) String() string {
	return fmt.Sprintf("%d,%d,%d", p.State, p.Round, p.Step)
}

// ParsePhase decodes a phase triple rendered by String.
func ParsePhase(s string) (Phase, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Phase{}, fmt.Errorf("%w: phase %q", ErrBadEncoding, s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Phase{}, fmt.Errorf("%w: phase %q", ErrBadEncoding, s)
		}
		vals[i] = v
	}
	return Phase{State: vals[0], Round: vals[1], Step: vals[2]}, nil
}

// Before reports whether p precedes q in lexicographic order.
func (p Phase) Before(q Phase) bool {
	if p.State != q.State {
		return p.State < q.State
	}
	if p.Round != q.Round {
		return p.Round < q.Round
	}
	return p.Step < q.Step
}
