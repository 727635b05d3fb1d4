package triviador

// Scoring is the point schedule applied by the state mutators. The legacy
// servers disagree on the consolation values, so they are parameters rather
// than constants.
type Scoring struct {
	Base       int `toml:"base" json:"base"`
	Occupation int `toml:"occupation" json:"occupation"`
	Capture    int `toml:"capture" json:"capture"`
	TowerHit   int `toml:"tower_hit" json:"tower_hit"`
}

// DefaultScoring returns the schedule the reference deployment uses.
func DefaultScoring() Scoring {
	return Scoring{
		Base:       1000,
		Occupation: 200,
		Capture:    200,
		TowerHit:   300,
	}
}
