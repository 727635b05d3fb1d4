package triviador

import (
	"math/rand"
	"sync"
	"time"
)

// Dice is the randomness source used for war orders, bot sampling and
// prompt substitution. Tests inject scripted implementations; production
// uses NewDice.
type Dice interface {
	// Intn returns a uniform value in [0, n). n must be > 0.
	Intn(n int) int
}

type lockedDice struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (d *lockedDice) Intn(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.r.Intn(n)
}

// NewDice returns a concurrency-safe Dice seeded with the given seed, or
// with the current time when seed is 0.
func NewDice(seed int64) Dice {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedDice{r: rand.New(rand.NewSource(seed))}
}

// Pick returns a uniformly chosen element of list using d. It panics on an
// empty list; callers guarantee at least one candidate.
func Pick(d Dice, list []Country) Country {
	return list[d.Intn(len(list))]
}
