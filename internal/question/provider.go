// Package question supplies the trivia material a match consumes: an
// opaque Provider interface plus the static and database-backed
// implementations behind it.
package question

import (
	"context"
	"errors"
	"sync"

	"github.com/tgaller/triviador-server/internal/model"
)

// ErrExhausted is returned by a provider that has nothing left to serve.
var ErrExhausted = errors.New("question: no questions available")

// Provider yields multi-choice and numeric-tip questions on demand. A
// provider must be safe for concurrent use; matches run in parallel.
type Provider interface {
	Next(ctx context.Context) (*model.Question, error)
	NextTip(ctx context.Context) (*model.TipQuestion, error)
}

// Bank is an in-memory provider cycling through a fixed set. It backs
// development mode, the simulator and tests, and serves as the fallback
// when the database bank is unreachable.
type Bank struct {
	mu     sync.Mutex
	qs     []model.Question
	tips   []model.TipQuestion
	qIdx   int
	tipIdx int
}

// NewBank returns a bank over the given material.
func NewBank(qs []model.Question, tips []model.TipQuestion) *Bank {
	return &Bank{qs: qs, tips: tips}
}

// DefaultBank returns a bank with the built-in question set.
func DefaultBank() *Bank {
	return NewBank(builtinQuestions(), builtinTips())
}

// Next returns the next question in rotation.
func (b *Bank) Next(ctx context.Context) (*model.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.qs) == 0 {
		return nil, ErrExhausted
	}
	q := b.qs[b.qIdx%len(b.qs)]
	b.qIdx++
	return &q, nil
}

// NextTip returns the next tip question in rotation.
func (b *Bank) NextTip(ctx context.Context) (*model.TipQuestion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.tips) == 0 {
		return nil, ErrExhausted
	}
	t := b.tips[b.tipIdx%len(b.tips)]
	b.tipIdx++
	return &t, nil
}
