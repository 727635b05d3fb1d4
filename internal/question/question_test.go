package question

import (
	"context"
	"errors"
	"testing"

	"github.com/tgaller/triviador-server/internal/model"
)

func TestBankRotation(t *testing.T) {
	b := NewBank(
		[]model.Question{{ID: 1, Correct: 1}, {ID: 2, Correct: 2}},
		[]model.TipQuestion{{ID: 7, Answer: 42}},
	)
	ctx := context.Background()

	q1, err := b.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	q2, _ := b.Next(ctx)
	q3, _ := b.Next(ctx)
	if q1.ID != 1 || q2.ID != 2 || q3.ID != 1 {
		t.Errorf("rotation = %d,%d,%d", q1.ID, q2.ID, q3.ID)
	}

	tip, err := b.NextTip(ctx)
	if err != nil || tip.Answer != 42 {
		t.Errorf("NextTip = %+v, %v", tip, err)
	}
}

func TestEmptyBank(t *testing.T) {
	b := NewBank(nil, nil)
	if _, err := b.Next(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Errorf("empty bank: err = %v", err)
	}
	if _, err := b.NextTip(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Errorf("empty bank tips: err = %v", err)
	}
}

func TestDefaultBankIsPlayable(t *testing.T) {
	b := DefaultBank()
	ctx := context.Background()
	for i := 0; i < 40; i++ {
		q, err := b.Next(ctx)
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		if q.Correct < 1 || q.Correct > 4 {
			t.Errorf("question %d correct index %d", q.ID, q.Correct)
		}
		for j, opt := range q.Options {
			if opt == "" {
				t.Errorf("question %d option %d empty", q.ID, j+1)
			}
		}
	}
	for i := 0; i < 10; i++ {
		tip, err := b.NextTip(ctx)
		if err != nil {
			t.Fatalf("NextTip #%d: %v", i, err)
		}
		if tip.Max <= 0 || tip.Answer > tip.Max {
			t.Errorf("tip %d answer %d outside max %d", tip.ID, tip.Answer, tip.Max)
		}
	}
}

type stubRepo struct {
	qs   []model.Question
	tips []model.TipQuestion
	err  error
}

func (r *stubRepo) RandomQuestion(ctx context.Context) (*model.Question, error) {
	if r.err != nil || len(r.qs) == 0 {
		return nil, r.err
	}
	q := r.qs[0]
	return &q, nil
}

func (r *stubRepo) RandomQuestions(ctx context.Context, n int) ([]model.Question, error) {
	if r.err != nil {
		return nil, r.err
	}
	if n > len(r.qs) {
		n = len(r.qs)
	}
	return r.qs[:n], nil
}

func (r *stubRepo) RandomTipQuestion(ctx context.Context) (*model.TipQuestion, error) {
	if r.err != nil || len(r.tips) == 0 {
		return nil, r.err
	}
	tip := r.tips[0]
	return &tip, nil
}

func (r *stubRepo) CountQuestions(ctx context.Context) (int64, error) {
	return int64(len(r.qs)), r.err
}

type stubCache struct {
	buf []model.Question
}

func (c *stubCache) PopQuestion(ctx context.Context) (*model.Question, error) {
	if len(c.buf) == 0 {
		return nil, nil
	}
	q := c.buf[0]
	c.buf = c.buf[1:]
	return &q, nil
}

func (c *stubCache) PushQuestions(ctx context.Context, qs []model.Question) error {
	c.buf = append(c.buf, qs...)
	return nil
}

func (c *stubCache) QuestionBacklog(ctx context.Context) (int64, error) {
	return int64(len(c.buf)), nil
}

func TestServicePrefersCache(t *testing.T) {
	cache := &stubCache{buf: []model.Question{{ID: 99, Correct: 1}}}
	svc := NewService(&stubRepo{qs: []model.Question{{ID: 1, Correct: 1}}}, cache)

	q, err := svc.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if q.ID != 99 {
		t.Errorf("got ID %d, want cached 99", q.ID)
	}
}

func TestServiceRefillsCacheFromRepo(t *testing.T) {
	repo := &stubRepo{qs: []model.Question{{ID: 1, Correct: 1}, {ID: 2, Correct: 2}, {ID: 3, Correct: 3}}}
	cache := &stubCache{}
	svc := NewService(repo, cache)

	q, err := svc.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if q.ID != 1 {
		t.Errorf("got ID %d, want 1", q.ID)
	}
	if n, _ := cache.QuestionBacklog(context.Background()); n != 2 {
		t.Errorf("cache backlog = %d, want 2", n)
	}
}

func TestServiceFallsBackToBank(t *testing.T) {
	svc := NewService(&stubRepo{err: errors.New("db down")}, nil)

	q, err := svc.Next(context.Background())
	if err != nil {
		t.Fatalf("Next with dead repo: %v", err)
	}
	if q == nil || q.Correct < 1 || q.Correct > 4 {
		t.Errorf("fallback question = %+v", q)
	}

	tip, err := svc.NextTip(context.Background())
	if err != nil || tip == nil {
		t.Errorf("fallback tip = %+v, %v", tip, err)
	}
}
