package question

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tgaller/triviador-server/internal/metrics"
	"github.com/tgaller/triviador-server/internal/model"
	"github.com/tgaller/triviador-server/internal/repository"
)

// prefetchSize is how many questions one repository round-trip buffers into
// the cache.
const prefetchSize = 20

// Service serves questions from the Postgres bank through a Redis
// read-ahead buffer, falling back to the built-in bank when both are
// unavailable. A match never stalls on its question source.
type Service struct {
	repo     repository.QuestionRepository
	cache    repository.QuestionCache
	fallback *Bank
}

// NewService returns a provider over the given repository. cache may be
// nil; the fallback bank is always present.
func NewService(repo repository.QuestionRepository, cache repository.QuestionCache) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		fallback: DefaultBank(),
	}
}

// Next returns the next question: cache first, then the repository
// (refilling the cache), then the built-in fallback.
func (s *Service) Next(ctx context.Context) (*model.Question, error) {
	if s.cache != nil {
		q, err := s.cache.PopQuestion(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("question cache read failed")
		} else if q != nil {
			metrics.QuestionsServed.WithLabelValues("cache").Inc()
			return q, nil
		}
	}

	qs, err := s.repo.RandomQuestions(ctx, prefetchSize)
	if err != nil || len(qs) == 0 {
		log.Warn().Err(err).Msg("question bank unavailable, using built-in set")
		metrics.QuestionsServed.WithLabelValues("fallback").Inc()
		return s.fallback.Next(ctx)
	}

	if s.cache != nil && len(qs) > 1 {
		if err := s.cache.PushQuestions(ctx, qs[1:]); err != nil {
			log.Warn().Err(err).Msg("question cache refill failed")
		}
	}
	metrics.QuestionsServed.WithLabelValues("db").Inc()
	q := qs[0]
	return &q, nil
}

// NextTip returns the next tip question from the repository, falling back
// to the built-in set.
func (s *Service) NextTip(ctx context.Context) (*model.TipQuestion, error) {
	t, err := s.repo.RandomTipQuestion(ctx)
	if err != nil || t == nil {
		log.Warn().Err(err).Msg("tip bank unavailable, using built-in set")
		metrics.QuestionsServed.WithLabelValues("fallback").Inc()
		return s.fallback.NextTip(ctx)
	}
	metrics.QuestionsServed.WithLabelValues("db").Inc()
	return t, nil
}
