package repository

import (
	"context"

	"github.com/tgaller/triviador-server/internal/model"
)

// QuestionRepository defines question-bank storage operations.
type QuestionRepository interface {
	RandomQuestion(ctx context.Context) (*model.Question, error)
	RandomQuestions(ctx context.Context, n int) ([]model.Question, error)
	RandomTipQuestion(ctx context.Context) (*model.TipQuestion, error)
	CountQuestions(ctx context.Context) (int64, error)
}

// QuestionCache defines the read-ahead question buffer (Redis).
type QuestionCache interface {
	PopQuestion(ctx context.Context) (*model.Question, error)
	PushQuestions(ctx context.Context, qs []model.Question) error
	QuestionBacklog(ctx context.Context) (int64, error)
}

// MatchArchive defines finished-match storage operations.
type MatchArchive interface {
	SaveMatch(ctx context.Context, rec *model.MatchRecord) error
	RecentMatches(ctx context.Context, limit int) ([]model.MatchRecord, error)
}

// StateProjection defines the write-through live-match projection (Redis).
// Projection writes are observability only and must never fail a match.
type StateProjection interface {
	SaveSnapshot(ctx context.Context, snap *model.MatchSnapshot) error
	GetSnapshot(ctx context.Context, matchID string) (*model.MatchSnapshot, error)
	RemoveSnapshot(ctx context.Context, matchID string) error
	LiveMatchIDs(ctx context.Context) ([]string, error)
}
