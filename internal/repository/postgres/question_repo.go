package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tgaller/triviador-server/internal/model"
)

// QuestionRepo serves the question bank tables.
type QuestionRepo struct {
	db *sql.DB
}

// NewQuestionRepo creates a QuestionRepo.
func NewQuestionRepo(db *sql.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// RandomQuestion returns one uniformly drawn question, or nil when the bank
// is empty.
func (r *QuestionRepo) RandomQuestion(ctx context.Context) (*model.Question, error) {
	var q model.Question
	err := r.db.QueryRowContext(ctx,
		`SELECT id, text, option1, option2, option3, option4, correct, category
		 FROM questions ORDER BY random() LIMIT 1`,
	).Scan(&q.ID, &q.Text, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &q.Correct, &q.Category)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("random question: %w", err)
	}
	return &q, nil
}

// RandomQuestions returns up to n uniformly drawn questions.
func (r *QuestionRepo) RandomQuestions(ctx context.Context, n int) ([]model.Question, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, text, option1, option2, option3, option4, correct, category
		 FROM questions ORDER BY random() LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("random questions: %w", err)
	}
	defer rows.Close()

	var qs []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &q.Correct, &q.Category); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// RandomTipQuestion returns one uniformly drawn tip question, or nil when
// the bank is empty.
func (r *QuestionRepo) RandomTipQuestion(ctx context.Context) (*model.TipQuestion, error) {
	var q model.TipQuestion
	err := r.db.QueryRowContext(ctx,
		`SELECT id, text, answer, max_value, category
		 FROM tip_questions ORDER BY random() LIMIT 1`,
	).Scan(&q.ID, &q.Text, &q.Answer, &q.Max, &q.Category)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("random tip question: %w", err)
	}
	return &q, nil
}

// CountQuestions returns the size of the multi-choice bank.
func (r *QuestionRepo) CountQuestions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

// InsertQuestion adds one question to the bank and returns its id.
func (r *QuestionRepo) InsertQuestion(ctx context.Context, q *model.Question) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO questions (text, option1, option2, option3, option4, correct, category)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		q.Text, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.Correct, q.Category,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return id, nil
}

// InsertTipQuestion adds one tip question to the bank and returns its id.
func (r *QuestionRepo) InsertTipQuestion(ctx context.Context, q *model.TipQuestion) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tip_questions (text, answer, max_value, category)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		q.Text, q.Answer, q.Max, q.Category,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert tip question: %w", err)
	}
	return id, nil
}
