//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/tgaller/triviador-server/internal/model"
	"github.com/tgaller/triviador-server/internal/testutil"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	m.Run()
}

func setup(t *testing.T) {
	t.Helper()
	if testDB == nil {
		testDB = testutil.SetupDB(t)
	}
	testutil.CleanupDB(t, testDB)
}

// seedQuestions inserts n questions and one tip question.
func seedQuestions(t *testing.T, repo *QuestionRepo, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		q := &model.Question{
			Text:     fmt.Sprintf("Question %d?", i),
			Options:  [4]string{"a", "b", "c", "d"},
			Correct:  1 + i%4,
			Category: "history",
		}
		if _, err := repo.InsertQuestion(ctx, q); err != nil {
			t.Fatalf("insert question %d: %v", i, err)
		}
	}
	tip := &model.TipQuestion{Text: "How many?", Answer: 42, Max: 100, Category: "numbers"}
	if _, err := repo.InsertTipQuestion(ctx, tip); err != nil {
		t.Fatalf("insert tip question: %v", err)
	}
}

func TestQuestionRandomDraw(t *testing.T) {
	setup(t)
	repo := NewQuestionRepo(testDB)
	seedQuestions(t, repo, 5)

	q, err := repo.RandomQuestion(context.Background())
	if err != nil {
		t.Fatalf("random question: %v", err)
	}
	if q == nil {
		t.Fatal("expected a question from a seeded bank")
	}
	if q.Correct < 1 || q.Correct > 4 {
		t.Fatalf("correct index %d out of range", q.Correct)
	}

	count, err := repo.CountQuestions(context.Background())
	if err != nil {
		t.Fatalf("count questions: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 questions, got %d", count)
	}
}

func TestQuestionEmptyBankReturnsNil(t *testing.T) {
	setup(t)
	repo := NewQuestionRepo(testDB)

	q, err := repo.RandomQuestion(context.Background())
	if err != nil {
		t.Fatalf("random question on empty bank: %v", err)
	}
	if q != nil {
		t.Fatalf("expected nil question, got %+v", q)
	}

	tip, err := repo.RandomTipQuestion(context.Background())
	if err != nil {
		t.Fatalf("random tip on empty bank: %v", err)
	}
	if tip != nil {
		t.Fatalf("expected nil tip question, got %+v", tip)
	}
}

func TestQuestionRandomBatch(t *testing.T) {
	setup(t)
	repo := NewQuestionRepo(testDB)
	seedQuestions(t, repo, 10)

	qs, err := repo.RandomQuestions(context.Background(), 7)
	if err != nil {
		t.Fatalf("random questions: %v", err)
	}
	if len(qs) != 7 {
		t.Fatalf("expected 7 questions, got %d", len(qs))
	}

	// Asking past the bank size returns the whole bank.
	all, err := repo.RandomQuestions(context.Background(), 50)
	if err != nil {
		t.Fatalf("random questions over bank size: %v", err)
	}
	if len(all) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(all))
	}
}

func TestQuestionRandomTip(t *testing.T) {
	setup(t)
	repo := NewQuestionRepo(testDB)
	seedQuestions(t, repo, 1)

	tip, err := repo.RandomTipQuestion(context.Background())
	if err != nil {
		t.Fatalf("random tip question: %v", err)
	}
	if tip == nil || tip.Answer != 42 || tip.Max != 100 {
		t.Fatalf("unexpected tip question: %+v", tip)
	}
}

func testRecord(id string, finished time.Time) *model.MatchRecord {
	rec := &model.MatchRecord{
		ID:         id,
		MapName:    "HU",
		RoomType:   model.RoomTypeRanked,
		Result:     model.MatchResultFinished,
		Winner:     2,
		StartedAt:  finished.Add(-10 * time.Minute),
		FinishedAt: finished,
	}
	for i := 0; i < 3; i++ {
		rec.Seats[i] = model.SeatResult{
			Seat:  i + 1,
			Name:  fmt.Sprintf("player-%d", i+1),
			Kind:  model.SeatKindHuman,
			Score: 1000 * (i + 1),
			Place: 3 - i,
		}
	}
	return rec
}

func TestMatchSaveAndFind(t *testing.T) {
	setup(t)
	repo := NewMatchRepo(testDB)

	rec := testRecord("match-1", time.Now())
	if err := repo.SaveMatch(context.Background(), rec); err != nil {
		t.Fatalf("save match: %v", err)
	}

	found, err := repo.FindMatch(context.Background(), "match-1")
	if err != nil {
		t.Fatalf("find match: %v", err)
	}
	if found == nil {
		t.Fatal("expected to find archived match")
	}
	if found.Winner != 2 || found.Result != model.MatchResultFinished {
		t.Fatalf("unexpected match: %+v", found)
	}
	for i := 0; i < 3; i++ {
		if found.Seats[i].Seat != i+1 {
			t.Fatalf("seat %d out of order: %+v", i+1, found.Seats[i])
		}
		if found.Seats[i].Score != rec.Seats[i].Score {
			t.Fatalf("seat %d score = %d, want %d", i+1, found.Seats[i].Score, rec.Seats[i].Score)
		}
	}

	missing, err := repo.FindMatch(context.Background(), "no-such-match")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for a missing match")
	}
}

func TestMatchRecentOrdering(t *testing.T) {
	setup(t)
	repo := NewMatchRepo(testDB)

	base := time.Now()
	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("match-%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := repo.SaveMatch(context.Background(), rec); err != nil {
			t.Fatalf("save match %d: %v", i, err)
		}
	}

	recent, err := repo.RecentMatches(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent matches: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(recent))
	}
	if recent[0].ID != "match-2" || recent[1].ID != "match-1" {
		t.Fatalf("ordering wrong: %s, %s", recent[0].ID, recent[1].ID)
	}
}

func TestMatchSaveDuplicateFails(t *testing.T) {
	setup(t)
	repo := NewMatchRepo(testDB)

	rec := testRecord("match-dup", time.Now())
	if err := repo.SaveMatch(context.Background(), rec); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := repo.SaveMatch(context.Background(), rec); err == nil {
		t.Fatal("expected duplicate save to fail on the primary key")
	}

	// The failed transaction must not leave partial seat rows behind.
	found, err := repo.FindMatch(context.Background(), "match-dup")
	if err != nil {
		t.Fatalf("find after duplicate: %v", err)
	}
	if found == nil || found.Seats[0].Name != "player-1" {
		t.Fatalf("original record damaged: %+v", found)
	}
}
