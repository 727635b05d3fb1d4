// Command import_questions reads question-bank JSONL data and imports it
// into the Postgres database so matches draw from a real bank instead of
// the built-in fallback set.
//
// Usage:
//
//	go run ./cmd/import_questions/ --input questions.jsonl --db postgres://...
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tgaller/triviador-server/internal/model"
	"github.com/tgaller/triviador-server/internal/repository/postgres"
)

// jsonQuestion is the JSON representation of one JSONL line. Lines with
// options are multiple-choice questions; lines with an answer are tip
// questions.
type jsonQuestion struct {
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	Correct  int      `json:"correct"`
	Answer   *int     `json:"answer"` // pointer: 0 is a legal tip answer
	Max      int      `json:"max"`
	Category string   `json:"category"`
}

func main() {
	inputFile := flag.String("input", "", "Path to JSONL file")
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	category := flag.String("category", "general", "Category for records without one")
	flag.Parse()

	if *inputFile == "" {
		log.Fatal("--input is required")
	}
	if *dbURL == "" {
		log.Fatal("--db or DATABASE_URL is required")
	}

	db, err := postgres.Connect(*dbURL)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer db.Close()

	repo := postgres.NewQuestionRepo(db)

	f, err := os.Open(*inputFile)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer f.Close()

	ctx := context.Background()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	questions := 0
	tips := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		q, tip, err := parseLine([]byte(line), *category)
		if err != nil {
			log.Printf("WARN: skip line %d: %v", lineNo, err)
			continue
		}
		if q != nil {
			if _, err := repo.InsertQuestion(ctx, q); err != nil {
				log.Printf("ERROR: insert question (line %d): %v", lineNo, err)
				continue
			}
			questions++
		} else {
			if _, err := repo.InsertTipQuestion(ctx, tip); err != nil {
				log.Printf("ERROR: insert tip question (line %d): %v", lineNo, err)
				continue
			}
			tips++
		}
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("read input: %v", err)
	}

	log.Printf("done: imported %d questions, %d tip questions", questions, tips)
}

// parseLine decodes and validates one record. Exactly one of the returned
// pointers is non-nil on success.
func parseLine(line []byte, defaultCategory string) (*model.Question, *model.TipQuestion, error) {
	var rec jsonQuestion
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, nil, fmt.Errorf("bad JSON: %w", err)
	}
	if strings.TrimSpace(rec.Text) == "" {
		return nil, nil, errors.New("text is required")
	}
	if rec.Category == "" {
		rec.Category = defaultCategory
	}

	switch {
	case len(rec.Options) > 0:
		if len(rec.Options) != 4 {
			return nil, nil, fmt.Errorf("want 4 options, got %d", len(rec.Options))
		}
		q := &model.Question{Text: rec.Text, Correct: rec.Correct, Category: rec.Category}
		for i, opt := range rec.Options {
			if strings.TrimSpace(opt) == "" {
				return nil, nil, fmt.Errorf("option %d is empty", i+1)
			}
			q.Options[i] = opt
		}
		if rec.Correct < 1 || rec.Correct > 4 {
			return nil, nil, fmt.Errorf("correct must be 1..4, got %d", rec.Correct)
		}
		return q, nil, nil

	case rec.Answer != nil:
		if *rec.Answer < 0 {
			return nil, nil, fmt.Errorf("answer must not be negative, got %d", *rec.Answer)
		}
		if rec.Max <= 0 {
			return nil, nil, fmt.Errorf("max must be positive, got %d", rec.Max)
		}
		return nil, &model.TipQuestion{Text: rec.Text, Answer: *rec.Answer, Max: rec.Max, Category: rec.Category}, nil

	default:
		return nil, nil, errors.New("record has neither options nor an answer")
	}
}
