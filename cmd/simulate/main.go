package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tgaller/triviador-server/internal/bot"
	"github.com/tgaller/triviador-server/internal/engine"
	"github.com/tgaller/triviador-server/internal/model"
	"github.com/tgaller/triviador-server/internal/question"
	"github.com/tgaller/triviador-server/internal/repository/postgres"
	"github.com/tgaller/triviador-server/internal/session"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var (
		numMatches int
		workers    int
		seed       int64
		dbURL      string
		dryRun     bool
		jsonOut    bool
	)

	flag.IntVar(&numMatches, "n", 1, "Number of matches to run")
	flag.IntVar(&workers, "workers", 1, "Concurrency (parallel matches)")
	flag.Int64Var(&seed, "seed", 0, "Base seed (0 = random)")
	flag.StringVar(&dbURL, "db", "", "Database URL for archiving (or use DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "Skip database writes")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")

	flag.Parse()

	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	// Connect to DB only when archiving was asked for
	var archive *postgres.MatchRepo
	if !dryRun && dbURL != "" {
		db, err := postgres.Connect(dbURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()
		archive = postgres.NewMatchRepo(db)
	}

	// Run matches
	results := make([]*model.MatchRecord, numMatches)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	errCount := 0

	for i := 0; i < numMatches; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			matchSeed := seed
			if seed != 0 {
				matchSeed = seed + int64(idx)
			}

			rec, err := runMatch(ctx, idx+1, matchSeed)
			if rec == nil {
				log.Error().Err(err).Int("match", idx+1).Msg("Match failed")
				mu.Lock()
				errCount++
				mu.Unlock()
				return
			}
			if err != nil {
				log.Warn().Err(err).Int("match", idx+1).Msg("Match aborted")
			}

			if archive != nil {
				saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if aerr := archive.SaveMatch(saveCtx, rec); aerr != nil {
					log.Error().Err(aerr).Str("matchId", rec.ID).Msg("Archive write failed")
				}
				saveCancel()
			}

			mu.Lock()
			results[idx] = rec
			mu.Unlock()

			log.Info().Int("match", idx+1).Int("winner", rec.Winner).
				Str("scores", scoreList(rec)).Msg("Match completed")
		}(i)
	}

	wg.Wait()

	if jsonOut {
		printJSON(results, numMatches, errCount)
	} else {
		printSummary(results, errCount, archive != nil)
	}
}

// simConfig compresses every prompt window so an all-bot match finishes in
// well under a second.
func simConfig() engine.Config {
	return engine.Config{
		SelectTimeout:  2 * time.Second,
		AnswerTimeout:  2 * time.Second,
		TipTimeout:     2 * time.Second,
		BarrierTimeout: 5 * time.Second,
	}
}

func runMatch(ctx context.Context, n int, seed int64) (*model.MatchRecord, error) {
	dice := triviador.NewDice(seed)
	taken := make(map[string]bool)
	var agents [3]session.Agent
	for seat := 1; seat <= 3; seat++ {
		name := bot.PickName(dice, taken)
		taken[name] = true
		agents[seat-1] = bot.New(seat, name, dice, 0, 0)
	}

	m := engine.New(fmt.Sprintf("sim-%d", n), simConfig(), triviador.HungaryMap(),
		triviador.DefaultScoring(), model.RoomTypeRanked, agents, question.DefaultBank(), dice, nil)
	return m.Run(ctx)
}

func scoreList(rec *model.MatchRecord) string {
	var scores [3]int
	for _, s := range rec.Seats {
		if s.Seat >= 1 && s.Seat <= 3 {
			scores[s.Seat-1] = s.Score
		}
	}
	return triviador.FormatScores(scores)
}

func printSummary(results []*model.MatchRecord, errCount int, archived bool) {
	type stats struct {
		wins       int
		totalScore int
		matches    int
	}
	var bySeat [3]stats

	completed := 0
	aborted := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		completed++
		if r.Result == model.MatchResultAborted {
			aborted++
			continue
		}
		for _, s := range r.Seats {
			if s.Seat < 1 || s.Seat > 3 {
				continue
			}
			st := &bySeat[s.Seat-1]
			st.matches++
			st.totalScore += s.Score
			if r.Winner == s.Seat {
				st.wins++
			}
		}
	}

	fmt.Printf("\nResults (%d matches):\n", completed)
	if errCount > 0 {
		fmt.Printf("  (%d matches failed)\n", errCount)
	}
	if aborted > 0 {
		fmt.Printf("  (%d matches aborted)\n", aborted)
	}

	for seat := 1; seat <= 3; seat++ {
		st := bySeat[seat-1]
		avg := 0.0
		if st.matches > 0 {
			avg = float64(st.totalScore) / float64(st.matches)
		}
		fmt.Printf("  seat %d:  %d wins  -- avg score: %.1f\n", seat, st.wins, avg)
	}

	if archived && completed > 0 {
		fmt.Printf("\nMatches archived to database\n")
	}
}

func printJSON(results []*model.MatchRecord, total, errCount int) {
	out := struct {
		Total   int                  `json:"total"`
		Errors  int                  `json:"errors"`
		Results []*model.MatchRecord `json:"results"`
	}{
		Total:   total,
		Errors:  errCount,
		Results: results,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
