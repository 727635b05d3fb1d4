package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tgaller/triviador-server/internal/model"
)

// MatchRepo archives finished matches.
type MatchRepo struct {
	db *sql.DB
}

// NewMatchRepo creates a MatchRepo.
func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// SaveMatch inserts the match row and its three seat rows atomically.
func (r *MatchRepo) SaveMatch(ctx context.Context, rec *model.MatchRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO matches (id, map_name, room_type, result, winner, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.MapName, rec.RoomType, rec.Result, rec.Winner, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	for _, s := range rec.Seats {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO match_seats (match_id, seat, name, kind, score, place)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.ID, s.Seat, s.Name, s.Kind, s.Score, s.Place,
		)
		if err != nil {
			return fmt.Errorf("insert match seat %d: %w", s.Seat, err)
		}
	}

	return tx.Commit()
}

// FindMatch returns one archived match with its seats, or nil when absent.
func (r *MatchRepo) FindMatch(ctx context.Context, id string) (*model.MatchRecord, error) {
	var rec model.MatchRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT id, map_name, room_type, result, winner, started_at, finished_at
		 FROM matches WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.MapName, &rec.RoomType, &rec.Result, &rec.Winner, &rec.StartedAt, &rec.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}
	if err := r.loadSeats(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecentMatches returns the latest archived matches with their seats, most
// recently finished first.
func (r *MatchRepo) RecentMatches(ctx context.Context, limit int) ([]model.MatchRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, map_name, room_type, result, winner, started_at, finished_at
		 FROM matches ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}
	defer rows.Close()

	var recs []model.MatchRecord
	for rows.Next() {
		var rec model.MatchRecord
		if err := rows.Scan(&rec.ID, &rec.MapName, &rec.RoomType, &rec.Result, &rec.Winner, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range recs {
		if err := r.loadSeats(ctx, &recs[i]); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (r *MatchRepo) loadSeats(ctx context.Context, rec *model.MatchRecord) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat, name, kind, score, place FROM match_seats
		 WHERE match_id = $1 ORDER BY seat`, rec.ID)
	if err != nil {
		return fmt.Errorf("load match seats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s model.SeatResult
		if err := rows.Scan(&s.Seat, &s.Name, &s.Kind, &s.Score, &s.Place); err != nil {
			return fmt.Errorf("scan match seat: %w", err)
		}
		if s.Seat >= 1 && s.Seat <= 3 {
			rec.Seats[s.Seat-1] = s
		}
	}
	return rows.Err()
}
