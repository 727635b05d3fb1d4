// Package model holds the plain data structures shared across services,
// repositories and handlers.
package model

import "time"

// Seat kinds.
const (
	SeatKindHuman = "human"
	SeatKindBot   = "bot"
)

// Match results.
const (
	MatchResultFinished = "finished"
	MatchResultAborted  = "aborted"
)

// Room types.
const (
	RoomTypeRanked   = 0
	RoomTypeFriendly = 1
)

// User is an ephemeral session identity. Accounts are not persisted; the
// name is whatever LOGIN supplied and the id is minted per login.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Question is a four-option trivia question. Correct is the 1-based index
// of the right option.
type Question struct {
	ID       int64     `json:"id"`
	Text     string    `json:"text"`
	Options  [4]string `json:"options"`
	Correct  int       `json:"correct"`
	Category string    `json:"category"`
}

// TipQuestion is a numeric-estimate question. Max bounds the sensible
// answer range and drives bot sampling.
type TipQuestion struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Answer   int    `json:"answer"`
	Max      int    `json:"max"`
	Category string `json:"category"`
}

// SeatResult is one seat's final standing in a finished match.
type SeatResult struct {
	Seat  int    `json:"seat"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Score int    `json:"score"`
	Place int    `json:"place"`
}

// MatchRecord is the archive row of a completed (or aborted) match.
type MatchRecord struct {
	ID         string        `json:"id"`
	MapName    string        `json:"map_name"`
	RoomType   int           `json:"room_type"`
	Result     string        `json:"result"`
	Winner     int           `json:"winner"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Seats      [3]SeatResult `json:"seats"`
}

// MatchSnapshot is the write-through projection of a live match: the packed
// wire fields plus enough context to render an observer view.
type MatchSnapshot struct {
	MatchID   string    `json:"match_id"`
	MapName   string    `json:"map_name"`
	Phase     string    `json:"phase"`
	Scores    [3]int    `json:"scores"`
	Players   [3]string `json:"players"`
	Areas     string    `json:"areas"`
	Bases     string    `json:"bases"`
	Selection string    `json:"selection"`
	Available string    `json:"available"`
	WarOrder  []int     `json:"war_order"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchInfo is the observer-API listing entry for a live match.
type MatchInfo struct {
	ID        string    `json:"id"`
	MapName   string    `json:"map_name"`
	RoomType  int       `json:"room_type"`
	Phase     string    `json:"phase"`
	Players   [3]string `json:"players"`
	StartedAt time.Time `json:"started_at"`
}
