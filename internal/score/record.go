// Package score implements the in-memory leaderboard: a capped collection of
// submitted game results with ranking, per-player and aggregate queries.
package score

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/tetris-online/tetris/server/internal/clock"
)

const (
	// MaxNameLength is the number of characters kept from a submitted name.
	MaxNameLength = 20

	defaultLevel = 1
)

// ErrValidation is returned when a submission lacks a required field.
var ErrValidation = errors.New("playerName and score are required")

// Record is one stored game result. Records are never mutated after Submit.
type Record struct {
	ID         int64   `json:"id"`
	PlayerName string  `json:"playerName"`
	Score      float64 `json:"score"`
	Level      int     `json:"level"`
	Lines      int     `json:"lines"`
	Timestamp  string  `json:"timestamp"`

	seq uint64 // insertion order, breaks score ties
}

// Submission is an inbound score. Pointer fields distinguish "absent" from zero.
type Submission struct {
	PlayerName string   `json:"playerName"`
	Score      *float64 `json:"score"`
	Level      *int     `json:"level"`
	Lines      *int     `json:"lines"`
}

// Validate reports ErrValidation when the name is empty or the score is absent.
// A score of 0 is valid.
func (s Submission) Validate() error {
	if s.PlayerName == "" {
		return fmt.Errorf("missing playerName: %w", ErrValidation)
	}
	if s.Score == nil {
		return fmt.Errorf("missing score: %w", ErrValidation)
	}
	return nil
}

// newRecord builds a Record from a validated submission.
// A level of 0 falls back to the default like an omitted one.
func newRecord(s Submission, now time.Time, seq uint64) Record {
	level := defaultLevel
	if s.Level != nil && *s.Level != 0 {
		level = *s.Level
	}
	lines := 0
	if s.Lines != nil {
		lines = *s.Lines
	}
	return Record{
		ID:         now.UnixMilli(),
		PlayerName: truncateName(s.PlayerName),
		Score:      *s.Score,
		Level:      level,
		Lines:      lines,
		Timestamp:  clock.ISO(now),
		seq:        seq,
	}
}

func truncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	return string([]rune(name)[:MaxNameLength])
}
