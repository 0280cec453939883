package score

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/tetris-online/tetris/server/internal/clock"
)

const (
	// DefaultCapacity is the number of records kept after eviction.
	DefaultCapacity = 100

	// DefaultLimit is the TopScores page size when none is requested.
	DefaultLimit = 10
)

// PresenceCounter reports how many real-time clients are connected.
type PresenceCounter interface {
	ClientCount() int
}

// PlayerBest summarizes one player's stored games.
type PlayerBest struct {
	PlayerName  string  `json:"playerName"`
	HighScore   float64 `json:"highScore"`
	GamesPlayed int     `json:"gamesPlayed"`
	BestGame    *Record `json:"bestGame"`
}

// Stats aggregates the whole store plus current presence.
type Stats struct {
	TotalGames    int     `json:"totalGames"`
	TotalScore    float64 `json:"totalScore"`
	AvgScore      int64   `json:"avgScore"`
	HighestScore  float64 `json:"highestScore"`
	ActivePlayers int     `json:"activePlayers"`
}

// Store is a capped, concurrency-safe leaderboard.
// When a Submit pushes it over capacity, the lowest scores are evicted.
type Store struct {
	mu       sync.RWMutex
	records  []Record
	capacity int
	seq      uint64
	now      clock.Func
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity overrides DefaultCapacity. Non-positive values are ignored.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock overrides the wall clock used for ids and timestamps.
func WithClock(now clock.Func) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		capacity: DefaultCapacity,
		now:      clock.System,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and stores a new record, evicting the lowest scores if the
// store grows past capacity. The returned record is the one created even if
// it was evicted immediately.
func (s *Store) Submit(sub Submission) (Record, error) {
	if err := sub.Validate(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec := newRecord(sub, s.now(), s.seq)
	s.records = append(s.records, rec)

	if len(s.records) > s.capacity {
		slices.SortFunc(s.records, byRank)
		clear(s.records[s.capacity:])
		s.records = s.records[:s.capacity]
	}
	return rec, nil
}

// TopScores returns up to limit records, highest score first. Equal scores
// keep submission order. limit <= 0 means DefaultLimit.
func (s *Store) TopScores(limit int) []Record {
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.RLock()
	ranked := slices.Clone(s.records)
	s.mu.RUnlock()

	slices.SortFunc(ranked, byRank)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if ranked == nil {
		ranked = []Record{}
	}
	return ranked
}

// PlayerBest returns the best stored game for an exact, case-sensitive name.
func (s *Store) PlayerBest(playerName string) PlayerBest {
	s.mu.RLock()
	games := lo.Filter(s.records, func(r Record, _ int) bool {
		return r.PlayerName == playerName
	})
	s.mu.RUnlock()

	out := PlayerBest{PlayerName: playerName, GamesPlayed: len(games)}
	if len(games) == 0 {
		return out
	}
	best := lo.MaxBy(games, ranksAbove)
	out.HighScore = best.Score
	out.BestGame = &best
	return out
}

// Stats aggregates the stored records. activePlayers comes from presence,
// which may be nil.
func (s *Store) Stats(presence PresenceCounter) Stats {
	s.mu.RLock()
	total := len(s.records)
	sum := lo.SumBy(s.records, func(r Record) float64 { return r.Score })
	var highest float64
	if total > 0 {
		highest = lo.MaxBy(s.records, ranksAbove).Score
	}
	s.mu.RUnlock()

	st := Stats{
		TotalGames:   total,
		TotalScore:   sum,
		HighestScore: highest,
	}
	if total > 0 {
		// half-up rounding, matching the browser client's Math.round
		st.AvgScore = int64(math.Floor(sum/float64(total) + 0.5))
	}
	if presence != nil {
		st.ActivePlayers = presence.ClientCount()
	}
	return st
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// byRank orders by score descending, then by submission order.
func byRank(a, b Record) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

func ranksAbove(a, b Record) bool {
	return byRank(a, b) < 0
}
