// Package gamestate keeps the last in-progress state reported by each player.
// Entries are replaced wholesale on update and live for the process lifetime.
package gamestate

import (
	"sync"

	"github.com/tetris-online/tetris/server/internal/clock"
)

// State is one player's last reported progress.
type State struct {
	Score     float64 `json:"score"`
	Level     int     `json:"level"`
	Lines     int     `json:"lines"`
	Timestamp string  `json:"timestamp"`
}

// Cache maps player IDs to their last State.
type Cache struct {
	mu     sync.RWMutex
	states map[string]State
	now    clock.Func
}

// NewCache creates an empty Cache. A nil now uses the wall clock.
func NewCache(now clock.Func) *Cache {
	if now == nil {
		now = clock.System
	}
	return &Cache{states: make(map[string]State), now: now}
}

// Upsert replaces any existing entry for playerID.
func (c *Cache) Upsert(playerID string, score float64, level, lines int) {
	st := State{
		Score:     score,
		Level:     level,
		Lines:     lines,
		Timestamp: clock.ISO(c.now()),
	}
	c.mu.Lock()
	c.states[playerID] = st
	c.mu.Unlock()
}

// Get returns the last state for playerID.
func (c *Cache) Get(playerID string) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.states[playerID]
	return st, ok
}

// Len returns the number of tracked players.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states)
}
