// Package clock holds the time source and timestamp format shared by the
// leaderboard, the game-state cache and the real-time protocol.
package clock

import "time"

// ISOLayout renders instants as UTC ISO-8601 with millisecond precision,
// e.g. 2024-05-01T12:30:45.123Z.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// Func returns the current instant. Stores take one so tests can pin time.
type Func func() time.Time

// System is the wall clock.
func System() time.Time { return time.Now() }

// ISO formats t in UTC using ISOLayout.
func ISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}
