// Package protocol defines the JSON messages exchanged over the real-time
// channel. Every message is a flat object carrying a "type" discriminator.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tetris-online/tetris/server/internal/clock"
)

// Message types.
const (
	TypeConnected        = "connected"
	TypeGameState        = "gameState"
	TypeGameOver         = "gameOver"
	TypeGetOnlinePlayers = "getOnlinePlayers"
	TypePlayerGameOver   = "playerGameOver"
	TypeOnlinePlayers    = "onlinePlayers"
)

// WelcomeText is sent in the connected message.
const WelcomeText = "Connected to Tetris server"

// ErrMalformed is returned by Decode for payloads that are not a JSON object
// of the expected shape.
var ErrMalformed = errors.New("malformed message")

// Inbound is a decoded client message: GameState, GameOver,
// GetOnlinePlayers or Unknown.
type Inbound interface {
	inbound()
}

// GameState reports a player's in-progress game.
type GameState struct {
	PlayerID PlayerID `json:"playerId"`
	Score    float64  `json:"score"`
	Level    int      `json:"level"`
	Lines    int      `json:"lines"`
}

// GameOver announces a finished game.
type GameOver struct {
	PlayerName string  `json:"playerName"`
	Score      float64 `json:"score"`
}

// GetOnlinePlayers asks for the current connection count.
type GetOnlinePlayers struct{}

// Unknown is any message whose type is not recognized.
type Unknown struct {
	Type string
}

func (GameState) inbound()        {}
func (GameOver) inbound()         {}
func (GetOnlinePlayers) inbound() {}
func (Unknown) inbound()          {}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses a raw client frame into its Inbound variant. Unrecognized
// types decode to Unknown without error.
func Decode(raw []byte) (Inbound, error) {
	var env *envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env == nil {
		return nil, fmt.Errorf("%w: null payload", ErrMalformed)
	}

	switch env.Type {
	case TypeGameState:
		var m GameState
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		return m, nil
	case TypeGameOver:
		var m GameOver
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		return m, nil
	case TypeGetOnlinePlayers:
		return GetOnlinePlayers{}, nil
	default:
		return Unknown{Type: env.Type}, nil
	}
}

// PlayerID accepts either a JSON string or a JSON number, since browser
// clients send both.
type PlayerID string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PlayerID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = PlayerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("playerId must be a string or number: %w", err)
	}
	*p = PlayerID(n.String())
	return nil
}

// Connected greets a newly registered client.
type Connected struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewConnected builds the welcome message stamped at now.
func NewConnected(now time.Time) Connected {
	return Connected{Type: TypeConnected, Message: WelcomeText, Timestamp: clock.ISO(now)}
}

// PlayerGameOver is broadcast to every client when someone finishes a game.
type PlayerGameOver struct {
	Type       string  `json:"type"`
	PlayerName string  `json:"playerName"`
	Score      float64 `json:"score"`
}

// NewPlayerGameOver builds the broadcast for a finished game.
func NewPlayerGameOver(playerName string, score float64) PlayerGameOver {
	return PlayerGameOver{Type: TypePlayerGameOver, PlayerName: playerName, Score: score}
}

// OnlinePlayers answers GetOnlinePlayers.
type OnlinePlayers struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// NewOnlinePlayers builds the presence reply.
func NewOnlinePlayers(count int) OnlinePlayers {
	return OnlinePlayers{Type: TypeOnlinePlayers, Count: count}
}
