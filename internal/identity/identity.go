// Package identity generates connection IDs for real-time clients.
// IDs follow the format: conn:<base58(uuid)>
package identity

import (
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

const prefix = "conn:"

// NewConnID creates a connection ID from a fresh random UUID.
func NewConnID() string {
	return fromUUID(uuid.New())
}

// fromUUID encodes the 16 UUID bytes in base58 behind the conn: prefix.
func fromUUID(u uuid.UUID) string {
	return prefix + base58.Encode(u[:])
}
