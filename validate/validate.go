// Package validate checks client-supplied identifiers before they are
// bound to a connection or stored in the lobby. Game and player ids
// are opaque tokens chosen by the client; the server only requires
// that they are non-empty, reasonably sized, valid UTF-8, and free of
// control characters.
package validate

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MaxIDLength is the longest accepted identifier in bytes. Generated
// game ids are UUIDs (36 bytes); the limit leaves headroom for
// client-chosen player names without allowing unbounded keys.
const MaxIDLength = 64

var (
	ErrEmptyID   = errors.New("identifier is empty")
	ErrIDTooLong = fmt.Errorf("identifier exceeds %d bytes", MaxIDLength)
	ErrInvalidID = errors.New("identifier contains invalid characters")
)

// GameID validates a client-supplied game identifier.
func GameID(id string) error {
	return identifier(id)
}

// PlayerID validates a client-supplied player identifier.
func PlayerID(id string) error {
	return identifier(id)
}

func identifier(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(id) > MaxIDLength {
		return ErrIDTooLong
	}
	if !utf8.ValidString(id) {
		return ErrInvalidID
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return ErrInvalidID
		}
	}
	return nil
}
