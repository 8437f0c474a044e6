package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoidLength = 21

// NewID returns a URL-safe random identifier used for conversation sessions
// and ingest jobs.
func NewID() string {
	id, err := gonanoid.New()
	if err != nil {
		// gonanoid only fails when the system random source fails.
		panic(err)
	}
	return id
}

// IsNanoid reports whether s has the shape of an id produced by NewID.
func IsNanoid(s string) bool {
	if len(s) != nanoidLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
