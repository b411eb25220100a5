// Package domain contains entities without transport or storage logic.
package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxNameLen  = 36
	DefaultName = "anonymous"
)

var ErrNameTooLong = errors.New("name too long")

type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// Connection is the presence record of one live client. It is never persisted.
type Connection struct {
	ID       ConnectionID `json:"id"`
	Role     Role         `json:"role"`
	Name     string       `json:"name"`
	JoinedAt time.Time    `json:"joined_at"`
}

// Joined reports whether the connection currently sits in a room.
func (c Connection) Joined() bool { return c.Role != RoleNone }

// NormalizeName trims the display name and substitutes DefaultName for empty input.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName, nil
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return "", ErrNameTooLong
	}
	return name, nil
}
