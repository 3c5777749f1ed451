package session

import (
	"errors"

	"github.com/maax3v3/vorocal/internal/store"
)

var (
	// ErrInvalidInput covers bad colors, undecodable images, malformed
	// backups and empty notes. Nothing is mutated.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoActiveImage is returned by intents that need a loaded image.
	ErrNoActiveImage = errors.New("no active image")
	// ErrNotConfirmed is returned by Reset without confirmation.
	ErrNotConfirmed = errors.New("confirmation required")
	// ErrStorageUnavailable is the store's failure sentinel.
	ErrStorageUnavailable = store.ErrUnavailable
)
