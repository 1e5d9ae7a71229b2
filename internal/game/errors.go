package game

import "errors"

var (
	// ErrInvalidCommand is returned when a command is not allowed in the
	// current phase or against the addressed hand. State is left unchanged.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrInvalidConfig is returned for deck, hand or difficulty values outside
	// the supported range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrShoeExhausted is returned when the shoe cannot supply a card.
	ErrShoeExhausted = errors.New("shoe exhausted")
)
