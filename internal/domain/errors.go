package domain

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNoAttachment        = errors.New("no attachment")
)
