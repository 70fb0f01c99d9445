package model

import "errors"

// Common errors used across the application
var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidName     = errors.New("invalid player name")
	ErrNameTaken       = errors.New("player name already taken")
	ErrEmptyPassword   = errors.New("password may not be empty")
	ErrBadCredentials  = errors.New("player name or password is incorrect")

	// Session errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionFull         = errors.New("session is full")
	ErrGameInProgress      = errors.New("game is in progress")
	ErrInsufficientPlayers = errors.New("insufficient players to start game")
)
