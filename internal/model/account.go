package model

import "unicode"

// PlayerAccount is the persistent record for one registered player.
// Passwords are stored in clear text; the protocol is explicitly unauthenticated
// beyond this shared-secret match.
type PlayerAccount struct {
	Name        string `json:"name"`
	Password    string `json:"password"`
	GamesWon    int    `json:"games_won"`
	GamesPlayed int    `json:"games_played"`
}

// LeaderboardEntry is a PlayerAccount with the password stripped, as sent to clients.
type LeaderboardEntry struct {
	Name        string `json:"name"`
	GamesWon    int    `json:"games_won"`
	GamesPlayed int    `json:"games_played"`
}

// RecordResult updates the win/loss tallies for one finished game.
// A tie counts as a played game for everyone and a win for no one.
func (a *PlayerAccount) RecordResult(won bool) {
	a.GamesPlayed++
	if won {
		a.GamesWon++
	}
}

// IsValidPlayerName reports whether name is non-empty and composed only of
// letters, digits, and spaces.
func IsValidPlayerName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
