package model

// Player count limits for a game session. The rule engine is written for two
// players but the lobby layer is kept range-based.
const (
	MinPlayers = 2
	MaxPlayers = 4
)

// GameSession is a pending or active group of players who will play one game
// together. Players holds display names in join order; join order is turn
// order once the game starts.
type GameSession struct {
	Players []string
	Playing bool
}

// HasPlayer reports whether the named player is a member of this session.
func (s *GameSession) HasPlayer(name string) bool {
	for _, p := range s.Players {
		if p == name {
			return true
		}
	}
	return false
}

// HasRoom reports whether another player can still join.
func (s *GameSession) HasRoom() bool {
	return len(s.Players) < MaxPlayers
}

// RemovePlayer removes the named player, preserving the order of the rest.
func (s *GameSession) RemovePlayer(name string) {
	for i, p := range s.Players {
		if p == name {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return
		}
	}
}
