// Package session implements the in-memory directory of pending and active
// game sessions. The directory is owned by the broker goroutine and is not
// safe for concurrent use.
package session

import (
	"github.com/mcoot/whistbroker/internal/model"
)

// Directory tracks every session and which players belong to them. Players
// are addressed by display name throughout; names are unique by account
// creation, so no separate session ID is needed.
type Directory struct {
	sessions []*model.GameSession
}

// New creates an empty session directory
func New() *Directory {
	return &Directory{}
}

// SessionOf returns the session the named player belongs to, or nil
func (d *Directory) SessionOf(name string) *model.GameSession {
	for _, s := range d.sessions {
		if s.HasPlayer(name) {
			return s
		}
	}
	return nil
}

// remove takes the given session out of the directory
func (d *Directory) remove(target *model.GameSession) {
	for i, s := range d.sessions {
		if s == target {
			d.sessions = append(d.sessions[:i], d.sessions[i+1:]...)
			return
		}
	}
}

// Leave removes the named player from any session that has not yet started.
// A session left empty is dropped. Players in a playing session are not
// touched; tearing down a running game goes through CompleteAndRemove.
func (d *Directory) Leave(name string) {
	s := d.SessionOf(name)
	if s == nil || s.Playing {
		return
	}

	s.RemovePlayer(name)
	if len(s.Players) == 0 {
		d.remove(s)
	}
}

// JoinOrHost moves the named player into a session. The player first leaves
// any pending session they are in. With no candidates a new session is
// hosted containing only the player. Otherwise candidates are scanned in
// order and the player joins the first candidate's session that exists, has
// not started, and has room; if none qualifies the player ends up in no
// session and the returned session is nil.
func (d *Directory) JoinOrHost(name string, candidates []string) *model.GameSession {
	d.Leave(name)

	if len(candidates) == 0 {
		s := &model.GameSession{Players: []string{name}}
		d.sessions = append(d.sessions, s)
		return s
	}

	for _, candidate := range candidates {
		s := d.SessionOf(candidate)
		if s != nil && !s.Playing && s.HasRoom() {
			s.Players = append(s.Players, name)
			return s
		}
	}
	return nil
}

// Start marks the named player's session as playing, freezing its membership
// and turn order. It fails if the player is in no session, the session has
// already started, or the member count is outside the playable range.
func (d *Directory) Start(name string) (*model.GameSession, error) {
	s := d.SessionOf(name)
	if s == nil {
		return nil, model.ErrSessionNotFound
	}
	if s.Playing {
		return nil, model.ErrGameInProgress
	}
	if len(s.Players) < model.MinPlayers {
		return nil, model.ErrInsufficientPlayers
	}
	if len(s.Players) > model.MaxPlayers {
		return nil, model.ErrSessionFull
	}

	s.Playing = true
	return s, nil
}

// CompleteAndRemove removes the playing session containing the named player
// and returns it. It returns nil if the player is not in a playing session,
// which makes duplicate game-over notifications harmless: the first caller
// wins, later ones are no-ops.
func (d *Directory) CompleteAndRemove(name string) *model.GameSession {
	s := d.SessionOf(name)
	if s == nil || !s.Playing {
		return nil
	}

	d.remove(s)
	return s
}

// ListJoinable returns every session that has not started and has room
func (d *Directory) ListJoinable() []*model.GameSession {
	var joinable []*model.GameSession
	for _, s := range d.sessions {
		if !s.Playing && s.HasRoom() {
			joinable = append(joinable, s)
		}
	}
	return joinable
}
