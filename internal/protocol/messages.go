// Package protocol defines the wire vocabulary exchanged between the broker
// and game clients, and the framing used to carry it over a byte stream.
package protocol

import "github.com/mcoot/whistbroker/internal/model"

// Kind tags each envelope with its message type
type Kind string

const (
	KindSignIn             Kind = "sign_in"
	KindStringReply        Kind = "string_reply"
	KindChangePassword     Kind = "change_password"
	KindDeleteAccount      Kind = "delete_account"
	KindLobbyUpdate        Kind = "lobby_update"
	KindLobbyList          Kind = "lobby_list"
	KindStartGame          Kind = "start_game"
	KindPlay               Kind = "play"
	KindGameOver           Kind = "game_over"
	KindLeaderboardRequest Kind = "leaderboard_request"
	KindLeaderboardReply   Kind = "leaderboard_reply"
	KindClose              Kind = "close"
)

// Message is one decoded protocol message. The set of implementations is
// closed; dispatch is an exhaustive type switch over the types below.
type Message interface {
	Kind() Kind
}

// SignIn requests sign-in to an existing account, or account creation when
// NewAccount is set. Credentials travel in clear text by design.
type SignIn struct {
	PlayerName string `json:"player_name"`
	Password   string `json:"password"`
	NewAccount bool   `json:"new_account"`
}

// StringReplyType categorises a StringReply
type StringReplyType string

const (
	SignInOk             StringReplyType = "sign_in_ok"
	SignInError          StringReplyType = "sign_in_error"
	PasswordChangeResult StringReplyType = "password_change_result"
	DeleteAccountResult  StringReplyType = "delete_account_result"
)

// StringReply is the broker's generic textual response. For the *Result types
// an empty Message indicates success.
type StringReply struct {
	Type    StringReplyType `json:"type"`
	Message string          `json:"message"`
}

// ChangePassword asks the broker to set a new password for the signed-in player.
type ChangePassword struct {
	NewPassword string `json:"new_password"`
}

// DeleteAccount asks the broker to delete the signed-in player's account.
// The current password must be supplied as confirmation.
type DeleteAccount struct {
	Password string `json:"password"`
}

// LobbyUpdate is both the client's join/leave request and the broker's
// description of one session. From a client, Joining=false means leave and
// Players lists candidate players whose session to join (empty hosts a new
// one). From the broker, it describes the session the client belongs to.
type LobbyUpdate struct {
	Players []string `json:"players"`
	Joining bool     `json:"joining"`
}

// LobbyList carries every joinable session, sent to signed-in clients that
// are not in a session.
type LobbyList struct {
	Sessions []LobbyUpdate `json:"sessions"`
}

// StartGame is the game-start request and broadcast. Players is the frozen
// member order (turn order); Seed lets every client regenerate an identical
// deck without the broker ever computing one. A client request may leave
// Seed zero to have the broker choose.
type StartGame struct {
	Players []string `json:"players"`
	Seed    int64    `json:"seed"`
}

// Play is a single card play, relayed verbatim to the other members of the
// session. The broker performs no legality check.
type Play struct {
	Card int `json:"card"`
}

// GameOver reports that a game ended. Complete is false when the game was
// abandoned (no tallies change). Winner is an index into the frozen member
// order and is meaningful only when Complete is true and Tie is false.
type GameOver struct {
	Complete bool `json:"complete"`
	Tie      bool `json:"tie"`
	Winner   int  `json:"winner"`
}

// LeaderboardRequest asks for the current player stats.
type LeaderboardRequest struct{}

// LeaderboardReply lists every account with passwords stripped.
type LeaderboardReply struct {
	Players []model.LeaderboardEntry `json:"players"`
}

// Close is a graceful disconnect marker, valid in either direction.
type Close struct{}

func (SignIn) Kind() Kind             { return KindSignIn }
func (StringReply) Kind() Kind        { return KindStringReply }
func (ChangePassword) Kind() Kind     { return KindChangePassword }
func (DeleteAccount) Kind() Kind      { return KindDeleteAccount }
func (LobbyUpdate) Kind() Kind        { return KindLobbyUpdate }
func (LobbyList) Kind() Kind          { return KindLobbyList }
func (StartGame) Kind() Kind          { return KindStartGame }
func (Play) Kind() Kind               { return KindPlay }
func (GameOver) Kind() Kind           { return KindGameOver }
func (LeaderboardRequest) Kind() Kind { return KindLeaderboardRequest }
func (LeaderboardReply) Kind() Kind   { return KindLeaderboardReply }
func (Close) Kind() Kind              { return KindClose }
