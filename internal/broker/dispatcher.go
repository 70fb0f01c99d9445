package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mcoot/whistbroker/internal/dependencies/random"
	"github.com/mcoot/whistbroker/internal/model"
	"github.com/mcoot/whistbroker/internal/protocol"
	"github.com/mcoot/whistbroker/internal/services/account"
	"github.com/mcoot/whistbroker/internal/services/session"
)

// client pairs a connection with the player name bound to it on sign-in.
// The name is a lookup key into the account table and session directory,
// never an owning reference.
type client struct {
	conn       Conn
	playerName string
}

func (c *client) signedIn() bool {
	return c.playerName != ""
}

func (c *client) String() string {
	if c.signedIn() {
		return fmt.Sprintf("%s (%s)", c.conn.RemoteAddr(), c.playerName)
	}
	return c.conn.RemoteAddr()
}

// Dispatcher routes inbound messages to handlers that mutate the account
// table and session directory and write replies and broadcasts back out.
// All methods run on the broker goroutine; the client set is never touched
// concurrently.
type Dispatcher struct {
	accounts *account.Service
	sessions *session.Directory
	random   random.Random
	logger   *slog.Logger

	clients []*client
}

// NewDispatcher creates a dispatcher over the given services
func NewDispatcher(
	accounts *account.Service,
	sessions *session.Directory,
	rnd random.Random,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		accounts: accounts,
		sessions: sessions,
		random:   rnd,
		logger:   logger,
	}
}

// AddClient registers a newly accepted connection
func (d *Dispatcher) AddClient(conn Conn) {
	c := &client{conn: conn}
	d.clients = append(d.clients, c)
	d.logger.Info("client connected", slog.String("client", c.String()))
}

func (d *Dispatcher) hasClient(c *client) bool {
	return slices.Contains(d.clients, c)
}

func (d *Dispatcher) removeClient(c *client) {
	for i, existing := range d.clients {
		if existing == c {
			d.clients = append(d.clients[:i], d.clients[i+1:]...)
			return
		}
	}
}

// clientNamed returns the client bound to the given player name, or nil
func (d *Dispatcher) clientNamed(name string) *client {
	if name == "" {
		return nil
	}
	for _, c := range d.clients {
		if c.playerName == name {
			return c
		}
	}
	return nil
}

// DrainAll drains every pending message from every connection, dispatching
// each synchronously. Messages from one connection are handled strictly in
// arrival order; connections are visited in registration order.
func (d *Dispatcher) DrainAll(ctx context.Context) {
	// Dispatching can add or drop clients, so walk a snapshot
	for _, c := range slices.Clone(d.clients) {
		if !d.hasClient(c) {
			continue
		}
		d.drainClient(ctx, c)
	}
}

// drainClient reads messages from one connection until none are pending or
// the connection is gone.
func (d *Dispatcher) drainClient(ctx context.Context, c *client) {
	for {
		msg, err := c.conn.TryRead()
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownKind) {
				d.logger.Warn("received unknown message",
					slog.String("client", c.String()),
					slog.String("error", err.Error()))
				continue
			}
			d.disconnect(ctx, c)
			return
		}
		if msg == nil {
			return
		}

		d.dispatch(ctx, c, msg)
		if !d.hasClient(c) {
			return
		}
	}
}

// dispatch routes one decoded message. The switch is exhaustive over the
// protocol's message set; server-to-client kinds arriving inbound are
// logged and ignored like any other unexpected message.
func (d *Dispatcher) dispatch(ctx context.Context, c *client, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.SignIn:
		d.handleSignIn(ctx, c, m)
	case *protocol.ChangePassword:
		d.handleChangePassword(ctx, c, m)
	case *protocol.DeleteAccount:
		d.handleDeleteAccount(ctx, c, m)
	case *protocol.LobbyUpdate:
		d.handleLobbyUpdate(c, m)
	case *protocol.StartGame:
		d.handleStartGame(c, m)
	case *protocol.Play:
		d.handlePlay(c, m)
	case *protocol.GameOver:
		d.handleGameOver(ctx, c, m)
	case *protocol.LeaderboardRequest:
		d.handleLeaderboardRequest(c)
	case *protocol.Close:
		d.logger.Info("client closed connection", slog.String("client", c.String()))
		d.disconnect(ctx, c)
	case *protocol.StringReply, *protocol.LobbyList, *protocol.LeaderboardReply:
		d.logger.Warn("received server-only message from client",
			slog.String("client", c.String()),
			slog.String("kind", string(msg.Kind())))
	default:
		d.logger.Warn("received unhandled message",
			slog.String("client", c.String()),
			slog.String("kind", string(msg.Kind())))
	}
}

// disconnect tears down a connection in any state: a playing session ends
// incomplete, a pending session is left, and the connection is discarded.
func (d *Dispatcher) disconnect(ctx context.Context, c *client) {
	d.leaveAnySession(c)
	d.removeClient(c)
	c.conn.Close()
	d.logger.Info("client disconnected", slog.String("client", c.String()))
	d.broadcastLobby()
}

// CloseAll ends every connection gracefully, for server shutdown
func (d *Dispatcher) CloseAll() {
	for _, c := range slices.Clone(d.clients) {
		c.conn.Write(&protocol.Close{})
		c.conn.Close()
	}
	d.clients = nil
}

// leaveAnySession removes the client's player from whatever session they are
// in. A running game is torn down as incomplete: no tallies change and the
// remaining members are told the game is over.
func (d *Dispatcher) leaveAnySession(c *client) {
	if !c.signedIn() {
		return
	}

	s := d.sessions.SessionOf(c.playerName)
	if s == nil {
		return
	}

	if s.Playing {
		removed := d.sessions.CompleteAndRemove(c.playerName)
		if removed != nil {
			d.relayToOthers(removed, c.playerName, &protocol.GameOver{Complete: false})
			d.logger.Info("game abandoned",
				slog.String("client", c.String()),
				slog.Any("players", removed.Players))
		}
		return
	}

	d.sessions.Leave(c.playerName)
}

// relayToOthers sends a message to every member of the session except the
// named player.
func (d *Dispatcher) relayToOthers(s *model.GameSession, exclude string, msg protocol.Message) {
	for _, member := range s.Players {
		if member == exclude {
			continue
		}
		if target := d.clientNamed(member); target != nil {
			target.conn.Write(msg)
		}
	}
}

// broadcastLobby pushes current lobby state to every signed-in connection:
// the full joinable list to players in no session, and their own session
// alone to players waiting in one. Playing connections get nothing.
func (d *Dispatcher) broadcastLobby() {
	joinable := d.sessions.ListJoinable()
	list := &protocol.LobbyList{Sessions: make([]protocol.LobbyUpdate, len(joinable))}
	for i, s := range joinable {
		list.Sessions[i] = protocol.LobbyUpdate{Players: s.Players, Joining: s.Playing}
	}

	for _, c := range d.clients {
		if !c.signedIn() {
			continue
		}
		s := d.sessions.SessionOf(c.playerName)
		switch {
		case s == nil:
			c.conn.Write(list)
		case !s.Playing:
			c.conn.Write(&protocol.LobbyUpdate{Players: s.Players, Joining: s.Playing})
		}
	}
}

func (d *Dispatcher) handleSignIn(ctx context.Context, c *client, m *protocol.SignIn) {
	if m.NewAccount {
		if err := d.accounts.Create(ctx, m.PlayerName, m.Password); err != nil {
			c.conn.Write(&protocol.StringReply{Type: protocol.SignInError, Message: signInErrorMessage(err, m.PlayerName)})
			d.logger.Info("rejected new account", slog.String("client", c.String()),
				slog.String("error", err.Error()))
			return
		}
		c.playerName = m.PlayerName
		c.conn.Write(&protocol.StringReply{Type: protocol.SignInOk, Message: m.PlayerName})
		d.logger.Info("created new player", slog.String("client", c.String()))
		d.broadcastLobby()
		return
	}

	if other := d.clientNamed(m.PlayerName); other != nil && other != c {
		c.conn.Write(&protocol.StringReply{
			Type:    protocol.SignInError,
			Message: "Another user is signed in to this player",
		})
		return
	}

	if !d.accounts.Authenticate(m.PlayerName, m.Password) {
		c.conn.Write(&protocol.StringReply{
			Type:    protocol.SignInError,
			Message: "The player name or password you entered is incorrect",
		})
		d.logger.Info("rejected sign in", slog.String("client", c.String()))
		return
	}

	c.playerName = m.PlayerName
	c.conn.Write(&protocol.StringReply{Type: protocol.SignInOk, Message: m.PlayerName})
	d.logger.Info("player signed in", slog.String("client", c.String()))
	d.broadcastLobby()
}

func signInErrorMessage(err error, name string) string {
	switch {
	case errors.Is(err, model.ErrInvalidName):
		return "Invalid player name"
	case errors.Is(err, model.ErrNameTaken):
		return fmt.Sprintf("There is already a player named %q", name)
	case errors.Is(err, model.ErrEmptyPassword):
		return "Password may not be empty"
	default:
		return "Could not create player"
	}
}

func (d *Dispatcher) handleChangePassword(ctx context.Context, c *client, m *protocol.ChangePassword) {
	if !c.signedIn() {
		c.conn.Write(&protocol.StringReply{Type: protocol.PasswordChangeResult, Message: "You are not signed in"})
		return
	}

	if err := d.accounts.ChangePassword(ctx, c.playerName, m.NewPassword); err != nil {
		msg := "Could not change password"
		if errors.Is(err, model.ErrEmptyPassword) {
			msg = "Password may not be blank"
		}
		c.conn.Write(&protocol.StringReply{Type: protocol.PasswordChangeResult, Message: msg})
		return
	}

	// Blank message indicates success
	c.conn.Write(&protocol.StringReply{Type: protocol.PasswordChangeResult, Message: ""})
	d.logger.Info("player changed password", slog.String("client", c.String()))
}

func (d *Dispatcher) handleDeleteAccount(ctx context.Context, c *client, m *protocol.DeleteAccount) {
	if !c.signedIn() {
		c.conn.Write(&protocol.StringReply{Type: protocol.DeleteAccountResult, Message: "You are not signed in"})
		return
	}

	if m.Password == "" || !d.accounts.Authenticate(c.playerName, m.Password) {
		c.conn.Write(&protocol.StringReply{Type: protocol.DeleteAccountResult, Message: "Incorrect password"})
		return
	}

	d.leaveAnySession(c)
	if err := d.accounts.Delete(ctx, c.playerName); err != nil {
		c.conn.Write(&protocol.StringReply{Type: protocol.DeleteAccountResult, Message: "Could not delete account"})
		return
	}

	d.logger.Info("player deleted account", slog.String("client", c.String()))
	c.playerName = ""
	c.conn.Write(&protocol.StringReply{Type: protocol.DeleteAccountResult, Message: ""})
	d.broadcastLobby()
}

func (d *Dispatcher) handleLobbyUpdate(c *client, m *protocol.LobbyUpdate) {
	if !c.signedIn() {
		d.logger.Warn("lobby update from unauthenticated client", slog.String("client", c.String()))
		return
	}

	if m.Joining {
		if s := d.sessions.JoinOrHost(c.playerName, m.Players); s != nil {
			d.logger.Info("player joined session",
				slog.String("client", c.String()),
				slog.Any("players", s.Players))
		}
	} else {
		d.sessions.Leave(c.playerName)
		d.logger.Info("player left session", slog.String("client", c.String()))
	}

	d.broadcastLobby()
}

func (d *Dispatcher) handleStartGame(c *client, m *protocol.StartGame) {
	if !c.signedIn() {
		return
	}

	s, err := d.sessions.Start(c.playerName)
	if err != nil {
		d.logger.Info("rejected game start",
			slog.String("client", c.String()),
			slog.String("error", err.Error()))
		return
	}

	seed := m.Seed
	if seed == 0 {
		seed = d.random.Int63()
	}

	// The frozen member order plus the seed is everything a client needs to
	// regenerate the identical deck; the broker never deals cards itself.
	start := &protocol.StartGame{Players: s.Players, Seed: seed}
	for _, member := range s.Players {
		if target := d.clientNamed(member); target != nil {
			target.conn.Write(start)
		}
	}

	d.logger.Info("game started",
		slog.String("client", c.String()),
		slog.Any("players", s.Players))
	d.broadcastLobby()
}

func (d *Dispatcher) handlePlay(c *client, m *protocol.Play) {
	if !c.signedIn() {
		return
	}

	s := d.sessions.SessionOf(c.playerName)
	if s == nil || !s.Playing {
		d.logger.Warn("play outside a running game", slog.String("client", c.String()))
		return
	}

	// Relay verbatim; legality is the clients' concern
	d.relayToOthers(s, c.playerName, m)
}

func (d *Dispatcher) handleGameOver(ctx context.Context, c *client, m *protocol.GameOver) {
	if !c.signedIn() {
		return
	}

	s := d.sessions.CompleteAndRemove(c.playerName)
	if s == nil {
		// Every member reports the result; only the first wins
		d.logger.Info("duplicate game-over ignored", slog.String("client", c.String()))
		return
	}

	if m.Complete {
		for i, member := range s.Players {
			won := !m.Tie && i == m.Winner
			if err := d.accounts.RecordResult(ctx, member, won); err != nil {
				d.logger.Warn("could not record result",
					slog.String("player", member),
					slog.String("error", err.Error()))
			}
		}
	}

	d.logger.Info("game ended",
		slog.String("client", c.String()),
		slog.Bool("complete", m.Complete),
		slog.Any("players", s.Players))
	d.broadcastLobby()
}

func (d *Dispatcher) handleLeaderboardRequest(c *client) {
	c.conn.Write(&protocol.LeaderboardReply{Players: d.accounts.Leaderboard()})
}
