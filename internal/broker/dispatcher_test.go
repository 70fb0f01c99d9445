package broker

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/whistbroker/internal/dependencies/mocks"
	"github.com/mcoot/whistbroker/internal/protocol"
	"github.com/mcoot/whistbroker/internal/services/account"
	"github.com/mcoot/whistbroker/internal/services/session"
	"github.com/mcoot/whistbroker/internal/storage/memory"
	"github.com/mcoot/whistbroker/internal/testutil"
)

// fakeConn queues inbound messages and records everything written to it
type fakeConn struct {
	inbound  []any
	outbound []protocol.Message
	closed   bool
}

var _ Conn = (*fakeConn)(nil)

func (f *fakeConn) queue(msgs ...protocol.Message) {
	for _, m := range msgs {
		f.inbound = append(f.inbound, m)
	}
}

func (f *fakeConn) queueErr(err error) {
	f.inbound = append(f.inbound, err)
}

func (f *fakeConn) TryRead() (protocol.Message, error) {
	if len(f.inbound) == 0 {
		return nil, nil
	}
	next := f.inbound[0]
	f.inbound = f.inbound[1:]
	if err, ok := next.(error); ok {
		return nil, err
	}
	return next.(protocol.Message), nil
}

func (f *fakeConn) Write(msg protocol.Message) {
	f.outbound = append(f.outbound, msg)
}

func (f *fakeConn) Close() {
	f.closed = true
}

func (f *fakeConn) RemoteAddr() string {
	return "fake"
}

// lastReply returns the most recent StringReply written to the connection
func lastReply(f *fakeConn) *protocol.StringReply {
	for i := len(f.outbound) - 1; i >= 0; i-- {
		if reply, ok := f.outbound[i].(*protocol.StringReply); ok {
			return reply
		}
	}
	return nil
}

// writtenOfKind filters the connection's outbound messages by kind
func writtenOfKind(f *fakeConn, kind protocol.Kind) []protocol.Message {
	var matches []protocol.Message
	for _, m := range f.outbound {
		if m.Kind() == kind {
			matches = append(matches, m)
		}
	}
	return matches
}

type DispatcherSuite struct {
	suite.Suite
	ctx        context.Context
	accounts   *account.Service
	sessions   *session.Directory
	random     *mocks.MockRandom
	dispatcher *Dispatcher
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.accounts = account.New(memory.New(), testutil.NopLogger())
	s.accounts.Load(s.ctx)
	s.sessions = session.New()
	s.random = mocks.NewMockRandom()
	s.dispatcher = NewDispatcher(s.accounts, s.sessions, s.random, testutil.NopLogger())
}

func (s *DispatcherSuite) connect() *fakeConn {
	conn := &fakeConn{}
	s.dispatcher.AddClient(conn)
	return conn
}

// signIn registers an account for the name and returns a connection signed
// in to it, with the sign-in traffic cleared out.
func (s *DispatcherSuite) signIn(name string) *fakeConn {
	s.Require().NoError(s.accounts.Create(s.ctx, name, "pw"))
	conn := s.connect()
	conn.queue(&protocol.SignIn{PlayerName: name, Password: "pw"})
	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(conn)
	s.Require().NotNil(reply)
	s.Require().Equal(protocol.SignInOk, reply.Type)
	conn.outbound = nil
	return conn
}

// startedGame signs in two players, seats them together and starts the game
func (s *DispatcherSuite) startedGame() (alice, bob *fakeConn) {
	alice = s.signIn("Alice")
	bob = s.signIn("Bob")

	alice.queue(&protocol.LobbyUpdate{Joining: true})
	bob.queue(&protocol.LobbyUpdate{Players: []string{"Alice"}, Joining: true})
	bob.queue(&protocol.StartGame{Seed: 42})
	s.dispatcher.DrainAll(s.ctx)

	alice.outbound = nil
	bob.outbound = nil
	return alice, bob
}

// Sign-in tests

func (s *DispatcherSuite) TestSignInNewAccount() {
	conn := s.connect()
	conn.queue(&protocol.SignIn{PlayerName: "Alice", Password: "pw", NewAccount: true})

	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(conn)
	s.Require().NotNil(reply)
	s.Equal(protocol.SignInOk, reply.Type)
	s.Equal("Alice", reply.Message)
	s.True(s.accounts.Exists("Alice"))
}

func (s *DispatcherSuite) TestSignInNewAccountNameTaken() {
	s.Require().NoError(s.accounts.Create(s.ctx, "Alice", "pw"))
	conn := s.connect()
	conn.queue(&protocol.SignIn{PlayerName: "Alice", Password: "other", NewAccount: true})

	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(conn)
	s.Require().NotNil(reply)
	s.Equal(protocol.SignInError, reply.Type)
	s.Equal(`There is already a player named "Alice"`, reply.Message)
}

func (s *DispatcherSuite) TestSignInNewAccountInvalidName() {
	conn := s.connect()
	conn.queue(&protocol.SignIn{PlayerName: "Alice!", Password: "pw", NewAccount: true})

	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(conn)
	s.Require().NotNil(reply)
	s.Equal(protocol.SignInError, reply.Type)
	s.Equal("Invalid player name", reply.Message)
}

func (s *DispatcherSuite) TestSignInNewAccountEmptyPassword() {
	conn := s.connect()
	conn.queue(&protocol.SignIn{PlayerName: "Alice", Password: "", NewAccount: true})

	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(conn)
	s.Require().NotNil(reply)
	s.Equal(protocol.SignInError, reply.Type)
	s.Equal("Password may not be empty", reply.Message)
}

func (s *DispatcherSuite) TestSignInWrongPassword() {
	s.Require().NoError(s.accounts.Create(s.ctx, "Alice", "pw"))
	conn := s.connect()
	conn.queue(&protocol.SignIn{PlayerName: "Alice", Password: "wrong"})

	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(conn)
	s.Require().NotNil(reply)
	s.Equal(protocol.SignInError, reply.Type)
	s.Equal("The player name or password you entered is incorrect", reply.Message)
}

func (s *DispatcherSuite) TestSignInRejectsSecondConnection() {
	s.signIn("Alice")

	second := s.connect()
	second.queue(&protocol.SignIn{PlayerName: "Alice", Password: "pw"})
	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(second)
	s.Require().NotNil(reply)
	s.Equal(protocol.SignInError, reply.Type)
	s.Equal("Another user is signed in to this player", reply.Message)
}

// Lobby tests

func (s *DispatcherSuite) TestHostingBroadcastsLobbyState() {
	alice := s.signIn("Alice")
	bob := s.signIn("Bob")
	alice.outbound = nil
	bob.outbound = nil

	alice.queue(&protocol.LobbyUpdate{Joining: true})
	s.dispatcher.DrainAll(s.ctx)

	// Alice, now seated, sees her own session
	updates := writtenOfKind(alice, protocol.KindLobbyUpdate)
	s.Require().Len(updates, 1)
	s.Equal([]string{"Alice"}, updates[0].(*protocol.LobbyUpdate).Players)

	// Bob, unseated, sees the full joinable list
	lists := writtenOfKind(bob, protocol.KindLobbyList)
	s.Require().Len(lists, 1)
	list := lists[0].(*protocol.LobbyList)
	s.Require().Len(list.Sessions, 1)
	s.Equal([]string{"Alice"}, list.Sessions[0].Players)
}

func (s *DispatcherSuite) TestLeavingSessionBroadcasts() {
	alice := s.signIn("Alice")
	alice.queue(&protocol.LobbyUpdate{Joining: true})
	s.dispatcher.DrainAll(s.ctx)
	alice.outbound = nil

	alice.queue(&protocol.LobbyUpdate{Joining: false})
	s.dispatcher.DrainAll(s.ctx)

	s.Nil(s.sessions.SessionOf("Alice"))
	// Unseated again, Alice gets the (now empty) joinable list
	s.Len(writtenOfKind(alice, protocol.KindLobbyList), 1)
}

func (s *DispatcherSuite) TestLobbyUpdateFromUnauthenticatedClientIgnored() {
	conn := s.connect()
	conn.queue(&protocol.LobbyUpdate{Joining: true})

	s.dispatcher.DrainAll(s.ctx)

	s.Empty(conn.outbound)
	s.Empty(s.sessions.ListJoinable())
}

// Game lifecycle tests

func (s *DispatcherSuite) TestStartGameBroadcastsFrozenOrderAndSeed() {
	alice := s.signIn("Alice")
	bob := s.signIn("Bob")
	alice.queue(&protocol.LobbyUpdate{Joining: true})
	bob.queue(&protocol.LobbyUpdate{Players: []string{"Alice"}, Joining: true})
	s.dispatcher.DrainAll(s.ctx)
	alice.outbound = nil
	bob.outbound = nil

	bob.queue(&protocol.StartGame{Seed: 42})
	s.dispatcher.DrainAll(s.ctx)

	for _, conn := range []*fakeConn{alice, bob} {
		starts := writtenOfKind(conn, protocol.KindStartGame)
		s.Require().Len(starts, 1)
		start := starts[0].(*protocol.StartGame)
		s.Equal([]string{"Alice", "Bob"}, start.Players)
		s.Equal(int64(42), start.Seed)
	}

	// Playing connections are excluded from lobby broadcasts
	s.Empty(writtenOfKind(alice, protocol.KindLobbyList))
	s.Empty(writtenOfKind(bob, protocol.KindLobbyList))
}

func (s *DispatcherSuite) TestStartGameDrawsSeedWhenUnset() {
	s.random.QueueInt63(99)
	alice := s.signIn("Alice")
	bob := s.signIn("Bob")
	alice.queue(&protocol.LobbyUpdate{Joining: true})
	bob.queue(&protocol.LobbyUpdate{Players: []string{"Alice"}, Joining: true})
	bob.queue(&protocol.StartGame{})
	s.dispatcher.DrainAll(s.ctx)

	starts := writtenOfKind(alice, protocol.KindStartGame)
	s.Require().Len(starts, 1)
	s.Equal(int64(99), starts[0].(*protocol.StartGame).Seed)
}

func (s *DispatcherSuite) TestStartGameAloneRejected() {
	alice := s.signIn("Alice")
	alice.queue(&protocol.LobbyUpdate{Joining: true})
	alice.queue(&protocol.StartGame{Seed: 1})
	s.dispatcher.DrainAll(s.ctx)

	s.Empty(writtenOfKind(alice, protocol.KindStartGame))
	s.False(s.sessions.SessionOf("Alice").Playing)
}

func (s *DispatcherSuite) TestPlayRelaysToOtherMembers() {
	alice, bob := s.startedGame()

	alice.queue(&protocol.Play{Card: 7})
	s.dispatcher.DrainAll(s.ctx)

	plays := writtenOfKind(bob, protocol.KindPlay)
	s.Require().Len(plays, 1)
	s.Equal(7, plays[0].(*protocol.Play).Card)

	// Not echoed back to the sender
	s.Empty(writtenOfKind(alice, protocol.KindPlay))
}

func (s *DispatcherSuite) TestPlayOutsideGameIgnored() {
	alice := s.signIn("Alice")
	bob := s.signIn("Bob")
	alice.outbound = nil
	bob.outbound = nil

	alice.queue(&protocol.Play{Card: 7})
	s.dispatcher.DrainAll(s.ctx)

	s.Empty(writtenOfKind(bob, protocol.KindPlay))
}

func (s *DispatcherSuite) TestGameOverRecordsResultOnce() {
	alice, bob := s.startedGame()

	// Every member reports the same result
	alice.queue(&protocol.GameOver{Complete: true, Winner: 0})
	bob.queue(&protocol.GameOver{Complete: true, Winner: 0})
	s.dispatcher.DrainAll(s.ctx)

	entries := s.accounts.Leaderboard()
	s.Require().Len(entries, 2)
	for _, e := range entries {
		s.Equal(1, e.GamesPlayed)
		if e.Name == "Alice" {
			s.Equal(1, e.GamesWon)
		} else {
			s.Equal(0, e.GamesWon)
		}
	}
	s.Nil(s.sessions.SessionOf("Alice"))
}

func (s *DispatcherSuite) TestGameOverTieNobodyWins() {
	alice, _ := s.startedGame()

	alice.queue(&protocol.GameOver{Complete: true, Tie: true})
	s.dispatcher.DrainAll(s.ctx)

	for _, e := range s.accounts.Leaderboard() {
		s.Equal(1, e.GamesPlayed)
		s.Equal(0, e.GamesWon)
	}
}

func (s *DispatcherSuite) TestGameOverIncompleteLeavesTallies() {
	alice, _ := s.startedGame()

	alice.queue(&protocol.GameOver{Complete: false})
	s.dispatcher.DrainAll(s.ctx)

	for _, e := range s.accounts.Leaderboard() {
		s.Equal(0, e.GamesPlayed)
	}
	s.Nil(s.sessions.SessionOf("Alice"))
}

func (s *DispatcherSuite) TestDisconnectMidGame() {
	alice, bob := s.startedGame()

	alice.queueErr(ErrConnectionClosed)
	s.dispatcher.DrainAll(s.ctx)

	s.True(alice.closed)

	// Survivors are told the game ended without a result
	overs := writtenOfKind(bob, protocol.KindGameOver)
	s.Require().Len(overs, 1)
	s.False(overs[0].(*protocol.GameOver).Complete)

	for _, e := range s.accounts.Leaderboard() {
		s.Equal(0, e.GamesPlayed)
	}
	s.Nil(s.sessions.SessionOf("Bob"))
}

func (s *DispatcherSuite) TestDisconnectWhilePendingFreesSeat() {
	alice := s.signIn("Alice")
	bob := s.signIn("Bob")
	alice.queue(&protocol.LobbyUpdate{Joining: true})
	bob.queue(&protocol.LobbyUpdate{Players: []string{"Alice"}, Joining: true})
	s.dispatcher.DrainAll(s.ctx)

	alice.queueErr(ErrConnectionClosed)
	s.dispatcher.DrainAll(s.ctx)

	sess := s.sessions.SessionOf("Bob")
	s.Require().NotNil(sess)
	s.Equal([]string{"Bob"}, sess.Players)
}

// Connection handling tests

func (s *DispatcherSuite) TestUnknownKindKeepsConnectionAlive() {
	conn := s.connect()
	conn.queueErr(fmt.Errorf("decoding frame: %w", protocol.ErrUnknownKind))
	conn.queue(&protocol.SignIn{PlayerName: "Alice", Password: "pw", NewAccount: true})

	s.dispatcher.DrainAll(s.ctx)

	s.False(conn.closed)
	reply := lastReply(conn)
	s.Require().NotNil(reply)
	s.Equal(protocol.SignInOk, reply.Type)
}

func (s *DispatcherSuite) TestServerOnlyMessageFromClientIgnored() {
	alice := s.signIn("Alice")

	alice.queue(&protocol.StringReply{Type: protocol.SignInOk, Message: "x"})
	s.dispatcher.DrainAll(s.ctx)

	s.False(alice.closed)
}

func (s *DispatcherSuite) TestCloseMessageDisconnects() {
	alice := s.signIn("Alice")

	alice.queue(&protocol.Close{})
	s.dispatcher.DrainAll(s.ctx)

	s.True(alice.closed)

	// The name is free to sign in again
	second := s.connect()
	second.queue(&protocol.SignIn{PlayerName: "Alice", Password: "pw"})
	s.dispatcher.DrainAll(s.ctx)
	s.Equal(protocol.SignInOk, lastReply(second).Type)
}

func (s *DispatcherSuite) TestCloseAllNotifiesClients() {
	alice := s.signIn("Alice")

	s.dispatcher.CloseAll()

	s.True(alice.closed)
	s.Len(writtenOfKind(alice, protocol.KindClose), 1)
}

// Account maintenance tests

func (s *DispatcherSuite) TestChangePassword() {
	alice := s.signIn("Alice")

	alice.queue(&protocol.ChangePassword{NewPassword: "pw2"})
	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(alice)
	s.Require().NotNil(reply)
	s.Equal(protocol.PasswordChangeResult, reply.Type)
	s.Empty(reply.Message)
	s.True(s.accounts.Authenticate("Alice", "pw2"))
}

func (s *DispatcherSuite) TestChangePasswordRejectsBlank() {
	alice := s.signIn("Alice")

	alice.queue(&protocol.ChangePassword{NewPassword: ""})
	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(alice)
	s.Require().NotNil(reply)
	s.Equal("Password may not be blank", reply.Message)
	s.True(s.accounts.Authenticate("Alice", "pw"))
}

func (s *DispatcherSuite) TestChangePasswordRequiresSignIn() {
	conn := s.connect()
	conn.queue(&protocol.ChangePassword{NewPassword: "pw2"})

	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(conn)
	s.Require().NotNil(reply)
	s.Equal("You are not signed in", reply.Message)
}

func (s *DispatcherSuite) TestDeleteAccount() {
	alice := s.signIn("Alice")

	alice.queue(&protocol.DeleteAccount{Password: "pw"})
	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(alice)
	s.Require().NotNil(reply)
	s.Equal(protocol.DeleteAccountResult, reply.Type)
	s.Empty(reply.Message)
	s.False(s.accounts.Exists("Alice"))
	s.False(alice.closed)

	// The connection is unbound; a fresh account can be made on it
	alice.outbound = nil
	alice.queue(&protocol.SignIn{PlayerName: "Alice", Password: "new", NewAccount: true})
	s.dispatcher.DrainAll(s.ctx)
	s.Equal(protocol.SignInOk, lastReply(alice).Type)
}

func (s *DispatcherSuite) TestDeleteAccountWrongPassword() {
	alice := s.signIn("Alice")

	alice.queue(&protocol.DeleteAccount{Password: "wrong"})
	s.dispatcher.DrainAll(s.ctx)

	reply := lastReply(alice)
	s.Require().NotNil(reply)
	s.Equal("Incorrect password", reply.Message)
	s.True(s.accounts.Exists("Alice"))
}

// Leaderboard tests

func (s *DispatcherSuite) TestLeaderboardRequest() {
	s.Require().NoError(s.accounts.Create(s.ctx, "Carol", "pw"))
	alice := s.signIn("Alice")

	alice.queue(&protocol.LeaderboardRequest{})
	s.dispatcher.DrainAll(s.ctx)

	replies := writtenOfKind(alice, protocol.KindLeaderboardReply)
	s.Require().Len(replies, 1)
	entries := replies[0].(*protocol.LeaderboardReply).Players
	s.Require().Len(entries, 2)
	s.Equal("Carol", entries[0].Name)
	s.Equal("Alice", entries[1].Name)
}
