package cli

import (
	"fmt"
	"net"
	"time"

	"github.com/mcoot/whistbroker/internal/model"
	"github.com/mcoot/whistbroker/internal/protocol"
)

// Client is a protocol client for one broker connection
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to the broker
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker at %s: %w", addr, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Close announces the disconnect and closes the connection
func (c *Client) Close() error {
	_ = c.send(protocol.Close{})
	return c.conn.Close()
}

func (c *Client) send(msg protocol.Message) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	return protocol.WriteFrame(c.conn, msg)
}

func (c *Client) receive() (protocol.Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	return protocol.ReadFrame(c.conn)
}

// awaitReply reads until a StringReply of the wanted type arrives, skipping
// the lobby broadcasts the broker pushes to signed-in connections.
func (c *Client) awaitReply(want protocol.StringReplyType) (*protocol.StringReply, error) {
	for {
		msg, err := c.receive()
		if err != nil {
			return nil, fmt.Errorf("failed to read reply: %w", err)
		}
		if reply, ok := msg.(*protocol.StringReply); ok && reply.Type == want {
			return reply, nil
		}
	}
}

// SignIn authenticates the connection, creating the account when newAccount
// is set. A non-nil error carries the broker's rejection message.
func (c *Client) SignIn(name, password string, newAccount bool) error {
	if err := c.send(protocol.SignIn{PlayerName: name, Password: password, NewAccount: newAccount}); err != nil {
		return err
	}

	for {
		msg, err := c.receive()
		if err != nil {
			return fmt.Errorf("failed to read sign-in reply: %w", err)
		}
		reply, ok := msg.(*protocol.StringReply)
		if !ok {
			continue
		}
		switch reply.Type {
		case protocol.SignInOk:
			return nil
		case protocol.SignInError:
			return fmt.Errorf("%s", reply.Message)
		}
	}
}

// ChangePassword sets a new password for the signed-in player
func (c *Client) ChangePassword(newPassword string) error {
	if err := c.send(protocol.ChangePassword{NewPassword: newPassword}); err != nil {
		return err
	}

	reply, err := c.awaitReply(protocol.PasswordChangeResult)
	if err != nil {
		return err
	}
	if reply.Message != "" {
		return fmt.Errorf("%s", reply.Message)
	}
	return nil
}

// DeleteAccount deletes the signed-in player's account
func (c *Client) DeleteAccount(password string) error {
	if err := c.send(protocol.DeleteAccount{Password: password}); err != nil {
		return err
	}

	reply, err := c.awaitReply(protocol.DeleteAccountResult)
	if err != nil {
		return err
	}
	if reply.Message != "" {
		return fmt.Errorf("%s", reply.Message)
	}
	return nil
}

// Leaderboard fetches the current player stats
func (c *Client) Leaderboard() ([]model.LeaderboardEntry, error) {
	if err := c.send(protocol.LeaderboardRequest{}); err != nil {
		return nil, err
	}

	for {
		msg, err := c.receive()
		if err != nil {
			return nil, fmt.Errorf("failed to read leaderboard reply: %w", err)
		}
		if reply, ok := msg.(*protocol.LeaderboardReply); ok {
			return reply.Players, nil
		}
	}
}
