package broker

import (
	"bufio"
	"encoding/binary"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/mcoot/whistbroker/internal/protocol"
)

// ErrConnectionClosed signals that the peer disconnected or the stream is
// unreadable. A corrupt stream is deliberately folded into this error rather
// than given a recovery path; the connection is torn down either way.
var ErrConnectionClosed = errors.New("connection closed")

const (
	// readPollTimeout is how long TryRead waits for data before reporting
	// "no message this tick". It is the non-blocking substitute for
	// readiness-based I/O and bounds the broker's responsiveness.
	readPollTimeout = 50 * time.Millisecond

	// writeTimeout bounds a single outbound frame write
	writeTimeout = 10 * time.Second
)

// Conn is one client connection as the dispatcher sees it
type Conn interface {
	// TryRead returns the next pending message, (nil, nil) when none is
	// pending, an error wrapping protocol.ErrUnknownKind for a well-formed
	// frame of unrecognised kind, or ErrConnectionClosed.
	TryRead() (protocol.Message, error)

	// Write sends a message. Failures are logged and swallowed; teardown
	// only ever happens through a read failure, keeping it in one place.
	Write(msg protocol.Message)

	// Close closes the underlying transport
	Close()

	// RemoteAddr describes the peer for logging
	RemoteAddr() string
}

// netConn wraps a TCP connection with polled, frame-preserving reads. The
// buffered reader retains partial frames between ticks so a slow sender is
// never misread as corrupt.
type netConn struct {
	conn   net.Conn
	reader *bufio.Reader
	logger *slog.Logger
}

// Ensure netConn implements Conn
var _ Conn = (*netConn)(nil)

func newNetConn(conn net.Conn, logger *slog.Logger) *netConn {
	return &netConn{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, protocol.MaxFrameSize+protocol.HeaderSize),
		logger: logger,
	}
}

func (c *netConn) TryRead() (protocol.Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(readPollTimeout)); err != nil {
		return nil, ErrConnectionClosed
	}

	header, err := c.reader.Peek(protocol.HeaderSize)
	if err != nil {
		if isTimeout(err) {
			return nil, nil
		}
		return nil, ErrConnectionClosed
	}

	length := int(binary.BigEndian.Uint32(header))
	if length > protocol.MaxFrameSize {
		c.logger.Warn("oversized frame, treating stream as corrupt",
			slog.String("remote_addr", c.RemoteAddr()),
			slog.Int("length", length))
		return nil, ErrConnectionClosed
	}

	frame, err := c.reader.Peek(protocol.HeaderSize + length)
	if err != nil {
		if isTimeout(err) {
			// Partial frame; the buffered bytes are kept for next tick
			return nil, nil
		}
		return nil, ErrConnectionClosed
	}

	msg, decodeErr := protocol.Decode(frame[protocol.HeaderSize:])

	// The frame is consumed even when it failed to decode
	if _, err := c.reader.Discard(protocol.HeaderSize + length); err != nil {
		return nil, ErrConnectionClosed
	}

	if decodeErr != nil {
		if errors.Is(decodeErr, protocol.ErrUnknownKind) {
			return nil, decodeErr
		}
		c.logger.Warn("undecodable frame, treating stream as corrupt",
			slog.String("remote_addr", c.RemoteAddr()),
			slog.String("error", decodeErr.Error()))
		return nil, ErrConnectionClosed
	}

	return msg, nil
}

func (c *netConn) Write(msg protocol.Message) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return
	}
	if err := protocol.WriteFrame(c.conn, msg); err != nil {
		c.logger.Warn("network write error",
			slog.String("remote_addr", c.RemoteAddr()),
			slog.String("error", err.Error()))
	}
}

func (c *netConn) Close() {
	_ = c.conn.Close()
}

func (c *netConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
