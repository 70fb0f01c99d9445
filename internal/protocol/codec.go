package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single message on the wire. Anything larger is
// treated as a corrupt stream.
const MaxFrameSize = 64 * 1024

// HeaderSize is the length of the frame header: a big-endian uint32 byte count.
const HeaderSize = 4

// Codec errors
var (
	ErrUnknownKind   = errors.New("unknown message kind")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// Envelope is the outer wire form of every message.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode serialises a message to envelope JSON.
func Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return json.Marshal(Envelope{
		Kind:    msg.Kind(),
		Payload: payload,
	})
}

// Decode parses envelope JSON into the concrete message for its kind.
// An unrecognised kind returns an error wrapping ErrUnknownKind; the bytes
// themselves were well-formed, so callers should not treat this as stream
// corruption.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	var msg Message
	switch env.Kind {
	case KindSignIn:
		msg = &SignIn{}
	case KindStringReply:
		msg = &StringReply{}
	case KindChangePassword:
		msg = &ChangePassword{}
	case KindDeleteAccount:
		msg = &DeleteAccount{}
	case KindLobbyUpdate:
		msg = &LobbyUpdate{}
	case KindLobbyList:
		msg = &LobbyList{}
	case KindStartGame:
		msg = &StartGame{}
	case KindPlay:
		msg = &Play{}
	case KindGameOver:
		msg = &GameOver{}
	case KindLeaderboardRequest:
		msg = &LeaderboardRequest{}
	case KindLeaderboardReply:
		msg = &LeaderboardReply{}
	case KindClose:
		msg = &Close{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Kind, err)
		}
	}

	return msg, nil
}

// WriteFrame writes one length-prefixed message to w.
func WriteFrame(w io.Writer, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, uint32(len(data)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}

// ReadFrame blocks until one full message has been read from r and decoded.
func ReadFrame(r io.Reader) (Message, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header)
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	return Decode(data)
}
