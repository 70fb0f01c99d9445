package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeSignIn(t *testing.T) {
	data, err := Encode(SignIn{PlayerName: "Alice", Password: "pw1", NewAccount: true})
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)

	signIn, ok := msg.(*SignIn)
	require.True(t, ok)
	assert.Equal(t, "Alice", signIn.PlayerName)
	assert.Equal(t, "pw1", signIn.Password)
	assert.True(t, signIn.NewAccount)
}

func TestDecodeUnknownKind(t *testing.T) {
	data, err := json.Marshal(Envelope{Kind: "teleport"})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeEmptyPayload(t *testing.T) {
	data, err := json.Marshal(Envelope{Kind: KindLeaderboardRequest})
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindLeaderboardRequest, msg.Kind())
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	out := []Message{
		StartGame{Players: []string{"Alice", "Bob"}, Seed: 42},
		Play{Card: 7},
		GameOver{Complete: true, Winner: 1},
		Close{},
	}
	for _, msg := range out {
		require.NoError(t, WriteFrame(&buf, msg))
	}

	for _, want := range out {
		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, want.Kind(), got.Kind())
	}
	assert.Zero(t, buf.Len())
}

func TestReadFrameRejectsOversizeHeader(t *testing.T) {
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, MaxFrameSize+1)

	_, err := ReadFrame(bytes.NewReader(header))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Play{Card: 3}))

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := ReadFrame(bytes.NewReader(truncated))
	assert.Error(t, err)
}

func TestStartGamePreservesMemberOrder(t *testing.T) {
	data, err := Encode(StartGame{Players: []string{"Carol", "Alice", "Bob"}, Seed: -7})
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)

	start := msg.(*StartGame)
	assert.Equal(t, []string{"Carol", "Alice", "Bob"}, start.Players)
	assert.Equal(t, int64(-7), start.Seed)
}
