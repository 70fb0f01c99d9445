package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/whistbroker/internal/model"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewWithClient(client)
}

func TestLoadAccountsMissingKeyStartsEmpty(t *testing.T) {
	s := newTestStorage(t)

	accounts, err := s.LoadAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAccounts(ctx, []*model.PlayerAccount{
		{Name: "Alice", Password: "pw1", GamesWon: 4, GamesPlayed: 9},
		{Name: "Bob", Password: "pw2"},
	}))

	loaded, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "Alice", loaded[0].Name)
	assert.Equal(t, 4, loaded[0].GamesWon)
	assert.Equal(t, 9, loaded[0].GamesPlayed)
}

func TestSaveOverwritesWholesale(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAccounts(ctx, []*model.PlayerAccount{
		{Name: "Alice", Password: "pw1"},
	}))
	require.NoError(t, s.SaveAccounts(ctx, []*model.PlayerAccount{}))

	loaded, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadAccountsCorruptValueErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set(accountsKey, "not json"))

	s := NewWithClient(client)
	_, err := s.LoadAccounts(context.Background())
	assert.Error(t, err)
}
