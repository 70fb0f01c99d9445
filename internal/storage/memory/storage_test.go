package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/whistbroker/internal/model"
)

func TestLoadAccountsInitiallyEmpty(t *testing.T) {
	s := New()

	accounts, err := s.LoadAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveAccounts(ctx, []*model.PlayerAccount{
		{Name: "Alice", Password: "pw1", GamesWon: 1, GamesPlayed: 2},
	}))

	loaded, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Alice", loaded[0].Name)
	assert.Equal(t, 1, loaded[0].GamesWon)
}

func TestLoadAccountsReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveAccounts(ctx, []*model.PlayerAccount{
		{Name: "Alice", Password: "pw1"},
	}))

	first, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	first[0].GamesWon = 99

	second, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, second[0].GamesWon)
}
