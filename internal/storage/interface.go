package storage

import (
	"context"

	"github.com/mcoot/whistbroker/internal/model"
)

// Store persists the player account table as a single flat record. The whole
// table is rewritten on every save; there is no append log and no atomicity
// guarantee. A backend with no saved data returns an empty table, not an
// error.
type Store interface {
	LoadAccounts(ctx context.Context) ([]*model.PlayerAccount, error)
	SaveAccounts(ctx context.Context, accounts []*model.PlayerAccount) error
}
