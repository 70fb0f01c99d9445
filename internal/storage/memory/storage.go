package memory

import (
	"context"
	"sync"

	"github.com/mcoot/whistbroker/internal/model"
	"github.com/mcoot/whistbroker/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu       sync.RWMutex
	accounts []*model.PlayerAccount
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{}
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

func (s *Storage) LoadAccounts(ctx context.Context) ([]*model.PlayerAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]*model.PlayerAccount, len(s.accounts))
	for i, a := range s.accounts {
		copied := *a
		accounts[i] = &copied
	}
	return accounts, nil
}

func (s *Storage) SaveAccounts(ctx context.Context, accounts []*model.PlayerAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = make([]*model.PlayerAccount, len(accounts))
	for i, a := range accounts {
		copied := *a
		s.accounts[i] = &copied
	}
	return nil
}
