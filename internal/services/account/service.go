// Package account implements the authoritative table of registered players
// and their win/loss tallies. Every mutation is persisted immediately by
// rewriting the whole table through the configured store.
package account

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/whistbroker/internal/model"
	"github.com/mcoot/whistbroker/internal/storage"
)

// Service manages the in-memory account table and its persistence.
// All writers run on the broker goroutine; the RWMutex exists for concurrent
// readers (the admin API and leaderboard snapshots).
type Service struct {
	store  storage.Store
	logger *slog.Logger

	mu       sync.RWMutex
	accounts []*model.PlayerAccount
}

// New creates a new account service
func New(store storage.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Load populates the table from the store. Missing data starts an empty
// table; a read or decode failure is logged and also starts empty, so a
// damaged save file never prevents startup.
func (s *Service) Load(ctx context.Context) {
	accounts, err := s.store.LoadAccounts(ctx)
	if err != nil {
		s.logger.Warn("could not load player accounts, starting empty",
			slog.String("error", err.Error()))
		accounts = []*model.PlayerAccount{}
	}

	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()
}

// persist rewrites the whole table. Failures are logged and do not undo the
// in-memory mutation, matching the table's best-effort durability contract.
func (s *Service) persist(ctx context.Context) {
	if err := s.store.SaveAccounts(ctx, s.accounts); err != nil {
		s.logger.Error("failed to save player accounts",
			slog.String("error", err.Error()))
	}
}

// findByName returns the account with the given name. Callers must hold mu.
func (s *Service) findByName(name string) *model.PlayerAccount {
	for _, a := range s.accounts {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Exists reports whether an account with the given name is registered
func (s *Service) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByName(name) != nil
}

// Create registers a new account and persists the table. The name must be
// non-empty, contain only letters/digits/spaces, and be unused (case
// sensitive); the password must be non-empty.
func (s *Service) Create(ctx context.Context, name, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !model.IsValidPlayerName(name) {
		return model.ErrInvalidName
	}
	if s.findByName(name) != nil {
		return model.ErrNameTaken
	}
	if password == "" {
		return model.ErrEmptyPassword
	}

	s.accounts = append(s.accounts, &model.PlayerAccount{
		Name:     name,
		Password: password,
	})
	s.persist(ctx)
	return nil
}

// Authenticate reports whether the given credentials match a registered
// account. Comparison is an exact clear-text match by design.
func (s *Service) Authenticate(name, password string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := s.findByName(name)
	return a != nil && a.Password == password
}

// RecordResult increments gamesPlayed for the named player, and gamesWon as
// well if won is set, then persists.
func (s *Service) RecordResult(ctx context.Context, name string, won bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.findByName(name)
	if a == nil {
		return model.ErrAccountNotFound
	}

	a.RecordResult(won)
	s.persist(ctx)
	return nil
}

// ChangePassword sets a new password for the named player and persists
func (s *Service) ChangePassword(ctx context.Context, name, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if newPassword == "" {
		return model.ErrEmptyPassword
	}

	a := s.findByName(name)
	if a == nil {
		return model.ErrAccountNotFound
	}

	a.Password = newPassword
	s.persist(ctx)
	return nil
}

// Delete removes the named account and persists
func (s *Service) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.accounts {
		if a.Name == name {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			s.persist(ctx)
			return nil
		}
	}
	return model.ErrAccountNotFound
}

// Leaderboard returns every account with the password stripped, in
// registration order.
func (s *Service) Leaderboard() []model.LeaderboardEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]model.LeaderboardEntry, len(s.accounts))
	for i, a := range s.accounts {
		entries[i] = model.LeaderboardEntry{
			Name:        a.Name,
			GamesWon:    a.GamesWon,
			GamesPlayed: a.GamesPlayed,
		}
	}
	return entries
}
