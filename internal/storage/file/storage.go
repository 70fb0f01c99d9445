package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcoot/whistbroker/internal/model"
	"github.com/mcoot/whistbroker/internal/storage"
)

// Storage is a flat-file implementation of the storage interface. The account
// table is one JSON document, rewritten in place on every save. A crash
// mid-write can corrupt or lose the file; that is an accepted risk of the
// format, not something this layer papers over.
type Storage struct {
	path string
}

// New creates a file storage instance writing to the given path
func New(path string) *Storage {
	return &Storage{path: path}
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

func (s *Storage) LoadAccounts(ctx context.Context) ([]*model.PlayerAccount, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []*model.PlayerAccount{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account file: %w", err)
	}

	var accounts []*model.PlayerAccount
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode account file: %w", err)
	}
	return accounts, nil
}

func (s *Storage) SaveAccounts(ctx context.Context, accounts []*model.PlayerAccount) error {
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create save directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write account file: %w", err)
	}
	return nil
}
