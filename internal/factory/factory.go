// Package factory wires the application's components together.
package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/mcoot/whistbroker/internal/broker"
	"github.com/mcoot/whistbroker/internal/dependencies/random"
	"github.com/mcoot/whistbroker/internal/services/account"
	"github.com/mcoot/whistbroker/internal/services/session"
	"github.com/mcoot/whistbroker/internal/storage"
	"github.com/mcoot/whistbroker/internal/storage/file"
	"github.com/mcoot/whistbroker/internal/storage/memory"
	redisstorage "github.com/mcoot/whistbroker/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeFile   = "file"
	StorageTypeRedis  = "redis"
)

// DefaultSavePath is where file storage keeps the account table
const DefaultSavePath = "data/players.json"

// App contains all wired application components
type App struct {
	Storage storage.Store
	Random  random.Random

	AccountService   *account.Service
	SessionDirectory *session.Directory
	Dispatcher       *broker.Dispatcher
}

// Config holds configuration for the application factory
type Config struct {
	// StorageType selects the storage backend ("memory", "file" or "redis")
	// If empty, defaults to "file"
	StorageType string
	// SavePath is the account file location for file storage
	// If empty, defaults to DefaultSavePath
	SavePath string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeFile
	}

	var store storage.Store
	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeFile:
		savePath := cfg.SavePath
		if savePath == "" {
			savePath = DefaultSavePath
		}
		store = file.New(savePath)
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'file' or 'redis'")
	}

	return newWithDependencies(store, random.New(), logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Store, rnd random.Random, logger *slog.Logger) *App {
	accountService := account.New(store, logger)
	sessionDirectory := session.New()
	dispatcher := broker.NewDispatcher(accountService, sessionDirectory, rnd, logger)

	return &App{
		Storage:          store,
		Random:           rnd,
		AccountService:   accountService,
		SessionDirectory: sessionDirectory,
		Dispatcher:       dispatcher,
	}
}
