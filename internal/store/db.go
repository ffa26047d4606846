// Package store provides the durable half of the provenance engine: a
// badger-backed transactional key-value store hosting the justification
// ledger and the label resolver. All four ledger keyspaces live in one
// physical store so that every write is atomic across the primary table
// and its secondary indices.
package store

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Config holds configuration for the underlying badger store.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is set.
	Path string

	// InMemory disables disk persistence. Used by tests.
	InMemory bool

	// SyncWrites forces every commit to reach disk before returning.
	SyncWrites bool

	// GCInterval is how often value-log garbage collection runs.
	// Zero disables the GC runner.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio before a GC pass rewrites
	// a value-log file.
	GCDiscardRatio float64

	Logger *zap.Logger
}

// DefaultConfig returns production defaults for a store at the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts zap to badger's Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.logger.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.logger.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.logger.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.logger.Debugf(format, args...) }

// DB wraps a badger instance with lifecycle management.
type DB struct {
	*badger.DB
	cfg Config
}

// Open opens the store, creating the directory if needed.
func Open(cfg Config) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("store path is required for a persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{logger: cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &DB{DB: db, cfg: cfg}, nil
}

// OpenInMemory opens a throwaway in-memory store for tests.
func OpenInMemory() (*DB, error) {
	return Open(InMemoryConfig())
}

// GCService runs periodic value-log garbage collection in the background,
// following the engine's Start/Stop background-service convention.
type GCService struct {
	db     *DB
	logger *zap.Logger

	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewGCService(db *DB, logger *zap.Logger) *GCService {
	interval := db.cfg.GCInterval
	ratio := db.cfg.GCDiscardRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	return &GCService{
		db:       db,
		logger:   logger,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
	}
}

// Start runs garbage collection on a periodic schedule in a background
// goroutine. In-memory stores and a zero interval disable it.
func (s *GCService) Start() {
	if s.interval <= 0 || s.db.cfg.InMemory {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("store gc started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				s.run()
			case <-s.stopCh:
				s.logger.Info("store gc stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the GC loop.
func (s *GCService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *GCService) run() {
	err := s.db.RunValueLogGC(s.ratio)
	switch {
	case err == nil:
		s.logger.Debug("store value log gc completed")
	case errors.Is(err, badger.ErrNoRewrite):
		// nothing to collect
	default:
		s.logger.Warn("store value log gc failed", zap.Error(err))
	}
}
