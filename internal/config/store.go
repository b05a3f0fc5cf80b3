package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"fsguard/internal/metrics"
	"fsguard/internal/safety"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Store loads the config once on first use and caches it, together with
// the policy built from it, until Reload.
type Store struct {
	path   string
	logger zerolog.Logger

	mu     sync.Mutex
	loaded bool
	cfg    *Config
	policy *safety.Policy
	err    error
}

// NewStore returns a store for the config file at path. An empty path
// uses DefaultPath.
func NewStore(path string, logger zerolog.Logger) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the config file location.
func (s *Store) Path() string {
	return s.path
}

// Config returns the cached config, loading it on first use.
func (s *Store) Config() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return s.cfg, s.err
}

// Policy returns the cached policy, loading the config on first use.
func (s *Store) Policy() (*safety.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return s.policy, s.err
}

// Reload discards the cache and reads the file again.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.ensureLoaded()
	metrics.RecordConfigReload(s.err)
	return s.err
}

func (s *Store) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.cfg, s.policy, s.err = s.load()
}

// load falls back to the defaults when the file is missing or cannot be
// decoded. An invalid path or pattern fails the load.
func (s *Store) load() (*Config, *safety.Policy, error) {
	cfg, err := Load(s.path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Warn().Str("path", s.path).Msg("config file not found, using defaults; all mutations are rejected until allowed_paths is set")
		cfg = Default(s.path)
	case errors.Is(err, ErrMalformed):
		s.logger.Warn().Err(err).Str("path", s.path).Msg("config file unreadable, using defaults")
		cfg = Default(s.path)
	default:
		s.logger.Error().Err(err).Str("path", s.path).Msg("invalid config")
		return nil, nil, fmt.Errorf("load config %s: %w", s.path, err)
	}

	policy, err := safety.NewPolicy(cfg.PolicyOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("build policy: %w", err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Strs("allowed_paths", policy.AllowedPaths()).
		Int("protected_paths", len(policy.ProtectedPaths())).
		Int("protected_patterns", len(policy.ProtectedPatterns())).
		Msg("config loaded")
	return cfg, policy, nil
}

// Watch reloads the store whenever the config file is written, created,
// renamed or removed. Bursts of events within debounce collapse into one
// reload. The directory is watched rather than the file so editors that
// replace the file are handled. Watch returns once the watcher is running;
// it stops when ctx is done.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go s.processEvents(ctx, watcher, debounce)
	return nil
}

func (s *Store) processEvents(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration) {
	defer watcher.Close()

	name := filepath.Clean(s.path)
	var pending time.Time
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				pending = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn().Err(err).Msg("config watcher error")

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < debounce {
				continue
			}
			pending = time.Time{}
			if err := s.Reload(); err != nil {
				s.logger.Error().Err(err).Msg("config reload failed")
				continue
			}
			s.logger.Info().Str("path", s.path).Msg("config reloaded")

		case <-ctx.Done():
			return
		}
	}
}
