package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/files"
	"ivfeatures/internal/infrastructure"
	"ivfeatures/internal/measurement"
)

// SessionInfo describes one session directory
type SessionInfo struct {
	Name    string    `json:"name"`
	ModTime time.Time `json:"mod_time"`
	Loaded  bool      `json:"loaded"`
	Sweeps  int       `json:"sweeps,omitempty"`
}

type cachedSession struct {
	m       *measurement.Measurement
	modTime time.Time
}

// SessionService loads and caches the sessions below a data directory
type SessionService struct {
	root      string
	discovery *files.Discovery
	opts      measurement.Options
	logger    *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedSession
}

// NewSessionService creates a service over the sessions in root
func NewSessionService(root string, opts measurement.Options, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger
	return &SessionService{
		root:      root,
		discovery: files.NewDiscovery(root),
		opts:      opts,
		logger:    infrastructure.WithComponent(logger, "sessions"),
		cache:     make(map[string]cachedSession),
	}
}

// Root returns the data directory
func (s *SessionService) Root() string {
	return s.root
}

// List returns every session directory in name order
func (s *SessionService) List(ctx context.Context) ([]SessionInfo, error) {
	dirs, err := s.discovery.ListSessions("")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list sessions", err).
			WithContext("data_dir", s.root)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SessionInfo, len(dirs))
	for i, d := range dirs {
		out[i] = SessionInfo{Name: d.Name, ModTime: d.ModTime}
		if c, ok := s.cache[d.Name]; ok && c.modTime.Equal(d.ModTime) {
			out[i].Loaded = true
			out[i].Sweeps = c.m.Len()
		}
	}

	s.logger.DebugContext(ctx, "Listed sessions", slog.Int("count", len(out)))
	return out, nil
}

// Get returns the named session, loading it when it is not cached or its
// directory changed since. A cancelled ctx abandons the wait, not the load.
func (s *SessionService) Get(ctx context.Context, name string) (*measurement.Measurement, error) {
	dir, modTime, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	c, ok := s.cache[name]
	s.mu.RUnlock()
	if ok && c.modTime.Equal(modTime) {
		return c.m, nil
	}

	ch := s.group.DoChan(name, func() (interface{}, error) {
		start := time.Now()
		m, err := measurement.Load(context.WithoutCancel(ctx), dir, s.opts)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[name] = cachedSession{m: m, modTime: modTime}
		s.mu.Unlock()

		s.logger.InfoContext(ctx, "Session loaded",
			slog.String("session", name),
			slog.Int("sweeps", m.Len()),
			slog.Int("skipped", len(m.Skipped)),
			slog.Duration("duration", time.Since(start)))
		return m, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*measurement.Measurement), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops a cached session so the next Get reloads it
func (s *SessionService) Invalidate(name string) {
	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()
}

// Cached reports how many sessions are held in memory
func (s *SessionService) Cached() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// resolve maps a session name onto its directory. Names are single path
// elements; anything else is rejected before touching the filesystem.
func (s *SessionService) resolve(name string) (string, time.Time, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", time.Time{}, apperrors.NewAppValidationError(fmt.Sprintf("invalid session name %q", name))
	}

	dir := filepath.Join(s.root, name)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", time.Time{}, apperrors.NewNotFoundError(fmt.Sprintf("session %s", name))
	case err != nil:
		return "", time.Time{}, apperrors.NewStorageError("failed to stat session", err).
			WithContext("session", name)
	case !info.IsDir():
		return "", time.Time{}, apperrors.NewNotFoundError(fmt.Sprintf("session %s", name))
	}
	return dir, info.ModTime(), nil
}
