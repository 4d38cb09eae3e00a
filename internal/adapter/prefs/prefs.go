// Package prefs persists client-side preferences (session token, tutorial
// flag, map layer) in an embedded pebble database.
package prefs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cockroachdb/pebble"
)

const (
	keyToken        = "session.token"
	keyTutorialSeen = "ui.tutorial_seen"
	keyMapLayer     = "ui.map_layer"
)

// Store is a small key-value preference store.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if needed) the preference database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{Logger: pebbleLogger{logger: logger}})
	if err != nil {
		return nil, fmt.Errorf("open prefs at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Token returns the persisted session token, or "" if none.
func (s *Store) Token() (string, error) {
	v, _, err := s.get(keyToken)
	return v, err
}

// SetToken persists the session token.
func (s *Store) SetToken(token string) error {
	return s.set(keyToken, token)
}

// ClearToken removes the persisted session token.
func (s *Store) ClearToken() error {
	if err := s.db.Delete([]byte(keyToken), pebble.Sync); err != nil {
		return fmt.Errorf("delete %s: %w", keyToken, err)
	}
	return nil
}

// TutorialSeen reports whether the tutorial was dismissed.
func (s *Store) TutorialSeen() (bool, error) {
	v, ok, err := s.get(keyTutorialSeen)
	if err != nil || !ok {
		return false, err
	}
	seen, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", keyTutorialSeen, err)
	}
	return seen, nil
}

// SetTutorialSeen persists the tutorial flag.
func (s *Store) SetTutorialSeen(seen bool) error {
	return s.set(keyTutorialSeen, strconv.FormatBool(seen))
}

// MapLayer returns the persisted layer preference, or "" if unset.
func (s *Store) MapLayer() (string, error) {
	v, _, err := s.get(keyMapLayer)
	return v, err
}

// SetMapLayer persists the layer preference.
func (s *Store) SetMapLayer(layer string) error {
	return s.set(keyMapLayer, layer)
}

func (s *Store) get(key string) (string, bool, error) {
	v, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	defer closer.Close()
	return string(v), true, nil
}

func (s *Store) set(key, value string) error {
	if err := s.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// pebbleLogger routes pebble's internal logging through slog.
type pebbleLogger struct {
	logger *slog.Logger
}

func (l pebbleLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "pebble")
}

func (l pebbleLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "pebble")
}

func (l pebbleLogger) Fatalf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "pebble", "fatal", true)
	os.Exit(1)
}
