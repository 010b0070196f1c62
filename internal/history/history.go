// Package history keeps the bounded, newest-first list of clipboard values
// received by the daemon and mirrors it to a JSON file.
//
// Readers take lock-free snapshots: every mutation builds a new slice and
// swaps it in, so a slice returned by Entries is never modified afterwards.
// Mutations are serialized and each one rewrites the whole file before the
// next may start.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tidwall/jsonc"
)

// Limit is the maximum number of entries kept.
const Limit = 20

// PersistenceError reports a failed read or write of the history file.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the history. Construct with Open.
type Store struct {
	path string

	mu       sync.Mutex // serializes mutate+persist
	entries  atomic.Pointer[[]string]
	onChange func([]string)
}

// Open returns a Store backed by path, loading whatever is already there.
// It never fails: an unreadable file yields an empty history.
func Open(path string) *Store {
	s := &Store{path: path}
	s.swap(s.Load())
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// OnChange registers fn to be called with the new snapshot after every
// mutation. Only one listener is kept; fn must not call back into the
// Store's mutating methods.
func (s *Store) OnChange(fn func([]string)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Load reads the backing file. Blank and duplicate entries are dropped and
// the result is truncated to Limit. Any read or parse failure is logged and
// treated as an empty history.
func (s *Store) Load() []string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("history unreadable, starting empty",
				"err", &PersistenceError{Op: "read", Path: s.path, Err: err})
		}
		return nil
	}

	var raw []string
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		slog.Warn("history unparsable, starting empty",
			"err", &PersistenceError{Op: "parse", Path: s.path, Err: err})
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, min(len(raw), Limit))
	for _, text := range raw {
		if isBlank(text) {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
		if len(out) == Limit {
			break
		}
	}
	if len(raw) > len(out) {
		slog.Debug("history normalized on load", "stored", len(raw), "kept", len(out))
	}
	return out
}

// Entries returns the current snapshot, newest first. Callers must not
// modify it.
func (s *Store) Entries() []string {
	if p := s.entries.Load(); p != nil {
		return *p
	}
	return nil
}

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.Entries()) }

// Front returns the most recent entry.
func (s *Store) Front() (string, bool) {
	e := s.Entries()
	if len(e) == 0 {
		return "", false
	}
	return e[0], true
}

// Normalize replaces invalid UTF-8 sequences with U+FFFD, which is what
// the JSON file would turn them into. Entries are compared after
// normalizing so a value survives a reload unchanged.
func Normalize(text string) string {
	return strings.ToValidUTF8(text, "\uFFFD")
}

// Add records text as the most recent entry. Blank text and text equal to
// the current front are ignored. An existing equal entry is moved rather
// than duplicated. Reports whether the history changed.
func (s *Store) Add(text string) bool {
	text = Normalize(text)
	if isBlank(text) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Entries()
	if len(cur) > 0 && cur[0] == text {
		return false
	}

	next := make([]string, 0, min(len(cur)+1, Limit))
	next = append(next, text)
	for _, e := range cur {
		if e == text {
			continue
		}
		if len(next) == Limit {
			break
		}
		next = append(next, e)
	}
	s.commitLocked(next)
	return true
}

// Delete removes text if present. Reports whether it was found.
func (s *Store) Delete(text string) bool {
	text = Normalize(text)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Entries()
	i := slices.Index(cur, text)
	if i < 0 {
		return false
	}
	next := slices.Concat(cur[:i], cur[i+1:])
	s.commitLocked(next)
	return true
}

// Clear empties the history and persists the empty state.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked([]string{})
}

// commitLocked swaps next in, persists it and notifies the listener.
// The in-memory state is updated even when the write fails.
func (s *Store) commitLocked(next []string) {
	s.swap(next)
	if err := s.persist(next); err != nil {
		slog.Error("history not saved", "err", err)
	}
	if s.onChange != nil {
		s.onChange(next)
	}
}

func (s *Store) swap(next []string) {
	s.entries.Store(&next)
}

// persist rewrites the whole file: write to a temporary sibling, fsync,
// rename into place.
func (s *Store) persist(entries []string) error {
	if entries == nil {
		entries = []string{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Path: s.path, Err: err}
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return &PersistenceError{Op: "mkdir", Path: s.path, Err: err}
	}
	if err := writeAtomic(s.path, data); err != nil {
		return &PersistenceError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func isBlank(text string) bool { return strings.TrimSpace(text) == "" }
