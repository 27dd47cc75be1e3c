// Package file implements the recipient registry on top of a single
// JSON document with atomic-replace writes.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bissquit/soc-relay/internal/domain"
)

// snapshot is the persisted document. It is always written whole so a
// reader never observes a partially written collection.
type snapshot struct {
	Recipients []domain.Recipient `json:"recipients"`
}

// Store persists recipients in a single JSON file. Every mutation reads
// the current snapshot, applies the change in memory and atomically
// replaces the file via a temp-file rename. An in-process mutex
// serializes the read-modify-write sequence; concurrent mutation from
// another process is still last-writer-wins.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a registry store backed by the JSON file at path.
// The file is created on first mutation.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// List returns all registered recipients in registration order.
func (s *Store) List(_ context.Context) ([]domain.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(), nil
}

// Subscribed returns recipients with forwarding enabled.
func (s *Store) Subscribed(_ context.Context) ([]domain.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subscribed []domain.Recipient
	for _, r := range s.read() {
		if r.Subscribed {
			subscribed = append(subscribed, r)
		}
	}
	return subscribed, nil
}

// Add registers a new recipient. Registration is idempotent: a second
// call with the same chat id returns false and mutates nothing.
func (s *Store) Add(_ context.Context, chatID int64, displayName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipients := s.read()
	for _, r := range recipients {
		if r.ChatID == chatID {
			return false, nil
		}
	}

	recipients = append(recipients, domain.Recipient{
		ChatID:      chatID,
		DisplayName: displayName,
		Subscribed:  false,
	})

	if err := s.write(recipients); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes a recipient record. Returns true if one existed.
func (s *Store) Remove(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipients := s.read()
	kept := recipients[:0]
	for _, r := range recipients {
		if r.ChatID != chatID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(recipients) {
		return false, nil
	}

	if err := s.write(kept); err != nil {
		return false, err
	}
	return true, nil
}

// SetSubscribed updates a recipient's subscription flag. Returns true
// if a matching record was found.
func (s *Store) SetSubscribed(_ context.Context, chatID int64, enabled bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipients := s.read()
	found := false
	for i := range recipients {
		if recipients[i].ChatID == chatID {
			recipients[i].Subscribed = enabled
			found = true
		}
	}
	if !found {
		return false, nil
	}

	if err := s.write(recipients); err != nil {
		return false, err
	}
	return true, nil
}

// read loads the current snapshot. A missing or malformed file yields an
// empty registry rather than an error: the store must always produce a
// usable result.
func (s *Store) read() []domain.Recipient {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("registry read failed, treating as empty", "path", s.path, "error", err)
		}
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("registry document malformed, treating as empty", "path", s.path, "error", err)
		return nil
	}
	return snap.Recipients
}

// write replaces the snapshot atomically: the new document goes to a
// temp file in the same directory and is renamed over the canonical
// path. A crash mid-write orphans the temp file and leaves the previous
// snapshot intact.
func (s *Store) write(recipients []domain.Recipient) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create registry dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(snapshot{Recipients: recipients}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write registry temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace registry snapshot: %w", err)
	}
	return nil
}
