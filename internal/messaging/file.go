package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/zulandar/relay/internal/models"
)

// FileStore keeps every message in one JSON array on disk.
//
// Every operation reads the whole file, changes the in-memory slice and
// overwrites the whole file. There is no locking: two participants writing
// at the same moment can lose one of the updates (last write wins). Use the
// sqlite or mysql backend when participants really run concurrently.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path, creating the file (holding an
// empty array) and its directory if they do not exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("messaging: store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("messaging: create store dir: %w", err)
	}
	s := &FileStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.save(nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Send appends a message and rewrites the file.
func (s *FileStore) Send(from, to, subject, body, priority string) (*models.Message, error) {
	msg, err := newMessage(from, to, subject, body, priority)
	if err != nil {
		return nil, err
	}
	msgs := s.load()
	msgs = append(msgs, msg)
	if err := s.save(msgs); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReadFor returns name's unread messages and marks all of name's messages
// read. The messages are returned even if persisting the read flags fails.
func (s *FileStore) ReadFor(name string) ([]models.Message, error) {
	msgs := s.load()

	var unread []models.Message
	changed := false
	for i := range msgs {
		if msgs[i].To != name {
			continue
		}
		if !msgs[i].Read {
			unread = append(unread, msgs[i])
			msgs[i].Read = true
			changed = true
		}
	}
	if !changed {
		return unread, nil
	}
	if err := s.save(msgs); err != nil {
		return unread, err
	}
	return unread, nil
}

// All returns every message in arrival order.
func (s *FileStore) All() ([]models.Message, error) {
	return s.load(), nil
}

// load reads the file. A missing or unparsable file is an empty sequence.
func (s *FileStore) load() []models.Message {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("messaging: read %s: %v (treating as empty)", s.path, err)
		}
		return nil
	}
	var msgs []models.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		log.Printf("messaging: parse %s: %v (treating as empty)", s.path, err)
		return nil
	}
	return msgs
}

// save overwrites the file through a temp file and rename, so a reader sees
// either the old or the new sequence, never a partial one.
func (s *FileStore) save(msgs []models.Message) error {
	if msgs == nil {
		msgs = []models.Message{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("messaging: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("messaging: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("messaging: chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("messaging: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("messaging: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("messaging: replace %s: %w", s.path, err)
	}
	return nil
}
