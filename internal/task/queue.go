package task

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/relay/internal/config"
)

// ErrAlreadyCompleted is returned by Complete when the completed directory
// already holds a file with the same name.
var ErrAlreadyCompleted = errors.New("task: already completed")

// Queue is one participant's pending/completed directory pair.
type Queue struct {
	Role      string
	Pending   string
	Completed string
	Now       func() time.Time
}

// NewQueue returns role's queue under layout.
func NewQueue(layout config.Layout, role string) *Queue {
	return &Queue{
		Role:      role,
		Pending:   layout.PendingDir(role),
		Completed: layout.CompletedDir(role),
		Now:       time.Now,
	}
}

// FileName returns a unique task file name for a task generated at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("task_%s_%s.json", t.Format("20060102_150405"), shortID())
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Distribute writes r as a new file in the pending directory and returns its
// path. An existing file is never overwritten.
func (q *Queue) Distribute(r Record) (string, error) {
	if r.Name == "" {
		return "", fmt.Errorf("task: name is required")
	}
	data, err := Encode(r)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(q.Pending, 0o755); err != nil {
		return "", fmt.Errorf("task: create pending dir: %w", err)
	}

	now := time.Now
	if q.Now != nil {
		now = q.Now
	}
	path := filepath.Join(q.Pending, FileName(now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("task: create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("task: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("task: close %s: %w", path, err)
	}
	return path, nil
}

// List returns the pending task files sorted by name. A missing pending
// directory is an empty queue.
func (q *Queue) List() ([]string, error) {
	return listJSON(q.Pending)
}

// ListCompleted returns the completed task files sorted by name.
func (q *Queue) ListCompleted() ([]string, error) {
	return listJSON(q.Completed)
}

// Complete moves a pending file into the completed directory under the same
// name and returns the new path. If that name is already taken the file
// stays pending and the error wraps ErrAlreadyCompleted.
func (q *Queue) Complete(path string) (string, error) {
	if err := os.MkdirAll(q.Completed, 0o755); err != nil {
		return "", fmt.Errorf("task: create completed dir: %w", err)
	}
	dst := filepath.Join(q.Completed, filepath.Base(path))
	if _, err := os.Lstat(dst); err == nil {
		return "", fmt.Errorf("%w: %s", ErrAlreadyCompleted, filepath.Base(path))
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("task: stat %s: %w", dst, err)
	}
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("task: move %s: %w", filepath.Base(path), err)
	}
	return dst, nil
}

// Counts returns the number of pending and completed task files.
func (q *Queue) Counts() (pending, completed int, err error) {
	p, err := q.List()
	if err != nil {
		return 0, 0, err
	}
	c, err := q.ListCompleted()
	if err != nil {
		return 0, 0, err
	}
	return len(p), len(c), nil
}

func listJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("task: list %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
