package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout resolves every shared path under the base directory.
type Layout struct {
	BaseDir string
	store   StoreConfig
}

// Layout returns the directory layout for this configuration.
func (c *Config) Layout() Layout {
	return Layout{BaseDir: c.BaseDir, store: c.Store}
}

// NewLayout builds a layout rooted at baseDir with default store paths.
func NewLayout(baseDir string) Layout {
	cfg := Default()
	cfg.BaseDir = baseDir
	return cfg.Layout()
}

func (l Layout) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.BaseDir, p)
}

// MessagesFile is the shared JSON message store.
func (l Layout) MessagesFile() string { return l.resolve(l.store.Path) }

// SQLiteFile is the database file used by the sqlite backend.
func (l Layout) SQLiteFile() string { return l.resolve(l.store.SQLitePath) }

// PendingDir holds task files waiting for role.
func (l Layout) PendingDir(role string) string {
	return filepath.Join(l.BaseDir, "pending_tasks", role)
}

// CompletedDir holds task files role has finished.
func (l Layout) CompletedDir(role string) string {
	return filepath.Join(l.BaseDir, "completed_tasks", role)
}

// WorkDir is the participant's own subdirectory, used as the working
// directory for commands and scripts.
func (l Layout) WorkDir(role string) string {
	return filepath.Join(l.BaseDir, role)
}

// LogFile is the participant's activity log.
func (l Layout) LogFile(role string) string {
	if role == ManagerRole {
		return filepath.Join(l.BaseDir, "manager_log.txt")
	}
	return filepath.Join(l.BaseDir, role, role+"_log.txt")
}

// InstructionsFile is the instruction text printed at startup.
func (l Layout) InstructionsFile(role string) string {
	if role == ManagerRole {
		return filepath.Join(l.BaseDir, "manager_instructions.md")
	}
	return filepath.Join(l.BaseDir, role, role+"_instructions.md")
}

// OutputDir receives externally visible artifacts.
func (l Layout) OutputDir() string {
	return filepath.Join(l.BaseDir, "output")
}

// Ensure creates the shared directories plus the per-participant
// directories for every role given.
func (l Layout) Ensure(roles ...string) error {
	dirs := []string{
		filepath.Dir(l.MessagesFile()),
		l.OutputDir(),
	}
	for _, role := range roles {
		if role == ManagerRole {
			continue
		}
		dirs = append(dirs, l.PendingDir(role), l.CompletedDir(role), l.WorkDir(role))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", d, err)
		}
	}
	return nil
}

// InstructionsPreview is how much of an instructions file is shown at startup.
const InstructionsPreview = 500

// ReadInstructions returns the instructions text at path, cut to limit
// characters with a trailing "..." when longer. limit <= 0 means no cut.
func ReadInstructions(path string, limit int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read instructions: %w", err)
	}
	text := []rune(string(data))
	if limit > 0 && len(text) > limit {
		return string(text[:limit]) + "...", nil
	}
	return string(text), nil
}
