// Package report writes and lists the artifacts in the shared output
// directory: the final pipeline report and the manager's status reports.
package report

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
	"github.com/zulandar/relay/internal/task"
)

// Artifact name prefixes.
const (
	PrefixFinal  = "report"
	PrefixStatus = "status_report"
)

const timestampLayout = "2006-01-02 15:04:05"

// FileName returns an artifact name such as
// status_report_20261019_140509_1a2b3c4d.txt. The random suffix keeps two
// artifacts generated in the same second apart.
func FileName(prefix string, t time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s.txt", prefix, t.Format("20060102_150405"), id)
}

// Write creates a new artifact in dir and returns its path.
func Write(dir, prefix string, t time.Time, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create output dir: %w", err)
	}
	path := filepath.Join(dir, FileName(prefix, t))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("report: create %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("report: close %s: %w", path, err)
	}
	return path, nil
}

// Artifact describes one file in the output directory.
type Artifact struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// List returns the regular files in dir sorted by name. A missing directory
// has no artifacts.
func List(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("report: list %s: %w", dir, err)
	}
	var out []Artifact
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Artifact{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Count is one worker's task file counts.
type Count struct {
	Role      string `json:"role"`
	Pending   int    `json:"pending"`
	Completed int    `json:"completed"`
}

// Collect counts pending and completed task files for each role.
func Collect(layout config.Layout, roles []string) ([]Count, error) {
	counts := make([]Count, 0, len(roles))
	for _, role := range roles {
		p, c, err := task.NewQueue(layout, role).Counts()
		if err != nil {
			return counts, fmt.Errorf("report: count %s: %w", role, err)
		}
		counts = append(counts, Count{Role: role, Pending: p, Completed: c})
	}
	return counts, nil
}

// FormatStatus renders the manager status report.
func FormatStatus(t time.Time, counts []Count) string {
	var b strings.Builder
	b.WriteString("=== Manager Status Report ===\n")
	fmt.Fprintf(&b, "Time: %s\n\n", t.Format(timestampLayout))
	for _, c := range counts {
		fmt.Fprintf(&b, "%s: Pending=%d, Completed=%d\n", c.Role, c.Pending, c.Completed)
	}
	return b.String()
}

// FormatFinal renders the final pipeline report written by the last stage.
func FormatFinal(role, source string, t time.Time, counts []Count) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report generated by %s at %s\n", role, t.Format(timestampLayout))
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Source: %s\n\n", source)
	b.WriteString("Pipeline task counts:\n")
	for _, c := range counts {
		fmt.Fprintf(&b, "  %s: Pending=%d, Completed=%d\n", c.Role, c.Pending, c.Completed)
	}
	return b.String()
}
