// Package activity writes and reads the per-participant activity logs.
//
// Each line has the form
//
//	[2006-01-02 15:04:05] text
//	[2006-01-02 15:04:05] text (Progress: 40%)
//
// Logs are append-only; nothing in relay ever rewrites a line.
package activity

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// TimestampLayout is the format of the bracketed timestamp on every line.
const TimestampLayout = "2006-01-02 15:04:05"

// Entry is one activity line.
type Entry struct {
	Time     time.Time
	Text     string
	Progress *int
}

// HasProgress reports whether the entry carries a progress percentage.
func (e Entry) HasProgress() bool { return e.Progress != nil }

// Clamp bounds a progress percentage to 0..100.
func Clamp(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// FormatLine renders e without a trailing newline.
func FormatLine(e Entry) string {
	line := fmt.Sprintf("[%s] %s", e.Time.Format(TimestampLayout), e.Text)
	if e.Progress != nil {
		line += fmt.Sprintf(" (Progress: %d%%)", Clamp(*e.Progress))
	}
	return line
}

var lineRe = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\] (.*?)(?: \(Progress: (\d{1,3})%\))?$`)

// ParseLine parses a line written by FormatLine.
func ParseLine(line string) (Entry, error) {
	m := lineRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Entry{}, fmt.Errorf("activity: malformed line %q", line)
	}
	ts, err := time.ParseInLocation(TimestampLayout, m[1], time.Local)
	if err != nil {
		return Entry{}, fmt.Errorf("activity: bad timestamp %q: %w", m[1], err)
	}
	e := Entry{Time: ts, Text: m[2]}
	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		if err != nil {
			return Entry{}, fmt.Errorf("activity: bad progress %q: %w", m[3], err)
		}
		e.Progress = &n
	}
	return e, nil
}

// Log appends entries for one participant and echoes them to Out.
type Log struct {
	Role string
	Path string
	Out  io.Writer
	Now  func() time.Time
}

// New returns a log for role writing to path and echoing to out. A nil out
// disables the echo.
func New(role, path string, out io.Writer) *Log {
	return &Log{Role: role, Path: path, Out: out, Now: time.Now}
}

// Record appends a line without progress.
func (l *Log) Record(text string) error {
	return l.append(Entry{Text: text})
}

// Progress appends a line with a progress percentage, clamped to 0..100.
func (l *Log) Progress(text string, pct int) error {
	pct = Clamp(pct)
	return l.append(Entry{Text: text, Progress: &pct})
}

func (l *Log) append(e Entry) error {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	e.Time = now()
	line := FormatLine(e)

	if l.Out != nil {
		fmt.Fprintf(l.Out, "%s %s\n", rolePrefix(l.Role), line)
	}

	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("activity: create log dir: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("activity: open %s: %w", l.Path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("activity: append %s: %w", l.Path, err)
	}
	return f.Close()
}

// ReadEntries parses every well-formed line of the log at path. Lines that
// do not parse are skipped. A missing file yields no entries.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("activity: open %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if e, err := ParseLine(sc.Text()); err == nil {
			entries = append(entries, e)
		}
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("activity: scan %s: %w", path, err)
	}
	return entries, nil
}

// Tail returns the last n entries of the log at path.
func Tail(path string, n int) ([]Entry, error) {
	entries, err := ReadEntries(path)
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, err
}

var roleColors = map[string]lipgloss.Color{
	"manager": lipgloss.Color("#b91c1c"),
	"worker1": lipgloss.Color("#1e3a8a"),
	"worker2": lipgloss.Color("#92400e"),
	"worker3": lipgloss.Color("#166534"),
}

func rolePrefix(role string) string {
	bg, ok := roleColors[role]
	if !ok {
		bg = lipgloss.Color("236")
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255")).
		Background(bg).
		Render("[" + strings.ToUpper(role) + "]")
}
