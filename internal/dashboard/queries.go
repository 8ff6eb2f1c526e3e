package dashboard

import (
	"errors"
	"os"
	"time"

	"github.com/zulandar/relay/internal/activity"
	"github.com/zulandar/relay/internal/config"
	"github.com/zulandar/relay/internal/messaging"
	"github.com/zulandar/relay/internal/models"
	"github.com/zulandar/relay/internal/report"
)

// source is everything the handlers read from.
type source struct {
	cfg    *config.Config
	layout config.Layout
	store  messaging.Store
	now    func() time.Time
}

// WorkerRow is one worker's line in the status view.
type WorkerRow struct {
	report.Count
	LastActivity string `json:"last_activity,omitempty"`
	Stale        bool   `json:"stale"`
}

// StatusView is the payload of /api/status.
type StatusView struct {
	BaseDir string      `json:"base_dir"`
	Time    string      `json:"time"`
	Workers []WorkerRow `json:"workers"`
}

// Status counts task files per worker and checks each worker's log age
// against the manager's stale threshold.
func (s *source) Status() (StatusView, error) {
	now := s.now()
	counts, err := report.Collect(s.layout, s.cfg.Workers)
	view := StatusView{
		BaseDir: s.layout.BaseDir,
		Time:    now.Format(activity.TimestampLayout),
	}
	for _, c := range counts {
		row := WorkerRow{Count: c}
		if info, statErr := os.Stat(s.layout.LogFile(c.Role)); statErr == nil {
			row.LastActivity = info.ModTime().Format(activity.TimestampLayout)
			row.Stale = now.Sub(info.ModTime()) > s.cfg.Manager.StaleAfter
		}
		view.Workers = append(view.Workers, row)
	}
	return view, err
}

// Messages returns the stored messages, optionally only those addressed to
// a single participant.
func (s *source) Messages(to string) ([]models.Message, error) {
	all, err := s.store.All()
	if err != nil {
		return nil, err
	}
	if to == "" {
		return all, nil
	}
	var out []models.Message
	for _, m := range all {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out, nil
}

// Recent returns at most n messages, newest first. A negative n is zero.
func (s *source) Recent(n int) ([]models.Message, error) {
	all, err := s.store.All()
	if err != nil {
		return nil, err
	}
	n = max(0, min(n, len(all)))
	out := make([]models.Message, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Outputs lists the shared output directory.
func (s *source) Outputs() ([]report.Artifact, error) {
	return report.List(s.layout.OutputDir())
}

// errUnknownRole is returned for log requests naming no participant.
var errUnknownRole = errors.New("unknown role")

// LogEntry is one activity line in JSON form.
type LogEntry struct {
	Time     string `json:"time"`
	Text     string `json:"text"`
	Progress *int   `json:"progress,omitempty"`
}

// Logs returns the last n activity entries of role's log.
func (s *source) Logs(role string, n int) ([]LogEntry, error) {
	if role != config.ManagerRole && !s.cfg.IsWorker(role) {
		return nil, errUnknownRole
	}
	entries, err := activity.Tail(s.layout.LogFile(role), n)
	if err != nil {
		return nil, err
	}
	out := make([]LogEntry, len(entries))
	for i, e := range entries {
		out[i] = LogEntry{Time: e.Time.Format(activity.TimestampLayout), Text: e.Text, Progress: e.Progress}
	}
	return out, nil
}
