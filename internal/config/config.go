// Package config provides YAML-based configuration loading for relay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zulandar/relay/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// ManagerRole is the well-known participant name of the manager.
const ManagerRole = "manager"

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// Config is the top-level relay configuration, loaded from relay.yaml.
type Config struct {
	BaseDir   string          `yaml:"base_dir"`
	Workers   []string        `yaml:"workers"`
	Store     StoreConfig     `yaml:"store"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Worker    WorkerConfig    `yaml:"worker"`
	Manager   ManagerConfig   `yaml:"manager"`
	Notify    NotifyConfig    `yaml:"notify"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// StoreConfig selects and locates the shared message store.
type StoreConfig struct {
	Backend    string      `yaml:"backend"`
	Path       string      `yaml:"path"`
	SQLitePath string      `yaml:"sqlite_path"`
	MySQL      MySQLConfig `yaml:"mysql"`
}

// MySQLConfig holds connection settings for the mysql backend.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// ExecutorConfig tunes how tasks are run.
type ExecutorConfig struct {
	Interpreter  string        `yaml:"interpreter"`
	ScriptExt    string        `yaml:"script_ext"`
	GenericStep  int           `yaml:"generic_step"`
	GenericPause time.Duration `yaml:"generic_pause"`
}

// WorkerConfig holds worker loop schedules. Schedules accept a duration
// ("10s"), a cron descriptor ("@every 10s") or a 5-field cron expression.
type WorkerConfig struct {
	Tick         time.Duration `yaml:"tick"`
	TaskCheck    string        `yaml:"task_check"`
	MessageCheck string        `yaml:"message_check"`
	Heartbeat    string        `yaml:"heartbeat"`
	RoutinePause time.Duration `yaml:"routine_pause"`
}

// ManagerConfig holds manager loop schedules and policies.
type ManagerConfig struct {
	Tick            time.Duration `yaml:"tick"`
	MessageCheck    string        `yaml:"message_check"`
	LivenessCheck   string        `yaml:"liveness_check"`
	StatusReport    string        `yaml:"status_report"`
	StaleAfter      time.Duration `yaml:"stale_after"`
	SeedSampleTasks *bool         `yaml:"seed_sample_tasks"`
}

// NotifyConfig configures outbound notifications.
type NotifyConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// DashboardConfig configures the read-only status dashboard.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// ShouldSeed reports whether the manager distributes the sample tasks at startup.
func (m ManagerConfig) ShouldSeed() bool {
	return m.SeedSampleTasks == nil || *m.SeedSampleTasks
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// LoadOrDefault loads path, falling back to defaults when the file is
// missing or invalid. The returned error is a warning only; the Config is
// always usable.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), fmt.Errorf("config: %s not found, using defaults", path)
		}
		return Default(), fmt.Errorf("%w (using defaults)", err)
	}
	return cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv applies overrides from envFile (if present) and the process
// environment. A missing envFile is not an error.
func LoadEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: load env %s: %w", envFile, err)
		}
	}
	if v := os.Getenv("RELAY_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("RELAY_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("RELAY_SLACK_WEBHOOK_URL"); v != "" {
		cfg.Notify.SlackWebhookURL = v
	}
	if v := os.Getenv("RELAY_INTERPRETER"); v != "" {
		cfg.Executor.Interpreter = v
	}
	return cfg.validate()
}

// IsWorker reports whether role is one of the configured workers.
func (c *Config) IsWorker(role string) bool {
	for _, w := range c.Workers {
		if w == role {
			return true
		}
	}
	return false
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.BaseDir == "" {
		c.BaseDir = "."
	}
	if len(c.Workers) == 0 {
		c.Workers = []string{"worker1", "worker2", "worker3"}
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendFile
	}
	if c.Store.Path == "" {
		c.Store.Path = "communication/messages.json"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "communication/messages.db"
	}
	if c.Store.MySQL.Host == "" {
		c.Store.MySQL.Host = "127.0.0.1"
	}
	if c.Store.MySQL.Port == 0 {
		c.Store.MySQL.Port = 3306
	}
	if c.Store.MySQL.User == "" {
		c.Store.MySQL.User = "root"
	}
	if c.Store.MySQL.Database == "" {
		c.Store.MySQL.Database = "relay"
	}

	if c.Executor.Interpreter == "" {
		c.Executor.Interpreter = "python3"
	}
	if c.Executor.ScriptExt == "" {
		c.Executor.ScriptExt = ".py"
	}
	if c.Executor.GenericStep == 0 {
		c.Executor.GenericStep = 20
	}
	if c.Executor.GenericPause == 0 {
		c.Executor.GenericPause = time.Second
	}

	if c.Worker.Tick == 0 {
		c.Worker.Tick = time.Second
	}
	if c.Worker.TaskCheck == "" {
		c.Worker.TaskCheck = "10s"
	}
	if c.Worker.MessageCheck == "" {
		c.Worker.MessageCheck = "30s"
	}
	if c.Worker.Heartbeat == "" {
		c.Worker.Heartbeat = "60s"
	}
	if c.Worker.RoutinePause == 0 {
		c.Worker.RoutinePause = time.Second
	}

	if c.Manager.Tick == 0 {
		c.Manager.Tick = time.Second
	}
	if c.Manager.MessageCheck == "" {
		c.Manager.MessageCheck = "20s"
	}
	if c.Manager.LivenessCheck == "" {
		c.Manager.LivenessCheck = "60s"
	}
	if c.Manager.StatusReport == "" {
		c.Manager.StatusReport = "3m"
	}
	if c.Manager.StaleAfter == 0 {
		c.Manager.StaleAfter = 5 * time.Minute
	}

	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8090
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	seen := make(map[string]bool)
	for i, w := range c.Workers {
		switch {
		case strings.TrimSpace(w) == "":
			errs = append(errs, fmt.Sprintf("workers[%d] is empty", i))
		case w == ManagerRole:
			errs = append(errs, fmt.Sprintf("workers[%d] cannot be %q", i, ManagerRole))
		case seen[w]:
			errs = append(errs, fmt.Sprintf("workers[%d] %q is duplicated", i, w))
		}
		seen[w] = true
	}

	switch c.Store.Backend {
	case BackendFile, BackendSQLite, BackendMySQL:
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not one of file, sqlite, mysql", c.Store.Backend))
	}

	if c.Executor.GenericStep < 1 || c.Executor.GenericStep > 100 {
		errs = append(errs, "executor.generic_step must be between 1 and 100")
	}
	if c.Executor.GenericPause < 0 {
		errs = append(errs, "executor.generic_pause must not be negative")
	}

	schedules := []struct {
		key, expr string
	}{
		{"worker.task_check", c.Worker.TaskCheck},
		{"worker.message_check", c.Worker.MessageCheck},
		{"worker.heartbeat", c.Worker.Heartbeat},
		{"manager.message_check", c.Manager.MessageCheck},
		{"manager.liveness_check", c.Manager.LivenessCheck},
		{"manager.status_report", c.Manager.StatusReport},
	}
	for _, s := range schedules {
		if _, err := scheduler.ParseSchedule(s.expr); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", s.key, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
