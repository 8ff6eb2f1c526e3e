package task

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/zulandar/relay/internal/activity"
	"github.com/zulandar/relay/internal/config"
)

// Executor runs tasks for one participant. Commands and scripts run with
// WorkDir as their working directory; the executor never changes the
// process working directory.
type Executor struct {
	Role         string
	WorkDir      string
	Shell        string
	Interpreter  string
	ScriptExt    string
	GenericStep  int
	GenericPause time.Duration
	Log          *activity.Log
	Now          func() time.Time
}

// NewExecutor builds role's executor from cfg.
func NewExecutor(cfg *config.Config, role string, alog *activity.Log) *Executor {
	return &Executor{
		Role:         role,
		WorkDir:      cfg.Layout().WorkDir(role),
		Shell:        "sh",
		Interpreter:  cfg.Executor.Interpreter,
		ScriptExt:    cfg.Executor.ScriptExt,
		GenericStep:  cfg.Executor.GenericStep,
		GenericPause: cfg.Executor.GenericPause,
		Log:          alog,
		Now:          time.Now,
	}
}

// Result describes one finished execution.
type Result struct {
	Kind       Kind
	OutputPath string
	// ExitCode is -1 for generic tasks and for processes killed by a signal.
	ExitCode int
	Stdout   string
	Stderr   string
}

// OutputPath is where the artifact for a task named name is written.
func (e *Executor) OutputPath(name string) string {
	return filepath.Join(e.WorkDir, "task_"+safeName(name)+"_output.txt")
}

// Execute runs t according to its variant. A command or script that exits
// non-zero is not an error; its exit code is recorded in the artifact.
func (e *Executor) Execute(t Task) (*Result, error) {
	if err := os.MkdirAll(e.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("task: create work dir: %w", err)
	}
	switch t := t.(type) {
	case CommandTask:
		return e.runCommand(t)
	case ScriptTask:
		return e.runScript(t)
	case GenericTask:
		return e.runGeneric(t)
	default:
		return nil, fmt.Errorf("task: unknown task type %T", t)
	}
}

func (e *Executor) runCommand(t CommandTask) (*Result, error) {
	e.progress("Starting command execution: "+t.Name, 0)
	e.record("Executing command: " + t.Command)

	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}
	res, err := e.run(exec.Command(shell, "-c", t.Command))
	if err != nil {
		e.record(fmt.Sprintf("Error executing command: %v", err))
		return nil, fmt.Errorf("task: run command for %s: %w", t.Name, err)
	}
	res.Kind = KindCommand

	header := "Command: " + t.Command
	if err := e.writeOutput(t.Name, header, res); err != nil {
		return nil, err
	}
	e.progress("Command execution completed: "+t.Name, 100)
	return res, nil
}

func (e *Executor) runScript(t ScriptTask) (*Result, error) {
	e.progress("Starting script execution: "+t.Name, 0)

	fields := strings.Fields(e.Interpreter)
	if len(fields) == 0 {
		return nil, fmt.Errorf("task: no interpreter configured for script %s", t.Name)
	}

	tmp, err := os.CreateTemp(e.WorkDir, "temp_script_*"+e.ScriptExt)
	if err != nil {
		return nil, fmt.Errorf("task: create script file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(t.Script); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("task: write script file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("task: close script file: %w", err)
	}

	scriptFile := filepath.Base(tmpName)
	e.record("Executing script for task: " + t.Name)
	args := append(fields[1:], scriptFile)
	res, err := e.run(exec.Command(fields[0], args...))
	if err != nil {
		e.record(fmt.Sprintf("Error executing script: %v", err))
		return nil, fmt.Errorf("task: run script for %s: %w", t.Name, err)
	}
	res.Kind = KindScript

	header := "Script executed: " + scriptFile
	if err := e.writeOutput(t.Name, header, res); err != nil {
		return nil, err
	}
	e.progress("Script execution completed: "+t.Name, 100)
	return res, nil
}

func (e *Executor) runGeneric(t GenericTask) (*Result, error) {
	step := e.GenericStep
	if step < 1 {
		step = 20
	}

	e.progress("Starting generic task: "+t.Name, 0)
	for pct := step; pct < 100; pct += step {
		e.pause()
		e.progress("Task progress: "+t.Name, pct)
	}
	e.pause()

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", t.Name)
	fmt.Fprintf(&b, "Description: %s\n", t.Description)
	fmt.Fprintf(&b, "Worker: %s\n", e.Role)
	fmt.Fprintf(&b, "Processed at: %s\n", now().Format(activity.TimestampLayout))
	b.WriteString("Status: Task acknowledged and processed\n")

	path := e.OutputPath(t.Name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("task: write output for %s: %w", t.Name, err)
	}
	e.progress("Generic task completed: "+t.Name, 100)
	return &Result{Kind: KindGeneric, OutputPath: path, ExitCode: -1}, nil
}

// run executes cmd in WorkDir and captures its output. Only a failure to
// start or wait on the process is returned as an error.
func (e *Executor) run(cmd *exec.Cmd) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd.Dir = e.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
		exitCode = exitErr.ExitCode()
	}
	return &Result{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (e *Executor) writeOutput(name, header string, res *Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", name)
	b.WriteString(header + "\n")
	fmt.Fprintf(&b, "Exit Code: %d\n", res.ExitCode)
	fmt.Fprintf(&b, "STDOUT:\n%s\n", res.Stdout)
	fmt.Fprintf(&b, "STDERR:\n%s\n", res.Stderr)

	path := e.OutputPath(name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("task: write output for %s: %w", name, err)
	}
	res.OutputPath = path
	e.record("Output saved to " + path)
	return nil
}

func (e *Executor) pause() {
	if e.GenericPause > 0 {
		time.Sleep(e.GenericPause)
	}
}

func (e *Executor) record(text string) {
	if e.Log == nil {
		return
	}
	if err := e.Log.Record(text); err != nil {
		log.Printf("%v", err)
	}
}

func (e *Executor) progress(text string, pct int) {
	if e.Log == nil {
		return
	}
	if err := e.Log.Progress(text, pct); err != nil {
		log.Printf("%v", err)
	}
}

// safeName keeps a task name from escaping the work directory.
func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)
}
