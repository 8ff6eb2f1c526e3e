// Package task defines task records, the pending/completed directory
// protocol, and the executor that runs tasks.
package task

import (
	"encoding/json"
	"fmt"
	"os"
)

// UnnamedTask is the name given to a task whose name is missing or empty.
const UnnamedTask = "unnamed"

// Kind identifies a task variant.
type Kind string

const (
	KindCommand Kind = "command"
	KindScript  Kind = "script"
	KindGeneric Kind = "generic"
)

// Meta holds the fields every task variant carries.
type Meta struct {
	Name        string
	Description string
}

// Info returns the task's common fields.
func (m Meta) Info() Meta { return m }

func (Meta) sealed() {}

// Task is one of CommandTask, ScriptTask or GenericTask. The variant is
// decided once, when the task file is decoded.
type Task interface {
	Info() Meta
	Kind() Kind
	sealed()
}

// CommandTask runs a shell command.
type CommandTask struct {
	Meta
	Command string
}

// Kind implements Task.
func (CommandTask) Kind() Kind { return KindCommand }

// ScriptTask runs script source through the configured interpreter.
type ScriptTask struct {
	Meta
	Script string
}

// Kind implements Task.
func (ScriptTask) Kind() Kind { return KindScript }

// GenericTask has neither command nor script; it is acknowledged with
// simulated progress.
type GenericTask struct {
	Meta
}

// Kind implements Task.
func (GenericTask) Kind() Kind { return KindGeneric }

// Record is the on-disk JSON shape written by a distributor.
type Record struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Command     *string `json:"command,omitempty"`
	Script      *string `json:"script,omitempty"`
}

// CommandRecord builds a record for a command task.
func CommandRecord(name, description, command string) Record {
	return Record{Name: name, Description: description, Command: &command}
}

// ScriptRecord builds a record for a script task.
func ScriptRecord(name, description, script string) Record {
	return Record{Name: name, Description: description, Script: &script}
}

// GenericRecord builds a record with neither command nor script.
func GenericRecord(name, description string) Record {
	return Record{Name: name, Description: description}
}

// Encode renders r as indented JSON.
func Encode(r Record) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("task: encode %s: %w", r.Name, err)
	}
	return data, nil
}

// Decode parses a task file. The variant is chosen by key presence:
// "command" wins over "script", and a record with neither is generic.
func Decode(data []byte) (Task, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("task: decode: %w", err)
	}
	var fields struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Command     string `json:"command"`
		Script      string `json:"script"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("task: decode: %w", err)
	}

	meta := Meta{Name: fields.Name, Description: fields.Description}
	if meta.Name == "" {
		meta.Name = UnnamedTask
	}

	if _, ok := keys["command"]; ok {
		return CommandTask{Meta: meta, Command: fields.Command}, nil
	}
	if _, ok := keys["script"]; ok {
		return ScriptTask{Meta: meta, Script: fields.Script}, nil
	}
	return GenericTask{Meta: meta}, nil
}

// Load reads and decodes the task file at path.
func Load(path string) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("task: read %s: %w", path, err)
	}
	t, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("task: load %s: %w", path, err)
	}
	return t, nil
}
