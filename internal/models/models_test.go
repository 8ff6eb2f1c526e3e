package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

func TestMessage_GormFields(t *testing.T) {
	typ := reflect.TypeOf(Message{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "From", "not null")
	assertGormTag(t, typ, "To", "index:idx_to_read")
	assertGormTag(t, typ, "Read", "index:idx_to_read")
	assertGormTag(t, typ, "Body", "type:text")
	assertGormTag(t, typ, "Priority", "default:medium")
}

func TestMessage_JSONFieldNames(t *testing.T) {
	msg := Message{
		ID:        42,
		Timestamp: "2026-10-19 09:00:00",
		From:      "worker1",
		To:        "worker2",
		Subject:   "data-ready",
		Body:      "Task 't1' completed.",
		Priority:  PriorityHigh,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"timestamp", "from", "to", "subject", "message", "priority", "read"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("JSON missing %q: %s", key, data)
		}
	}
	if len(fields) != 7 {
		t.Errorf("JSON has %d fields, want 7 (ID must not be serialized): %s", len(fields), data)
	}
	if fields["read"] != false {
		t.Errorf("read = %v, want false", fields["read"])
	}
}

func TestNewMessage(t *testing.T) {
	before := time.Now().Truncate(time.Second)
	msg := NewMessage("manager", "worker1", "new-task", "body", PriorityHigh)

	ts, err := time.ParseInLocation(TimestampLayout, msg.Timestamp, time.Local)
	if err != nil {
		t.Fatalf("timestamp %q does not parse: %v", msg.Timestamp, err)
	}
	if ts.Before(before) {
		t.Errorf("timestamp %v before %v", ts, before)
	}
	if msg.Read {
		t.Error("new message should be unread")
	}
	if !msg.IsHigh() {
		t.Error("IsHigh() = false for high priority")
	}
}

func TestValidPriority(t *testing.T) {
	for _, p := range []string{"low", "medium", "high"} {
		if !ValidPriority(p) {
			t.Errorf("ValidPriority(%q) = false", p)
		}
	}
	for _, p := range []string{"", "urgent", "HIGH", "normal"} {
		if ValidPriority(p) {
			t.Errorf("ValidPriority(%q) = true", p)
		}
	}
}
