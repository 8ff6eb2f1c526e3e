package models

import "time"

// TimestampLayout is the format of Message.Timestamp and activity log lines.
const TimestampLayout = "2006-01-02 15:04:05"

// Message priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Message is a directed note between participants. It is immutable once
// created except for Read, which flips to true the first time the
// addressee reads its inbox.
//
// The JSON form is the on-disk record of the shared message file; the
// gorm tags are used by the database-backed store.
type Message struct {
	ID        uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	Timestamp string `json:"timestamp" gorm:"size:19"`
	From      string `json:"from" gorm:"column:from_participant;size:64;not null"`
	To        string `json:"to" gorm:"column:to_participant;size:64;not null;index:idx_to_read"`
	Subject   string `json:"subject" gorm:"size:256"`
	Body      string `json:"message" gorm:"column:body;type:text"`
	Priority  string `json:"priority" gorm:"size:8;default:medium"`
	Read      bool   `json:"read" gorm:"column:is_read;default:false;index:idx_to_read"`
}

// NewMessage stamps a new unread message with the current local time.
func NewMessage(from, to, subject, body, priority string) Message {
	return Message{
		Timestamp: time.Now().Format(TimestampLayout),
		From:      from,
		To:        to,
		Subject:   subject,
		Body:      body,
		Priority:  priority,
	}
}

// ValidPriority reports whether p is one of low, medium, high.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// IsHigh reports whether the message carries high priority.
func (m Message) IsHigh() bool {
	return m.Priority == PriorityHigh
}
