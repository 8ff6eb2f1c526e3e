// Package messaging provides the shared message store participants use to
// talk to each other.
package messaging

import (
	"fmt"

	"github.com/zulandar/relay/internal/config"
	"github.com/zulandar/relay/internal/db"
	"github.com/zulandar/relay/internal/models"
)

// Store is the shared, ordered sequence of messages.
type Store interface {
	// Send appends a new unread message and persists the sequence.
	Send(from, to, subject, body, priority string) (*models.Message, error)
	// ReadFor returns the unread messages addressed to name in arrival
	// order, and marks every message addressed to name as read.
	ReadFor(name string) ([]models.Message, error)
	// All returns the whole sequence without changing it.
	All() ([]models.Message, error)
}

// Open returns the store selected by cfg.Store.Backend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.Layout().MessagesFile())
	case config.BackendSQLite, config.BackendMySQL:
		gormDB, err := db.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("messaging: open %s store: %w", cfg.Store.Backend, err)
		}
		return NewDBStore(gormDB)
	default:
		return nil, fmt.Errorf("messaging: unknown backend %q", cfg.Store.Backend)
	}
}

// newMessage validates the arguments to Send and builds the record.
func newMessage(from, to, subject, body, priority string) (models.Message, error) {
	if from == "" {
		return models.Message{}, fmt.Errorf("messaging: from is required")
	}
	if to == "" {
		return models.Message{}, fmt.Errorf("messaging: to is required")
	}
	if subject == "" {
		return models.Message{}, fmt.Errorf("messaging: subject is required")
	}
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return models.Message{}, fmt.Errorf("messaging: invalid priority %q (want low, medium or high)", priority)
	}
	return models.NewMessage(from, to, subject, body, priority), nil
}

// Mailbox binds a store to one participant, so callers only name the
// recipient when sending and nothing when reading.
type Mailbox struct {
	Store Store
	Owner string
}

// NewMailbox returns a mailbox for owner.
func NewMailbox(store Store, owner string) *Mailbox {
	return &Mailbox{Store: store, Owner: owner}
}

// Send sends a message from the mailbox owner.
func (m *Mailbox) Send(to, subject, body, priority string) (*models.Message, error) {
	return m.Store.Send(m.Owner, to, subject, body, priority)
}

// Read drains the owner's unread messages.
func (m *Mailbox) Read() ([]models.Message, error) {
	return m.Store.ReadFor(m.Owner)
}
