package messaging

import (
	"fmt"

	"github.com/zulandar/relay/internal/models"
	"gorm.io/gorm"
)

// DBStore keeps messages in a database table. ReadFor selects and marks
// inside one transaction and marks only the rows it returns, so a message
// sent concurrently is delivered by a later read instead of being lost.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore wraps an already migrated database.
func NewDBStore(db *gorm.DB) (*DBStore, error) {
	if db == nil {
		return nil, fmt.Errorf("messaging: db is required")
	}
	return &DBStore{db: db}, nil
}

// Send inserts a new unread message.
func (s *DBStore) Send(from, to, subject, body, priority string) (*models.Message, error) {
	msg, err := newMessage(from, to, subject, body, priority)
	if err != nil {
		return nil, err
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("messaging: send: %w", err)
	}
	return &msg, nil
}

// ReadFor returns name's unread messages in arrival order and marks them
// read. Only the rows returned are updated, so a message inserted after the
// select stays unread for the next call.
func (s *DBStore) ReadFor(name string) ([]models.Message, error) {
	if name == "" {
		return nil, fmt.Errorf("messaging: name is required")
	}

	var msgs []models.Message
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("to_participant = ? AND is_read = ?", name, false).
			Order("id ASC").Find(&msgs).Error; err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		ids := make([]uint, len(msgs))
		for i, m := range msgs {
			ids[i] = m.ID
		}
		return tx.Model(&models.Message{}).
			Where("id IN ?", ids).
			Update("is_read", true).Error
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: read for %s: %w", name, err)
	}
	return msgs, nil
}

// All returns every message in arrival order.
func (s *DBStore) All() ([]models.Message, error) {
	var msgs []models.Message
	if err := s.db.Order("id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("messaging: list: %w", err)
	}
	return msgs, nil
}
