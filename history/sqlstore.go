package history

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// chatRow is the GORM model for a historical chat.
type chatRow struct {
	ChatID       string `gorm:"primaryKey;column:chat_id"`
	UserID       string `gorm:"index"`
	Question     string
	Response     string
	ModelUsed    string
	QualityScore float64
	Cost         float64
	CreatedAt    time.Time `gorm:"index"`
}

func (chatRow) TableName() string { return "historical_chats" }

// chatIndexRow is the question-hash hint index.
type chatIndexRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ChatID       string `gorm:"index"`
	QuestionHash string `gorm:"index"`
	UserID       string `gorm:"index"`
}

func (chatIndexRow) TableName() string { return "chat_index" }

// SQLStore is a chat Store backed by a GORM database.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore migrates the chat tables and returns a store over db.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&chatRow{}, &chatIndexRow{}); err != nil {
		return nil, fmt.Errorf("migrate history tables: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Save inserts the chat and its index row in one transaction.
func (s *SQLStore) Save(chat Chat, questionHash string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chatRow{
			ChatID:       chat.ID,
			UserID:       chat.UserID,
			Question:     chat.Question,
			Response:     chat.Response,
			ModelUsed:    chat.ModelUsed,
			QualityScore: chat.QualityScore,
			Cost:         chat.Cost,
			CreatedAt:    chat.CreatedAt,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&chatIndexRow{
			ChatID:       chat.ID,
			QuestionHash: questionHash,
			UserID:       chat.UserID,
		}).Error
	})
}

// Recent returns up to limit chats for the user, newest first.
func (s *SQLStore) Recent(userID string, limit int) ([]Chat, error) {
	var rows []chatRow
	if err := s.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	chats := make([]Chat, 0, len(rows))
	for _, r := range rows {
		chats = append(chats, r.chat())
	}
	return chats, nil
}

// Get returns one chat by id.
func (s *SQLStore) Get(chatID string) (Chat, error) {
	var row chatRow
	if err := s.db.First(&row, "chat_id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Chat{}, ErrNotFound
		}
		return Chat{}, err
	}
	return row.chat(), nil
}

func (r chatRow) chat() Chat {
	return Chat{
		ID:           r.ChatID,
		UserID:       r.UserID,
		Question:     r.Question,
		Response:     r.Response,
		ModelUsed:    r.ModelUsed,
		QualityScore: r.QualityScore,
		Cost:         r.Cost,
		CreatedAt:    r.CreatedAt,
	}
}
