package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/paretolabs/modelopt/replay"
)

// userRow is the GORM model for a user profile.
type userRow struct {
	UserID                string `gorm:"primaryKey;column:user_id"`
	CurrentModel          string
	UseCase               string
	PreferredOutputFormat string `gorm:"default:text"`
	AvgInputTokens        int    `gorm:"default:500"`
	AvgOutputTokens       int    `gorm:"default:200"`
	MonthlyRequestVolume  int    `gorm:"default:10000"`
	ConstraintsJSON       string `gorm:"column:constraints_json"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (userRow) TableName() string { return "users" }

// conversationRow is the GORM model for a recent-conversation sample row.
type conversationRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	UserID       string `gorm:"index"`
	MessagesJSON string `gorm:"column:messages_json"`
	ModelUsed    string
	TokensInput  int
	TokensOutput int
	CreatedAt    time.Time
}

func (conversationRow) TableName() string { return "user_conversations" }

// SQLStore is a profile Store backed by a GORM database.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore migrates the profile tables and returns a store over db.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&userRow{}, &conversationRow{}); err != nil {
		return nil, fmt.Errorf("migrate profile tables: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Get returns a user's profile with its bounded recent-conversation
// sample, or ErrNotFound.
func (s *SQLStore) Get(userID string) (*Profile, error) {
	var row userRow
	if err := s.db.First(&row, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var constraints Constraints
	if row.ConstraintsJSON != "" {
		if err := json.Unmarshal([]byte(row.ConstraintsJSON), &constraints); err != nil {
			return nil, fmt.Errorf("decode constraints for %s: %w", userID, err)
		}
	} else {
		constraints = DefaultConstraints()
	}

	var convRows []conversationRow
	if err := s.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(ConversationSampleSize).
		Find(&convRows).Error; err != nil {
		return nil, err
	}

	conversations := make([]replay.Conversation, 0, len(convRows))
	for _, cr := range convRows {
		var msgs []replay.Message
		if err := json.Unmarshal([]byte(cr.MessagesJSON), &msgs); err != nil {
			continue // skip undecodable rows
		}
		conversations = append(conversations, replay.Conversation{
			Messages:     msgs,
			ModelUsed:    cr.ModelUsed,
			TokensInput:  cr.TokensInput,
			TokensOutput: cr.TokensOutput,
		})
	}

	return &Profile{
		UserID:                row.UserID,
		CurrentModel:          row.CurrentModel,
		UseCase:               row.UseCase,
		Constraints:           constraints,
		PreferredOutputFormat: row.PreferredOutputFormat,
		AvgInputTokens:        row.AvgInputTokens,
		AvgOutputTokens:       row.AvgOutputTokens,
		MonthlyRequestVolume:  row.MonthlyRequestVolume,
		RecentConversations:   conversations,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}, nil
}

// Put creates or replaces a profile.
func (s *SQLStore) Put(p Profile) error {
	cj, err := json.Marshal(p.Constraints)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}
	row := userRow{
		UserID:                p.UserID,
		CurrentModel:          p.CurrentModel,
		UseCase:               p.UseCase,
		PreferredOutputFormat: p.PreferredOutputFormat,
		AvgInputTokens:        p.AvgInputTokens,
		AvgOutputTokens:       p.AvgOutputTokens,
		MonthlyRequestVolume:  p.MonthlyRequestVolume,
		ConstraintsJSON:       string(cj),
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
	return s.db.Save(&row).Error
}

// Update applies a partial mutation.
func (s *SQLStore) Update(userID string, u Update) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if u.CurrentModel != nil {
		updates["current_model"] = *u.CurrentModel
	}
	if u.UseCase != nil {
		updates["use_case"] = *u.UseCase
	}
	if u.PreferredOutputFormat != nil {
		updates["preferred_output_format"] = *u.PreferredOutputFormat
	}
	if u.AvgInputTokens != nil {
		updates["avg_input_tokens"] = *u.AvgInputTokens
	}
	if u.AvgOutputTokens != nil {
		updates["avg_output_tokens"] = *u.AvgOutputTokens
	}
	if u.MonthlyRequestVolume != nil {
		updates["monthly_request_volume"] = *u.MonthlyRequestVolume
	}
	if u.Constraints != nil {
		cj, err := json.Marshal(*u.Constraints)
		if err != nil {
			return fmt.Errorf("marshal constraints: %w", err)
		}
		updates["constraints_json"] = string(cj)
	}

	res := s.db.Model(&userRow{}).Where("user_id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddConversation appends to the user's recent sample. Older rows beyond
// the sample bound stay in the table; Get only loads the newest N.
func (s *SQLStore) AddConversation(userID string, conv replay.Conversation) error {
	mj, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	return s.db.Create(&conversationRow{
		UserID:       userID,
		MessagesJSON: string(mj),
		ModelUsed:    conv.ModelUsed,
		TokensInput:  conv.TokensInput,
		TokensOutput: conv.TokensOutput,
		CreatedAt:    time.Now().UTC(),
	}).Error
}
