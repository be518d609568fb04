package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested chat does not exist.
var ErrNotFound = errors.New("chat not found")

// HistoryScanLimit caps how many recent chats a similarity scan loads.
const HistoryScanLimit = 100

// Chat is one saved question/answer pair. Chats are append-only and
// never modified after Save.
type Chat struct {
	ID           string    `json:"chat_id"`
	UserID       string    `json:"user_id"`
	Question     string    `json:"question"`
	Response     string    `json:"response"`
	ModelUsed    string    `json:"model_used"`
	QualityScore float64   `json:"quality_score"`
	Cost         float64   `json:"cost"`
	CreatedAt    time.Time `json:"created_at"`
}

// Match is a chat plus its similarity score against the probe question.
type Match struct {
	Chat  Chat
	Score float64
}

// Store persists chats and their question-hash index rows.
type Store interface {
	// Save inserts the chat and an index row keyed by questionHash.
	Save(chat Chat, questionHash string) error

	// Recent returns up to limit chats for the user, newest first.
	Recent(userID string, limit int) ([]Chat, error)

	// Get returns one chat by id, or ErrNotFound.
	Get(chatID string) (Chat, error)
}

// Service wraps a Store with id generation and similarity lookup.
type Service struct {
	store   Store
	matcher Matcher
	index   *VectorIndex
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMatcher replaces the default lexical matcher.
func WithMatcher(m Matcher) ServiceOption {
	return func(s *Service) { s.matcher = m }
}

// WithVectorIndex enables the semantic lookup path.
func WithVectorIndex(idx *VectorIndex) ServiceOption {
	return func(s *Service) { s.index = idx }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a history service over the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		matcher: Lexical{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save appends a chat to the user's history and returns its id.
func (s *Service) Save(ctx context.Context, chat Chat) (string, error) {
	if chat.UserID == "" {
		return "", errors.New("user id required")
	}
	chat.ID = uuid.NewString()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = s.now().UTC()
	}

	if err := s.store.Save(chat, QuestionHash(chat.Question)); err != nil {
		return "", fmt.Errorf("save chat: %w", err)
	}

	if s.index != nil {
		if err := s.index.Add(ctx, chat.UserID, chat.ID, chat.Question); err != nil {
			// The lexical path still works without the vector row.
			s.logger.Warn("vector index insert failed",
				slog.String("chat_id", chat.ID),
				slog.Any("error", err))
		}
	}

	s.logger.Debug("chat saved",
		slog.String("chat_id", chat.ID),
		slog.String("user_id", chat.UserID),
		slog.String("model", chat.ModelUsed))
	return chat.ID, nil
}

// History returns the user's chats, newest first, capped at
// HistoryScanLimit when limit is zero or larger than the cap.
func (s *Service) History(userID string, limit int) ([]Chat, error) {
	if limit <= 0 || limit > HistoryScanLimit {
		limit = HistoryScanLimit
	}
	return s.store.Recent(userID, limit)
}

// FindSimilar scans the user's recent history for the question most
// similar to the probe. Returns nil when no chat meets the threshold.
// The first chat reaching the maximum score wins ties.
func (s *Service) FindSimilar(userID, question string, threshold float64) (*Match, error) {
	chats, err := s.store.Recent(userID, HistoryScanLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var best *Match
	for _, chat := range chats {
		score := s.matcher.Score(question, chat.Question)
		if score < threshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{Chat: chat, Score: score}
		}
	}
	return best, nil
}

// FindSimilarSemantic looks up the nearest prior question by embedding
// distance. Requires a configured VectorIndex.
func (s *Service) FindSimilarSemantic(ctx context.Context, userID, question string, threshold float64) (*Match, error) {
	if s.index == nil {
		return nil, errors.New("vector index not configured")
	}
	chatID, score, ok, err := s.index.Nearest(ctx, userID, question)
	if err != nil {
		return nil, err
	}
	if !ok || score < threshold {
		return nil, nil
	}
	chat, err := s.store.Get(chatID)
	if err != nil {
		return nil, err
	}
	return &Match{Chat: chat, Score: score}, nil
}

// QuestionHash normalizes a question and hashes it for the lookup
// index. The hash is an exact-duplicate hint only; similarity always
// goes through the matcher.
func QuestionHash(question string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(question))))
	return hex.EncodeToString(sum[:])[:32]
}
