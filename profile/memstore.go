package profile

import (
	"sync"
	"time"

	"github.com/paretolabs/modelopt/replay"
)

// MemStore is an in-memory profile Store.
type MemStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{profiles: make(map[string]Profile)}
}

// Get returns a user's profile or ErrNotFound.
func (s *MemStore) Get(userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	cp.RecentConversations = append([]replay.Conversation(nil), p.RecentConversations...)
	return &cp, nil
}

// Put creates or replaces a profile.
func (s *MemStore) Put(p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	return nil
}

// Update applies a partial mutation.
func (s *MemStore) Update(userID string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	if u.CurrentModel != nil {
		p.CurrentModel = *u.CurrentModel
	}
	if u.UseCase != nil {
		p.UseCase = *u.UseCase
	}
	if u.PreferredOutputFormat != nil {
		p.PreferredOutputFormat = *u.PreferredOutputFormat
	}
	if u.AvgInputTokens != nil {
		p.AvgInputTokens = *u.AvgInputTokens
	}
	if u.AvgOutputTokens != nil {
		p.AvgOutputTokens = *u.AvgOutputTokens
	}
	if u.MonthlyRequestVolume != nil {
		p.MonthlyRequestVolume = *u.MonthlyRequestVolume
	}
	if u.Constraints != nil {
		p.Constraints = *u.Constraints
	}
	p.UpdatedAt = time.Now().UTC()
	s.profiles[userID] = p
	return nil
}

// AddConversation appends to the user's recent sample, keeping only the
// most recent ConversationSampleSize entries.
func (s *MemStore) AddConversation(userID string, conv replay.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.RecentConversations = append([]replay.Conversation{conv}, p.RecentConversations...)
	if len(p.RecentConversations) > ConversationSampleSize {
		p.RecentConversations = p.RecentConversations[:ConversationSampleSize]
	}
	s.profiles[userID] = p
	return nil
}
