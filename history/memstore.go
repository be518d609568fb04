package history

import "sync"

// MemStore is an in-memory chat store, used in tests and as the
// default when no database is configured.
type MemStore struct {
	mu     sync.RWMutex
	byUser map[string][]Chat // newest first
	byID   map[string]Chat
	index  map[string][]string // questionHash -> chat ids
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		byUser: make(map[string][]Chat),
		byID:   make(map[string]Chat),
		index:  make(map[string][]string),
	}
}

// Save appends the chat and its index row.
func (m *MemStore) Save(chat Chat, questionHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byUser[chat.UserID] = append([]Chat{chat}, m.byUser[chat.UserID]...)
	m.byID[chat.ID] = chat
	m.index[questionHash] = append(m.index[questionHash], chat.ID)
	return nil
}

// Recent returns up to limit chats for the user, newest first.
func (m *MemStore) Recent(userID string, limit int) ([]Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chats := m.byUser[userID]
	if len(chats) > limit {
		chats = chats[:limit]
	}
	out := make([]Chat, len(chats))
	copy(out, chats)
	return out, nil
}

// Get returns one chat by id.
func (m *MemStore) Get(chatID string) (Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, ok := m.byID[chatID]
	if !ok {
		return Chat{}, ErrNotFound
	}
	return chat, nil
}
