package state

import "sync"

// chatHistory is the append-only text log of a single chat.
type chatHistory struct {
	mu    sync.Mutex
	texts []string
}

// MemoryTracker is an in-process Tracker. The outer lock only guards the
// chat index; appends and reads of one chat serialize on that chat's own lock,
// so different chats never wait on each other.
type MemoryTracker struct {
	mu    sync.RWMutex
	chats map[int64]*chatHistory
}

var _ Tracker = (*MemoryTracker)(nil)

// NewMemoryTracker constructs an empty tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		chats: make(map[int64]*chatHistory),
	}
}

func (m *MemoryTracker) lookup(chatID int64) (*chatHistory, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.chats[chatID]
	return h, ok
}

func (m *MemoryTracker) lookupOrCreate(chatID int64) *chatHistory {
	if h, ok := m.lookup(chatID); ok {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.chats[chatID]
	if !ok {
		h = &chatHistory{}
		m.chats[chatID] = h
	}
	return h
}

// Record appends text to the chat history.
func (m *MemoryTracker) Record(chatID int64, text string) {
	h := m.lookupOrCreate(chatID)
	h.mu.Lock()
	h.texts = append(h.texts, text)
	h.mu.Unlock()
}

// LastCommand returns the most recent text recorded for the chat.
func (m *MemoryTracker) LastCommand(chatID int64) (string, bool) {
	h, ok := m.lookup(chatID)
	if !ok {
		return "", false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.texts) == 0 {
		return "", false
	}
	return h.texts[len(h.texts)-1], true
}

// History returns a copy of the chat's recorded texts, oldest first.
func (m *MemoryTracker) History(chatID int64) []string {
	h, ok := m.lookup(chatID)
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.texts))
	copy(out, h.texts)
	return out
}

// Chats reports how many chats have history.
func (m *MemoryTracker) Chats() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chats)
}
