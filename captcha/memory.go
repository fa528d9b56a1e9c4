package captcha

import (
	"sync"
	"time"
)

// memoryTTL is how long a remembered strategy stays valid. The portal
// rotates its login page rarely; a day is plenty.
const memoryTTL = 24 * time.Hour

// memEntry stores the preferred strategy for an account with a TTL.
type memEntry struct {
	strategy  string
	expiresAt time.Time
}

// Memory remembers which detection strategy worked last for each account,
// so repeat runs skip straight to it.
type Memory struct {
	store sync.Map // accountID (string) -> *memEntry
	ttl   time.Duration
}

// NewMemory creates a Memory with the given TTL.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl}
}

// Get returns the remembered strategy for an account, or "" if not found
// or expired.
func (m *Memory) Get(accountID string) string {
	val, ok := m.store.Load(accountID)
	if !ok {
		return ""
	}
	entry := val.(*memEntry)
	if time.Now().After(entry.expiresAt) {
		m.store.Delete(accountID)
		return ""
	}
	return entry.strategy
}

// Set records which strategy succeeded for an account.
func (m *Memory) Set(accountID, strategy string) {
	m.store.Store(accountID, &memEntry{
		strategy:  strategy,
		expiresAt: time.Now().Add(m.ttl),
	})
}

// Delete removes the memory for an account.
func (m *Memory) Delete(accountID string) {
	m.store.Delete(accountID)
}
