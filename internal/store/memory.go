package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is the in-process store used in tests and credential-less runs.
type Memory struct {
	mu            sync.RWMutex
	callersByID   map[string]Caller
	callerIDs     map[string]string // phone number -> caller id
	conversations map[string][]ConversationRecord
}

func NewMemory() *Memory {
	return &Memory{
		callersByID:   make(map[string]Caller),
		callerIDs:     make(map[string]string),
		conversations: make(map[string][]ConversationRecord),
	}
}

func (m *Memory) IdentifyCaller(_ context.Context, phoneNumber string) (Caller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.callerIDs[phoneNumber]; ok {
		caller := m.callersByID[id]
		caller.LastSeen = time.Now().UTC()
		m.callersByID[id] = caller
		return caller, nil
	}

	caller := Caller{
		ID:          uuid.NewString(),
		PhoneNumber: phoneNumber,
		LastSeen:    time.Now().UTC(),
	}
	m.callersByID[caller.ID] = caller
	m.callerIDs[phoneNumber] = caller.ID
	return caller, nil
}

func (m *Memory) RecentSummary(_ context.Context, callerID string, limit int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.conversations[callerID]
	if len(records) == 0 {
		return "", nil
	}

	// Newest first.
	recent := make([]ConversationRecord, 0, limit)
	for i := len(records) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, records[i])
	}
	return summarize(recent), nil
}

func (m *Memory) SaveConversation(_ context.Context, rec ConversationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	m.conversations[rec.CallerID] = append(m.conversations[rec.CallerID], rec)

	if caller, ok := m.callersByID[rec.CallerID]; ok {
		caller.TotalConversations++
		m.callersByID[rec.CallerID] = caller
	}
	return nil
}

// Conversations returns stored records for a caller, oldest first.
func (m *Memory) Conversations(callerID string) []ConversationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.conversations[callerID]
	copied := make([]ConversationRecord, len(records))
	copy(copied, records)
	return copied
}
