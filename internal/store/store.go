// Package store persists callers and finished call transcripts and feeds
// prior-conversation context back into new calls. The voice pipeline treats
// it as a best-effort collaborator: a store failure never affects a live
// call.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Caller identifies a repeat caller by phone number. Accounts are created
// automatically on first contact.
type Caller struct {
	ID                 string    `json:"id"`
	PhoneNumber        string    `json:"phoneNumber"`
	TotalConversations int       `json:"totalConversations"`
	LastSeen           time.Time `json:"lastSeen"`
}

// ConversationRecord is one finished call's bookkeeping.
type ConversationRecord struct {
	ID              string    `json:"id"`
	CallerID        string    `json:"callerId"`
	CallID          string    `json:"callId"`
	Transcript      string    `json:"transcript"`
	Channel         string    `json:"channel"`
	DurationSeconds int       `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store is the persistence collaborator consumed by the call orchestrator.
type Store interface {
	// IdentifyCaller finds the caller for phoneNumber, creating the account
	// on first contact.
	IdentifyCaller(ctx context.Context, phoneNumber string) (Caller, error)
	// RecentSummary renders the caller's most recent conversations as prompt
	// context.
	RecentSummary(ctx context.Context, callerID string, limit int) (string, error)
	// SaveConversation records a finished call.
	SaveConversation(ctx context.Context, rec ConversationRecord) error
}

// summarize renders records, newest first, into the context block injected
// into the agent prompt.
func summarize(records []ConversationRecord) string {
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	for i, rec := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		transcript := rec.Transcript
		const maxChars = 500
		if len(transcript) > maxChars {
			transcript = transcript[:maxChars] + "..."
		}
		fmt.Fprintf(&b, "On %s (%s, %ds):\n%s", rec.CreatedAt.Format("2006-01-02"), rec.Channel, rec.DurationSeconds, transcript)
	}
	return b.String()
}
