package agent

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/fairwaylabs/caddie/internal/call"
)

func TestBuildSystemPromptIncludesCallerContext(t *testing.T) {
	prompt := buildSystemPrompt(call.CallerContext{
		CallerID:       "c-1",
		PhoneNumber:    "+15550100",
		CourseName:     "Fox Hollow Golf Course",
		CourseLocation: "Troy, Michigan",
		HistorySummary: "On 2026-08-01 (voice, 42s):\nCustomer: tee time please",
	})

	for _, want := range []string{
		"Fox Hollow Golf Course",
		"Troy, Michigan",
		"+15550100",
		"Previous conversations with this caller:",
		"tee time please",
		"live voice call",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildSystemPromptWithoutHistory(t *testing.T) {
	prompt := buildSystemPrompt(call.CallerContext{CourseName: "Fox Hollow Golf Course"})

	if strings.Contains(prompt, "Previous conversations") {
		t.Fatalf("first-time caller prompt mentions history:\n%s", prompt)
	}
	if strings.Contains(prompt, "Caller phone") {
		t.Fatalf("prompt mentions a phone number that was never supplied:\n%s", prompt)
	}
}

func TestBuildHistoryMessagesMapsSpeakers(t *testing.T) {
	entries := []call.TranscriptEntry{
		{Speaker: call.SpeakerCaller, Text: "do you have carts"},
		{Speaker: call.SpeakerAgent, Text: "we do"},
	}

	messages := buildHistoryMessages(entries)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != schema.User || messages[0].Content != "do you have carts" {
		t.Fatalf("unexpected first message: %+v", messages[0])
	}
	if messages[1].Role != schema.Assistant || messages[1].Content != "we do" {
		t.Fatalf("unexpected second message: %+v", messages[1])
	}
}

func TestBuildHistoryMessagesLimit(t *testing.T) {
	entries := make([]call.TranscriptEntry, 14)
	for i := range entries {
		speaker := call.SpeakerCaller
		if i%2 == 1 {
			speaker = call.SpeakerAgent
		}
		entries[i] = call.TranscriptEntry{Speaker: speaker, Text: strings.Repeat("x", i+1)}
	}

	messages := buildHistoryMessages(entries)
	if len(messages) != 10 {
		t.Fatalf("expected history capped at 10, got %d", len(messages))
	}
	// The oldest entries are the ones dropped.
	if messages[0].Content != strings.Repeat("x", 5) {
		t.Fatalf("unexpected first retained entry: %q", messages[0].Content)
	}
}

func TestBuildHistoryMessagesEmpty(t *testing.T) {
	if got := buildHistoryMessages(nil); got != nil {
		t.Fatalf("expected nil for empty history, got %v", got)
	}
}
