package call

import (
	"testing"
)

func TestStateTransitions(t *testing.T) {
	s := newSession("CA1", "MZ1", CallerContext{})

	s.MarkStreaming()
	if s.State() != StateStreaming {
		t.Fatalf("expected STREAMING, got %s", s.State())
	}

	s.End()
	if s.State() != StateEnded {
		t.Fatalf("expected ENDED, got %s", s.State())
	}

	// Ended is terminal.
	s.MarkStreaming()
	if s.State() != StateEnded {
		t.Fatalf("session left ENDED: %s", s.State())
	}
}

func TestEndCancelsContextIdempotently(t *testing.T) {
	s := newSession("CA1", "MZ1", CallerContext{})

	s.End()
	s.End()

	select {
	case <-s.Context().Done():
	default:
		t.Fatalf("expected session context to be cancelled")
	}
}

func TestTranscriptOrderAndIsolation(t *testing.T) {
	s := newSession("CA1", "MZ1", CallerContext{})

	s.AppendCaller("hi there")
	s.AppendAgent("hello, how can I help?")
	s.AppendCaller("tee time for four")

	entries := s.Transcript()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Speaker != SpeakerCaller || entries[1].Speaker != SpeakerAgent {
		t.Fatalf("unexpected speaker order: %s then %s", entries[0].Speaker, entries[1].Speaker)
	}
	if entries[2].Text != "tee time for four" {
		t.Fatalf("unexpected last entry: %q", entries[2].Text)
	}

	// The returned slice is a copy.
	entries[0].Text = "mutated"
	if s.Transcript()[0].Text != "hi there" {
		t.Fatalf("transcript copy leaked internal state")
	}
}

func TestTurnLock(t *testing.T) {
	s := newSession("CA1", "MZ1", CallerContext{})

	if !s.beginTurn() {
		t.Fatalf("expected first beginTurn to succeed")
	}
	if s.beginTurn() {
		t.Fatalf("expected second beginTurn to fail while busy")
	}
	if !s.TurnInFlight() {
		t.Fatalf("expected TurnInFlight while busy")
	}

	s.endTurn()
	if !s.beginTurn() {
		t.Fatalf("expected beginTurn to succeed after endTurn")
	}
}
