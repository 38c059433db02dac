package call

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State tracks where a call sits in its lifecycle. A session never leaves
// Ended.
type State string

const (
	StateInitiated State = "INITIATED"
	StateStreaming State = "STREAMING"
	StateEnded     State = "ENDED"
)

// Speaker tags for transcript entries.
const (
	SpeakerCaller = "caller"
	SpeakerAgent  = "agent"
)

// TranscriptEntry records one finished turn of the conversation.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// CallerContext is the immutable snapshot captured when a call starts:
// who is calling, what they talked about before, and which course the
// receptionist is answering for. It is built once and never mutated.
type CallerContext struct {
	CallerID       string
	PhoneNumber    string
	CourseName     string
	CourseLocation string
	HistorySummary string
}

// Session is the per-call state. The Registry owns its lifetime; every other
// component addresses it through its id and touches it only for the duration
// of one operation.
type Session struct {
	ID        string
	StreamSID string
	Caller    CallerContext

	startedAt time.Time

	mu         sync.Mutex
	state      State
	transcript []TranscriptEntry

	turnBusy atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(id, streamSID string, caller CallerContext) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:         id,
		StreamSID:  streamSID,
		Caller:     caller,
		startedAt:  time.Now(),
		state:      StateInitiated,
		transcript: make([]TranscriptEntry, 0, 16),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Context is cancelled when the call ends; playback pacing and other
// long-running work for this session select on it.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Duration reports how long the call has been (or was) live.
func (s *Session) Duration() time.Duration {
	return time.Since(s.startedAt)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkStreaming moves the session into the media-accepting state. It is a
// no-op once the session has ended.
func (s *Session) MarkStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInitiated {
		s.state = StateStreaming
	}
}

// End moves the session to its terminal state and cancels its context. Safe
// to call more than once.
func (s *Session) End() {
	s.mu.Lock()
	s.state = StateEnded
	s.mu.Unlock()
	s.cancel()
}

// AppendCaller records a finalized caller utterance.
func (s *Session) AppendCaller(text string) TranscriptEntry {
	return s.append(SpeakerCaller, text)
}

// AppendAgent records a spoken agent reply.
func (s *Session) AppendAgent(text string) TranscriptEntry {
	return s.append(SpeakerAgent, text)
}

func (s *Session) append(speaker, text string) TranscriptEntry {
	entry := TranscriptEntry{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.transcript = append(s.transcript, entry)
	s.mu.Unlock()
	return entry
}

// Transcript returns a copy of the transcript log in arrival order.
func (s *Session) Transcript() []TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]TranscriptEntry, len(s.transcript))
	copy(copied, s.transcript)
	return copied
}

// beginTurn claims the session's turn lock. It fails while a
// generate-and-playback cycle is already in flight.
func (s *Session) beginTurn() bool {
	return s.turnBusy.CompareAndSwap(false, true)
}

func (s *Session) endTurn() {
	s.turnBusy.Store(false)
}

// TurnInFlight reports whether a response cycle is currently running.
func (s *Session) TurnInFlight() bool {
	return s.turnBusy.Load()
}
