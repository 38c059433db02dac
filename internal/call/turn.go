package call

import (
	"context"
	"log"
)

// Outcome is the turn controller's verdict on a finalized utterance.
type Outcome int

const (
	// Accepted means a response cycle was started for the utterance.
	Accepted Outcome = iota
	// Dropped means a cycle was already in flight and the utterance was
	// discarded. A caller who speaks over the agent's reply is assumed to be
	// reacting to audio already playing; queueing would only produce stale
	// answers.
	Dropped
)

// Generator produces the agent's reply text. It may fail.
type Generator interface {
	GenerateReply(ctx context.Context, caller CallerContext, history []TranscriptEntry, utterance string) (string, error)
}

// TurnController serializes response cycles for one session: at most one
// generate-synthesize-playback cycle runs at a time, and overlapping
// utterances are dropped rather than queued.
type TurnController struct {
	session  *Session
	gen      Generator
	playback *Playback
	sender   MediaSender
	fallback string
}

// NewTurnController wires a controller for one session. gen may be nil when
// the response generator is unconfigured; every utterance then gets the
// fallback phrase.
func NewTurnController(session *Session, gen Generator, playback *Playback, sender MediaSender, fallback string) *TurnController {
	return &TurnController{
		session:  session,
		gen:      gen,
		playback: playback,
		sender:   sender,
		fallback: fallback,
	}
}

// Accept starts a response cycle for the utterance unless one is already in
// flight. On acceptance the caller turn is appended to the transcript and
// the cycle runs asynchronously; the turn lock clears when playback
// completes or fails.
func (tc *TurnController) Accept(utterance string) Outcome {
	if !tc.session.beginTurn() {
		log.Printf("[turn] response in flight, dropping utterance call=%s text=%q", tc.session.ID, utterance)
		return Dropped
	}

	history := tc.session.Transcript()
	tc.session.AppendCaller(utterance)

	go tc.runCycle(history, utterance)
	return Accepted
}

func (tc *TurnController) runCycle(history []TranscriptEntry, utterance string) {
	defer tc.session.endTurn()

	// An in-flight generation may outlive the call; it finishes on its own
	// and playback below discards the result once the session is cancelled.
	genCtx := context.WithoutCancel(tc.session.Context())

	reply := tc.fallback
	if tc.gen == nil {
		log.Printf("[turn] no response generator configured call=%s", tc.session.ID)
	} else if generated, err := tc.gen.GenerateReply(genCtx, tc.session.Caller, history, utterance); err != nil {
		log.Printf("[turn] response generation failed call=%s: %v", tc.session.ID, err)
	} else {
		reply = generated
	}

	tc.session.AppendAgent(reply)
	log.Printf("[turn] agent reply call=%s text=%q", tc.session.ID, reply)

	if err := tc.playback.Send(tc.session.Context(), tc.sender, tc.session.StreamSID, reply); err != nil {
		log.Printf("[turn] playback failed call=%s: %v", tc.session.ID, err)
	}
}
