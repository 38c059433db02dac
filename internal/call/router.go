package call

import (
	"log"
	"strings"
)

// TurnAcceptor gates response cycles; see TurnController.
type TurnAcceptor interface {
	Accept(utterance string) Outcome
}

// Router consumes incremental transcription fragments for one session and
// decides when a finished utterance should trigger a response. End-of-
// utterance detection happens upstream in the transcription service's
// silence endpointing; the router only reacts to the final flag.
type Router struct {
	session *Session
	turns   TurnAcceptor
}

func NewRouter(session *Session, turns TurnAcceptor) *Router {
	return &Router{session: session, turns: turns}
}

// OnFragment handles one recognition fragment, in the order the
// transcription service emitted them. Interim fragments and blank finals
// update nothing; a non-blank final is handed to the turn controller exactly
// once.
func (r *Router) OnFragment(text string, isFinal bool) {
	if !isFinal {
		return
	}

	utterance := strings.TrimSpace(text)
	if utterance == "" {
		return
	}

	log.Printf("[router] finalized utterance call=%s text=%q", r.session.ID, utterance)
	r.turns.Accept(utterance)
}
