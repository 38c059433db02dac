package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/fairwaylabs/caddie/internal/audio"
	"github.com/fairwaylabs/caddie/internal/call"
	"github.com/fairwaylabs/caddie/internal/config"
	"github.com/fairwaylabs/caddie/internal/model/transport"
	"github.com/fairwaylabs/caddie/internal/service/stt"
	"github.com/fairwaylabs/caddie/internal/store"
)

const readTimeout = 90 * time.Second

// Handler drives the per-call event loop: it consumes the transport's
// start/media/stop/mark events, routes inbound audio through the codec to
// the transcription stream, and owns session setup and teardown.
type Handler struct {
	registry *call.Registry
	stt      stt.Service
	playback *call.Playback
	gen      call.Generator
	store    store.Store
	cfg      config.CallConfig
	upgrader websocket.Upgrader
}

// NewHandler wires the orchestrator. stt, gen and st may be nil when the
// matching collaborator is unconfigured; calls then degrade per component
// rather than failing.
func NewHandler(registry *call.Registry, sttSvc stt.Service, playback *call.Playback, gen call.Generator, st store.Store, cfg config.CallConfig) *Handler {
	return &Handler{
		registry: registry,
		stt:      sttSvc,
		playback: playback,
		gen:      gen,
		store:    st,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the media-stream websocket and the inbound call
// descriptor.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/media-stream", h.handleMediaStream)
	r.Post("/voice/incoming", h.handleIncomingCall)
}

// handleMediaStream serves one duplex media stream connection, which is one
// phone call.
func (h *Handler) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[voice] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[voice] media stream connected from %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sender := newWSSender(conn)
	go h.pingLoop(ctx, sender)

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	var (
		sess      *call.Session
		sttStream stt.Stream
	)
	// Disconnect without a stop event tears the call down the same way.
	defer func() { h.teardown(sess, sttStream) }()

	for {
		var env transport.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[voice] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch env.Event {
		case transport.EventStart:
			if env.Start == nil {
				log.Printf("[voice] start event without payload")
				continue
			}
			if sess != nil {
				log.Printf("[voice] duplicate start on live connection call=%s ignored", env.Start.CallSID)
				continue
			}
			sess, sttStream = h.startCall(env.Start, sender)

		case transport.EventMedia:
			// Media for an ended or never-started call is a late frame;
			// discard without side effects.
			if sess == nil || env.Media == nil || sess.State() != call.StateStreaming {
				continue
			}
			if env.StreamSID != "" && env.StreamSID != sess.StreamSID {
				continue
			}
			if env.Media.Track != "" && env.Media.Track != transport.TrackInbound {
				continue
			}
			sttStream = h.forwardMedia(sess, sttStream, env.Media.Payload)

		case transport.EventStop:
			h.teardown(sess, sttStream)
			sess, sttStream = nil, nil

		case transport.EventMark:
			// Playback acknowledgement, informational only.

		default:
			log.Printf("[voice] unsupported event %q", env.Event)
		}
	}
}

// startCall creates the session and its collaborators, then speaks the
// welcome line before any media is processed. A duplicate start for a live
// call id is ignored and the existing session keeps its caller context.
func (h *Handler) startCall(start *transport.StartPayload, sender call.MediaSender) (*call.Session, stt.Stream) {
	callID := start.CallSID
	from := start.CustomParameters["From"]
	if from == "" {
		from = "unknown"
	}

	log.Printf("[voice] call started call=%s from=%s stream=%s", callID, from, start.StreamSID)

	sess, err := h.registry.Create(callID, start.StreamSID, h.buildCallerContext(from))
	if err != nil {
		if errors.Is(err, call.ErrSessionExists) {
			log.Printf("[voice] duplicate start call=%s ignored", callID)
		} else {
			log.Printf("[voice] session create failed call=%s: %v", callID, err)
		}
		return nil, nil
	}
	sess.MarkStreaming()

	var sttStream stt.Stream
	if h.stt != nil {
		sttStream, err = h.stt.Open(sess.Context(), callID)
		if err != nil {
			// The call continues audio-only; nothing to transcribe means no
			// replies, but the caller is not cut off.
			log.Printf("[voice] stt unavailable call=%s, continuing without transcription: %v", callID, err)
		} else {
			turns := call.NewTurnController(sess, h.gen, h.playback, sender, h.cfg.FallbackText)
			router := call.NewRouter(sess, turns)
			go consumeFragments(sess, sttStream, router)
		}
	}

	// Scripted greeting; no caller utterance triggered it, so it bypasses
	// the turn controller. Sent before any media event is handled.
	if err := h.playback.Send(sess.Context(), sender, sess.StreamSID, h.cfg.WelcomeText); err != nil {
		log.Printf("[voice] welcome playback failed call=%s: %v", callID, err)
	}

	return sess, sttStream
}

// buildCallerContext snapshots caller identity and prior-conversation
// summary. Store failures degrade to an anonymous context.
func (h *Handler) buildCallerContext(phoneNumber string) call.CallerContext {
	callerCtx := call.CallerContext{
		PhoneNumber:    phoneNumber,
		CourseName:     h.cfg.CourseName,
		CourseLocation: h.cfg.CourseLocation,
	}

	if h.store == nil {
		return callerCtx
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	caller, err := h.store.IdentifyCaller(ctx, phoneNumber)
	if err != nil {
		log.Printf("[voice] caller lookup failed phone=%s: %v", phoneNumber, err)
		return callerCtx
	}
	callerCtx.CallerID = caller.ID

	summary, err := h.store.RecentSummary(ctx, caller.ID, 3)
	if err != nil {
		log.Printf("[voice] history lookup failed caller=%s: %v", caller.ID, err)
		return callerCtx
	}
	callerCtx.HistorySummary = summary

	return callerCtx
}

// forwardMedia decodes one inbound frame and pushes it to the recognizer.
// Frame problems drop the frame, never the session; a broken recognizer
// connection degrades the call to audio-only for its remainder.
func (h *Handler) forwardMedia(sess *call.Session, sttStream stt.Stream, payload string) stt.Stream {
	if sttStream == nil {
		return nil
	}

	narrow, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		log.Printf("[voice] media payload decode failed call=%s: %v", sess.ID, err)
		return sttStream
	}

	if err := sttStream.Send(audio.NarrowToWide(narrow)); err != nil {
		log.Printf("[voice] stt send failed call=%s, degrading to audio-only: %v", sess.ID, err)
		_ = sttStream.Close()
		return nil
	}
	return sttStream
}

// teardown runs the stop path: final state capture, best-effort transcript
// flush, recognizer shutdown, registry removal. Idempotent, and keyed to the
// session object so a stale teardown never evicts a fresh call reusing the
// id.
func (h *Handler) teardown(sess *call.Session, sttStream stt.Stream) {
	if sess == nil {
		return
	}
	if !h.registry.Release(sess) {
		return
	}
	sess.End()

	duration := sess.Duration()
	log.Printf("[voice] call ended call=%s duration=%s", sess.ID, duration.Round(time.Millisecond))

	if sttStream != nil {
		if err := sttStream.Close(); err != nil {
			log.Printf("[voice] stt close failed call=%s: %v", sess.ID, err)
		}
	}

	if h.store == nil || sess.Caller.CallerID == "" {
		return
	}

	rec := store.ConversationRecord{
		CallerID:        sess.Caller.CallerID,
		CallID:          sess.ID,
		Transcript:      renderTranscript(sess.Transcript()),
		Channel:         "voice",
		DurationSeconds: int(math.Round(duration.Seconds())),
	}

	// Fire and forget off the event loop; a store failure only costs the
	// record.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.store.SaveConversation(ctx, rec); err != nil {
			log.Printf("[voice] transcript flush failed call=%s: %v", rec.CallID, err)
		}
	}()
}

// consumeFragments pumps recognizer output into the transcript router until
// the stream closes.
func consumeFragments(sess *call.Session, sttStream stt.Stream, router *call.Router) {
	for frag := range sttStream.Fragments() {
		router.OnFragment(frag.Text, frag.IsFinal)
	}
	log.Printf("[voice] stt stream finished call=%s", sess.ID)
}

func renderTranscript(entries []call.TranscriptEntry) string {
	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		label := "Customer"
		if entry.Speaker == call.SpeakerAgent {
			label = "Agent"
		}
		fmt.Fprintf(&b, "%s: %s", label, entry.Text)
	}
	return b.String()
}

func (h *Handler) pingLoop(ctx context.Context, sender *wsSender) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sender.Ping(); err != nil {
				return
			}
		}
	}
}

// wsSender serializes writes to the transport connection; gorilla permits a
// single concurrent writer and frames are written from the playback
// goroutines as well as the ping loop.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSSender(conn *websocket.Conn) *wsSender {
	return &wsSender{conn: conn}
}

func (s *wsSender) SendMedia(streamSID, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(transport.NewOutboundMedia(streamSID, payload))
}

func (s *wsSender) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}
