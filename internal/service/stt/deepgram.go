// Package stt streams caller audio to the transcription service and emits
// recognition fragments per call. Utterance endpointing happens service-side
// via its trailing-silence threshold; this client only relays the fragments.
package stt

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fairwaylabs/caddie/internal/config"
)

// Fragment is one recognition update for a call.
type Fragment struct {
	CallID string
	Text   string
	// IsFinal marks a finished segment of the utterance.
	IsFinal bool
	// SpeechFinal marks the recognizer's silence endpoint.
	SpeechFinal bool
	Confidence  float64
}

// Stream is one live recognition session. Send pushes wide-format PCM;
// Fragments delivers results in the order the service finalized them and is
// closed when the connection ends. Close must be called at call teardown.
type Stream interface {
	Send(pcm []byte) error
	Fragments() <-chan Fragment
	Close() error
}

// Service opens recognition streams.
type Service interface {
	Open(ctx context.Context, callID string) (Stream, error)
}

// Deepgram speaks the Deepgram live transcription websocket protocol.
type Deepgram struct {
	cfg    config.STTConfig
	dialer *websocket.Dialer
}

func NewDeepgram(cfg config.STTConfig) *Deepgram {
	return &Deepgram{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Open dials a live transcription stream for one call.
func (d *Deepgram) Open(ctx context.Context, callID string) (Stream, error) {
	wsURL, err := d.buildURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if d.cfg.APIKey != "" {
		header.Set("Authorization", "Token "+d.cfg.APIKey)
	}

	conn, resp, err := d.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stt dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("stt dial failed: %w", err)
	}

	log.Printf("[stt] stream opened call=%s", callID)

	s := &liveStream{
		callID: callID,
		conn:   conn,
		frags:  make(chan Fragment, 16),
	}
	go s.readLoop()
	return s, nil
}

func (d *Deepgram) buildURL() (string, error) {
	u, err := url.Parse(d.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid stt url %q: %w", d.cfg.URL, err)
	}

	q := u.Query()
	q.Set("model", d.cfg.Model)
	q.Set("language", d.cfg.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("endpointing", strconv.Itoa(d.cfg.EndpointingMs))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

type liveStream struct {
	callID string
	conn   *websocket.Conn
	frags  chan Fragment

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// resultMessage is the service's JSON result frame.
type resultMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *liveStream) Send(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (s *liveStream) Fragments() <-chan Fragment {
	return s.frags
}

// Close finishes the stream gracefully. Idempotent.
func (s *liveStream) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		// Best effort; the recognizer flushes pending results on this.
		if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
			log.Printf("[stt] close message failed call=%s: %v", s.callID, err)
		}
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// readLoop owns the fragment channel: it translates result frames into
// Fragments and closes the channel when the connection goes away.
func (s *liveStream) readLoop() {
	defer close(s.frags)

	for {
		var msg resultMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[stt] read error call=%s: %v", s.callID, err)
			}
			return
		}

		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}

		alt := msg.Channel.Alternatives[0]
		s.frags <- Fragment{
			CallID:      s.callID,
			Text:        alt.Transcript,
			IsFinal:     msg.IsFinal,
			SpeechFinal: msg.SpeechFinal,
			Confidence:  alt.Confidence,
		}
	}
}
