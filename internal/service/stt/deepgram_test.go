package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fairwaylabs/caddie/internal/config"
)

// fakeRecognizer implements just enough of the live transcription protocol:
// it records the dial request, echoes a scripted result per binary frame,
// and acknowledges the close message.
type fakeRecognizer struct {
	upgrader websocket.Upgrader

	gotAuth  string
	gotQuery map[string]string

	results []string // JSON frames sent back, one per binary frame received
	closed  chan string
}

func (f *fakeRecognizer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.gotAuth = r.Header.Get("Authorization")
	f.gotQuery = map[string]string{}
	for k := range r.URL.Query() {
		f.gotQuery[k] = r.URL.Query().Get(k)
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sent := 0
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			if sent < len(f.results) {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(f.results[sent])); err != nil {
					return
				}
				sent++
			}
		case websocket.TextMessage:
			f.closed <- string(payload)
			return
		}
	}
}

func newTestService(t *testing.T, rec *fakeRecognizer) (*Deepgram, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	cfg := config.STTConfig{
		APIKey:        "test-key",
		URL:           "ws" + strings.TrimPrefix(srv.URL, "http"),
		Model:         "nova-2",
		Language:      "en-US",
		EndpointingMs: 400,
		Enabled:       true,
	}
	return NewDeepgram(cfg), srv
}

func TestOpenSetsProtocolParameters(t *testing.T) {
	rec := &fakeRecognizer{closed: make(chan string, 1)}
	svc, _ := newTestService(t, rec)

	stream, err := svc.Open(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	if rec.gotAuth != "Token test-key" {
		t.Fatalf("unexpected auth header: %q", rec.gotAuth)
	}
	want := map[string]string{
		"model":           "nova-2",
		"language":        "en-US",
		"encoding":        "linear16",
		"sample_rate":     "16000",
		"channels":        "1",
		"interim_results": "true",
		"endpointing":     "400",
	}
	for k, v := range want {
		if rec.gotQuery[k] != v {
			t.Fatalf("query param %s: expected %q, got %q", k, v, rec.gotQuery[k])
		}
	}
}

func TestFragmentsFromResults(t *testing.T) {
	rec := &fakeRecognizer{
		closed: make(chan string, 1),
		results: []string{
			`{"type":"Results","is_final":false,"speech_final":false,"channel":{"alternatives":[{"transcript":"book a tee","confidence":0.8}]}}`,
			`{"type":"Metadata"}`,
			`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"book a tee time","confidence":0.97}]}}`,
		},
	}
	svc, _ := newTestService(t, rec)

	stream, err := svc.Open(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	for i := 0; i < 3; i++ {
		if err := stream.Send(make([]byte, 640)); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}

	first := recvFragment(t, stream)
	if first.IsFinal || first.Text != "book a tee" {
		t.Fatalf("unexpected interim fragment: %+v", first)
	}

	// The metadata frame is skipped; the next fragment is the final.
	second := recvFragment(t, stream)
	if !second.IsFinal || !second.SpeechFinal {
		t.Fatalf("expected final fragment, got %+v", second)
	}
	if second.Text != "book a tee time" || second.Confidence != 0.97 {
		t.Fatalf("unexpected final fragment: %+v", second)
	}
	if second.CallID != "CA1" {
		t.Fatalf("fragment not tagged with call id: %q", second.CallID)
	}
}

func TestCloseSendsFinishMessageAndEndsStream(t *testing.T) {
	rec := &fakeRecognizer{closed: make(chan string, 1)}
	svc, _ := newTestService(t, rec)

	stream, err := svc.Open(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	// Idempotent.
	_ = stream.Close()

	select {
	case msg := <-rec.closed:
		if !strings.Contains(msg, "CloseStream") {
			t.Fatalf("unexpected close message: %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("recognizer never saw the close message")
	}

	select {
	case _, ok := <-stream.Fragments():
		if ok {
			t.Fatalf("unexpected fragment after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fragment channel never closed")
	}
}

func TestSendEmptyFrameIsNoop(t *testing.T) {
	rec := &fakeRecognizer{closed: make(chan string, 1)}
	svc, _ := newTestService(t, rec)

	stream, err := svc.Open(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	if err := stream.Send(nil); err != nil {
		t.Fatalf("unexpected error for empty frame: %v", err)
	}
}

func recvFragment(t *testing.T, stream Stream) Fragment {
	t.Helper()
	select {
	case frag, ok := <-stream.Fragments():
		if !ok {
			t.Fatalf("fragment channel closed early")
		}
		return frag
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fragment")
	}
	return Fragment{}
}
