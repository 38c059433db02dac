package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/fairwaylabs/caddie/internal/audio"
	"github.com/fairwaylabs/caddie/internal/model/transport"
)

// calltester simulates a telephony media stream against a running server:
// it opens the websocket, sends a start event, streams frames from a raw
// mu-law file (or silence), then sends stop, counting the audio frames the
// server plays back.
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] could not load .env, using system environment: %v", err)
	}

	url := flag.String("url", "ws://localhost:8080/v1/media-stream", "media-stream websocket URL")
	audioPath := flag.String("audio", "", "raw 8kHz mu-law file to stream (silence when empty)")
	duration := flag.Duration("duration", 5*time.Second, "silence duration when no audio file is given")
	from := flag.String("from", "+15550100", "caller number passed as a stream parameter")
	callSID := flag.String("call", "", "call id, auto-generated when empty")
	flag.Parse()

	if *callSID == "" {
		*callSID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}
	streamSID := "MZ" + *callSID

	frames, err := loadFrames(*audioPath, *duration)
	if err != nil {
		log.Fatalf("failed to prepare audio: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	received := make(chan int)
	go countPlayback(conn, received)

	start := transport.Envelope{
		Event:     transport.EventStart,
		StreamSID: streamSID,
		Start: &transport.StartPayload{
			CallSID:   *callSID,
			StreamSID: streamSID,
			CustomParameters: map[string]string{
				"From": *from,
			},
		},
	}
	if err := conn.WriteJSON(start); err != nil {
		log.Fatalf("start write failed: %v", err)
	}
	log.Printf("call started call=%s stream=%s frames=%d", *callSID, streamSID, len(frames))

	ticker := time.NewTicker(audio.FrameDurationMs * time.Millisecond)
	defer ticker.Stop()

	for i, frame := range frames {
		<-ticker.C
		env := transport.Envelope{
			Event:     transport.EventMedia,
			StreamSID: streamSID,
			Media: &transport.MediaPayload{
				Track:   transport.TrackInbound,
				Chunk:   fmt.Sprintf("%d", i+1),
				Payload: base64.StdEncoding.EncodeToString(frame),
			},
		}
		if err := conn.WriteJSON(env); err != nil {
			log.Fatalf("media write failed at frame %d: %v", i, err)
		}
	}

	stop := transport.Envelope{
		Event:     transport.EventStop,
		StreamSID: streamSID,
		Stop:      &transport.StopPayload{CallSID: *callSID},
	}
	if err := conn.WriteJSON(stop); err != nil {
		log.Fatalf("stop write failed: %v", err)
	}

	// Give queued playback a moment to drain before closing.
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case n := <-received:
		log.Printf("call finished, received %d playback frames", n)
	case <-time.After(5 * time.Second):
		log.Printf("call finished, playback counter did not settle")
	}
}

// loadFrames slices the input into 20ms frames, padding the tail.
func loadFrames(path string, silence time.Duration) ([][]byte, error) {
	var raw []byte
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		// 0xFF is mu-law silence.
		n := int(silence / (audio.FrameDurationMs * time.Millisecond))
		raw = make([]byte, n*audio.FrameBytes)
		for i := range raw {
			raw[i] = 0xFF
		}
	}

	var frames [][]byte
	for off := 0; off < len(raw); off += audio.FrameBytes {
		end := off + audio.FrameBytes
		if end > len(raw) {
			padded := make([]byte, audio.FrameBytes)
			n := copy(padded, raw[off:])
			for i := n; i < len(padded); i++ {
				padded[i] = 0xFF
			}
			frames = append(frames, padded)
			break
		}
		frames = append(frames, raw[off:end])
	}
	return frames, nil
}

// countPlayback drains server messages and reports how many outbound media
// frames arrived once the connection closes.
func countPlayback(conn *websocket.Conn, done chan<- int) {
	count := 0
	for {
		var msg transport.OutboundMedia
		if err := conn.ReadJSON(&msg); err != nil {
			done <- count
			return
		}
		if msg.Event == transport.EventMedia {
			count++
		}
	}
}
