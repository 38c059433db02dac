package call

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fairwaylabs/caddie/internal/audio"
)

// Synthesizer turns reply text into wide-format PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	SampleRate() int
}

// MediaSender writes one outbound media payload to the transport.
type MediaSender interface {
	SendMedia(streamSID, payload string) error
}

var errNoSynthesizer = errors.New("call: no synthesizer configured")

// Playback converts synthesized audio to the transport's narrowband format
// and feeds it out in fixed 20 ms frames at real-time pace. Bursting the
// whole clip at once would overflow the transport's playback buffer and get
// older frames discarded.
type Playback struct {
	tts      Synthesizer
	interval time.Duration
}

func NewPlayback(tts Synthesizer) *Playback {
	return &Playback{tts: tts, interval: audio.FrameDurationMs * time.Millisecond}
}

// NewPlaybackWithInterval overrides the pacing interval. Used by tests that
// cannot afford real-time pacing.
func NewPlaybackWithInterval(tts Synthesizer, interval time.Duration) *Playback {
	return &Playback{tts: tts, interval: interval}
}

// Send synthesizes text and streams it to the transport frame by frame.
// Synthesis failures are logged and leave the caller in silence; the session
// itself is unaffected. ctx cancellation (call teardown) stops pacing
// between frames.
func (p *Playback) Send(ctx context.Context, sender MediaSender, streamSID, text string) error {
	if p.tts == nil {
		return errNoSynthesizer
	}

	// Teardown must not abort a synthesis already underway; a late result is
	// simply never played because the frame loop checks ctx.
	pcm, err := p.tts.Synthesize(context.WithoutCancel(ctx), text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	narrow, err := audio.WideToNarrow(pcm, p.tts.SampleRate())
	if err != nil {
		return fmt.Errorf("convert synthesized audio: %w", err)
	}
	if len(narrow) == 0 {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	frames := 0
	for off := 0; off < len(narrow); off += audio.FrameBytes {
		end := off + audio.FrameBytes
		if end > len(narrow) {
			end = len(narrow)
		}

		payload := base64.StdEncoding.EncodeToString(narrow[off:end])
		if err := sender.SendMedia(streamSID, payload); err != nil {
			return fmt.Errorf("send media frame: %w", err)
		}
		frames++

		if end == len(narrow) {
			break
		}
		select {
		case <-ctx.Done():
			log.Printf("[playback] stream=%s cancelled after %d frames", streamSID, frames)
			return ctx.Err()
		case <-ticker.C:
		}
	}

	log.Printf("[playback] stream=%s sent %d frames (%d bytes)", streamSID, frames, len(narrow))
	return nil
}
