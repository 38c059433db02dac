package audio

import (
	"errors"
	"testing"
)

func TestNarrowToWideDoublesSampleCount(t *testing.T) {
	// One 20ms frame of mu-law silence.
	mulaw := make([]byte, FrameBytes)
	for i := range mulaw {
		mulaw[i] = 0xFF
	}

	wide := NarrowToWide(mulaw)

	wantSamples := FrameBytes * WideRate / NarrowRate
	if got := len(wide) / 2; got != wantSamples {
		t.Fatalf("expected %d samples, got %d", wantSamples, got)
	}
}

func TestNarrowToWideEmptyInput(t *testing.T) {
	if got := NarrowToWide(nil); len(got) != 0 {
		t.Fatalf("expected no output for empty input, got %d bytes", len(got))
	}
}

func TestWideToNarrowPreservesDuration(t *testing.T) {
	// 100ms of synthesized audio at 24 kHz.
	const sourceRate = 24000
	const samples = sourceRate / 10
	pcm := make([]byte, samples*2)

	narrow, err := WideToNarrow(pcm, sourceRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantBytes := NarrowRate / 10 // 100ms of 8-bit narrowband
	if diff := len(narrow) - wantBytes; diff < -1 || diff > 1 {
		t.Fatalf("expected about %d narrowband bytes, got %d", wantBytes, len(narrow))
	}
}

func TestWideToNarrowOddLength(t *testing.T) {
	_, err := WideToNarrow(make([]byte, 321), 16000)
	if !errors.Is(err, ErrOddPCMLength) {
		t.Fatalf("expected ErrOddPCMLength, got %v", err)
	}
}

func TestWideToNarrowBadRate(t *testing.T) {
	_, err := WideToNarrow(make([]byte, 320), 0)
	if !errors.Is(err, ErrBadSampleRate) {
		t.Fatalf("expected ErrBadSampleRate, got %v", err)
	}
}

func TestResampleSameRateIsIdentity(t *testing.T) {
	in := []int16{0, 100, -100, 32000, -32000, 7}
	out := resampleLinear(in, 8000, 8000)

	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d changed: %d -> %d", i, in[i], out[i])
		}
	}
}

func TestResampleUpDown(t *testing.T) {
	in := make([]int16, 160)
	for i := range in {
		in[i] = int16(i * 100)
	}

	up := resampleLinear(in, 8000, 16000)
	if len(up) != 320 {
		t.Fatalf("expected 320 samples after upsampling, got %d", len(up))
	}

	down := resampleLinear(up, 16000, 8000)
	if len(down) != 160 {
		t.Fatalf("expected 160 samples after downsampling, got %d", len(down))
	}
}

func TestRoundTripSilenceStaysQuiet(t *testing.T) {
	mulaw := make([]byte, FrameBytes)
	for i := range mulaw {
		mulaw[i] = 0xFF // mu-law zero
	}

	wide := NarrowToWide(mulaw)
	back, err := WideToNarrow(wide, WideRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(back) != FrameBytes {
		t.Fatalf("expected %d bytes after round trip, got %d", FrameBytes, len(back))
	}

	samples := bytesToSamples(NarrowToWide(back))
	for i, s := range samples {
		if s > 50 || s < -50 {
			t.Fatalf("silence gained energy at sample %d: %d", i, s)
		}
	}
}
