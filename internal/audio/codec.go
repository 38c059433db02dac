package audio

import (
	"errors"
	"math"

	"github.com/zaf/g711"
)

// Telephony carriers deliver mu-law at 8 kHz; the transcription service wants
// 16-bit linear PCM at 16 kHz. Synthesized replies usually arrive as 24 kHz
// PCM and have to go back out as 8 kHz mu-law.
const (
	NarrowRate = 8000
	WideRate   = 16000

	// FrameDuration worth of narrowband audio per outbound media message.
	FrameDurationMs = 20

	// FrameBytes is 20 ms of 8 kHz 8-bit mu-law.
	FrameBytes = NarrowRate * FrameDurationMs / 1000
)

var (
	// ErrOddPCMLength reports 16-bit PCM input with a dangling byte.
	ErrOddPCMLength = errors.New("audio: PCM data length is not a multiple of the sample size")
	// ErrBadSampleRate reports a non-positive declared source rate.
	ErrBadSampleRate = errors.New("audio: source sample rate must be positive")
)

// NarrowToWide converts 8 kHz mu-law into 16 kHz 16-bit little-endian PCM.
// Every mu-law byte is a valid sample, so the conversion cannot fail.
func NarrowToWide(mulaw []byte) []byte {
	if len(mulaw) == 0 {
		return nil
	}

	pcm := bytesToSamples(g711.DecodeUlaw(mulaw))
	wide := resampleLinear(pcm, NarrowRate, WideRate)
	return samplesToBytes(wide)
}

// WideToNarrow converts 16-bit little-endian PCM at sourceRate into 8 kHz
// mu-law, resampling down first when the source rate differs.
func WideToNarrow(pcm []byte, sourceRate int) ([]byte, error) {
	if sourceRate <= 0 {
		return nil, ErrBadSampleRate
	}
	if len(pcm)%2 != 0 {
		return nil, ErrOddPCMLength
	}
	if len(pcm) == 0 {
		return nil, nil
	}

	samples := bytesToSamples(pcm)
	if sourceRate != NarrowRate {
		samples = resampleLinear(samples, sourceRate, NarrowRate)
	}
	return g711.EncodeUlaw(samplesToBytes(samples)), nil
}

// resampleLinear converts between sample rates with linear interpolation.
// Output length is proportional to the rate ratio within one rounded sample.
func resampleLinear(in []int16, inRate, outRate int) []int16 {
	if inRate == outRate || len(in) == 0 {
		out := make([]int16, len(in))
		copy(out, in)
		return out
	}

	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(in)) * ratio))
	if outLen < 1 {
		return []int16{}
	}

	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		i0 := int(srcPos)
		if i0 >= len(in) {
			i0 = len(in) - 1
		}
		i1 := i0 + 1
		if i1 >= len(in) {
			i1 = len(in) - 1
		}
		frac := srcPos - float64(i0)
		v := float64(in[i0])*(1-frac) + float64(in[i1])*frac
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return samples
}

func samplesToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}
