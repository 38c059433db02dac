// Package transport defines the JSON envelope exchanged with the telephony
// media stream: start, media, stop and mark events inbound, media messages
// outbound. The shapes mirror Twilio Media Streams.
package transport

// Envelope is one inbound event from the media stream websocket. Event is
// the discriminator; exactly one of the payload fields is set.
type Envelope struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSID      string        `json:"streamSid,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload opens a call: ids plus the custom parameters declared in the
// stream descriptor (caller number among them).
type StartPayload struct {
	AccountSID       string            `json:"accountSid,omitempty"`
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      *MediaFormat      `json:"mediaFormat,omitempty"`
}

// MediaFormat declares the encoding of media payloads on this stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one frame of base64-encoded narrowband audio.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopPayload closes a call.
type StopPayload struct {
	AccountSID string `json:"accountSid,omitempty"`
	CallSID    string `json:"callSid"`
}

// MarkPayload acknowledges playback progress. Informational only.
type MarkPayload struct {
	Name string `json:"name"`
}

// TrackInbound labels media recorded from the caller's side.
const TrackInbound = "inbound"

// Event discriminator values.
const (
	EventStart = "start"
	EventMedia = "media"
	EventStop  = "stop"
	EventMark  = "mark"
)

// OutboundMedia is the message written back to the transport to play audio
// to the caller.
type OutboundMedia struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid"`
	Media     OutboundAudio `json:"media"`
}

// OutboundAudio wraps the base64 narrowband payload of one outbound frame.
type OutboundAudio struct {
	Payload string `json:"payload"`
}

// NewOutboundMedia builds a media message addressed to streamSID.
func NewOutboundMedia(streamSID, payload string) OutboundMedia {
	return OutboundMedia{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     OutboundAudio{Payload: payload},
	}
}
