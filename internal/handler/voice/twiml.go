package voice

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/fairwaylabs/caddie/pkg/utils"
)

const streamTwiML = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="%s">
            <Parameter name="From" value="%s" />
            <Parameter name="To" value="%s" />
        </Stream>
    </Connect>
</Response>`

// handleIncomingCall answers the telephony webhook for a new inbound call
// with a descriptor that connects the call's audio to the media-stream
// websocket, forwarding the caller and callee numbers as stream parameters.
func (h *Handler) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	from := r.FormValue("From")
	to := r.FormValue("To")
	log.Printf("[voice] incoming call sid=%s from=%s to=%s", r.FormValue("CallSid"), from, to)

	streamURL := h.streamURL(r)
	twiml := fmt.Sprintf(streamTwiML, streamURL, from, to)
	utils.RespondXML(w, http.StatusOK, twiml)
}

// streamURL derives the websocket endpoint from the configured public base
// URL, falling back to the request host when none is set.
func (h *Handler) streamURL(r *http.Request) string {
	base := strings.TrimRight(h.cfg.PublicBaseURL, "/")
	if base == "" {
		base = "wss://" + r.Host
	}
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/v1/media-stream"
}
