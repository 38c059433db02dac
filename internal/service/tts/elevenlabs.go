// Package tts synthesizes reply text into wide-format PCM through the
// ElevenLabs HTTP API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fairwaylabs/caddie/internal/config"
)

// Client is a synchronous request/response synthesizer.
type Client struct {
	cfg  config.TTSConfig
	http *http.Client
}

func NewClient(cfg config.TTSConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

// Synthesize returns raw 16-bit little-endian PCM at SampleRate.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("tts: text is empty")
	}

	body, err := json.Marshal(synthesisRequest{Text: text, ModelID: c.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=pcm_%d",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.VoiceID, c.cfg.SampleRate)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts: API error %d: %s", resp.StatusCode, string(detail))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts: synthesis returned no audio")
	}

	log.Printf("[tts] synthesized %d bytes for %d chars", len(audio), len(text))
	return audio, nil
}

// SampleRate reports the PCM rate of synthesized audio.
func (c *Client) SampleRate() int {
	return c.cfg.SampleRate
}
