package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.STT.Model != "nova-2" || cfg.STT.EndpointingMs != 400 {
		t.Fatalf("unexpected stt defaults: %+v", cfg.STT)
	}
	if cfg.TTS.SampleRate != 24000 {
		t.Fatalf("unexpected tts sample rate: %d", cfg.TTS.SampleRate)
	}
	if !strings.Contains(cfg.Call.WelcomeText, cfg.Call.CourseName) {
		t.Fatalf("welcome text should mention the course: %q", cfg.Call.WelcomeText)
	}
}

func TestLoadPortVariants(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"9000", ":9000"},
		{":9000", ":9000"},
		{"127.0.0.1:9000", "127.0.0.1:9000"},
	}

	for _, tc := range cases {
		t.Setenv("PORT", tc.value)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("PORT=%q: unexpected error: %v", tc.value, err)
		}
		if cfg.Server.Addr != tc.want {
			t.Fatalf("PORT=%q: expected %s, got %s", tc.value, tc.want, cfg.Server.Addr)
		}
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "not a port")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid PORT")
	}
}

func TestServiceEnablement(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	t.Setenv("ELEVENLABS_VOICE_ID", "voice-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.STT.Enabled {
		t.Fatalf("expected stt enabled with api key set")
	}
	if !cfg.TTS.Enabled {
		t.Fatalf("expected tts enabled with key and voice set")
	}
	if cfg.AI.Enabled() {
		t.Fatalf("expected ai disabled without credentials")
	}
}

func TestTTSRequiresVoice(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "el-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TTS.Enabled {
		t.Fatalf("expected tts disabled without a voice id")
	}
}

func TestOptionalIntOverride(t *testing.T) {
	t.Setenv("STT_ENDPOINTING_MS", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.STT.EndpointingMs != 250 {
		t.Fatalf("expected endpointing 250, got %d", cfg.STT.EndpointingMs)
	}
}
