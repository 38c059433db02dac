package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	STT    STTConfig
	TTS    TTSConfig
	Store  StoreConfig
	Call   CallConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	stt, err := loadSTTConfig()
	if err != nil {
		return nil, err
	}

	tts, err := loadTTSConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		STT:    stt,
		TTS:    tts,
		Store:  StoreConfig{DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL"))},
		Call:   loadCallConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig configures the response generator's chat model.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing chat model credentials: set ARK_API_KEY + ARK_MODEL or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// STTConfig configures the streaming transcription collaborator.
type STTConfig struct {
	APIKey   string
	URL      string
	Model    string
	Language string
	// EndpointingMs is the trailing-silence threshold after which the
	// recognizer finalizes an utterance.
	EndpointingMs int
	Enabled       bool
}

func loadSTTConfig() (STTConfig, error) {
	endpointing := 400
	if override, err := parseOptionalIntEnv("STT_ENDPOINTING_MS"); err != nil {
		return STTConfig{}, err
	} else if override != nil && *override > 0 {
		endpointing = *override
	}

	apiKey := strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY"))

	return STTConfig{
		APIKey:        apiKey,
		URL:           getEnvOrDefault("STT_URL", "wss://api.deepgram.com/v1/listen"),
		Model:         getEnvOrDefault("STT_MODEL", "nova-2"),
		Language:      getEnvOrDefault("STT_LANGUAGE", "en-US"),
		EndpointingMs: endpointing,
		Enabled:       apiKey != "",
	}, nil
}

// TTSConfig configures the speech synthesis collaborator.
type TTSConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	Model   string
	// SampleRate of the PCM the synthesizer returns.
	SampleRate int
	Enabled    bool
}

func loadTTSConfig() (TTSConfig, error) {
	sampleRate := 24000
	if override, err := parseOptionalIntEnv("TTS_SAMPLE_RATE"); err != nil {
		return TTSConfig{}, err
	} else if override != nil && *override > 0 {
		sampleRate = *override
	}

	apiKey := strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	voiceID := strings.TrimSpace(os.Getenv("ELEVENLABS_VOICE_ID"))

	return TTSConfig{
		APIKey:     apiKey,
		BaseURL:    getEnvOrDefault("TTS_BASE_URL", "https://api.elevenlabs.io"),
		VoiceID:    voiceID,
		Model:      getEnvOrDefault("TTS_MODEL", "eleven_turbo_v2"),
		SampleRate: sampleRate,
		Enabled:    apiKey != "" && voiceID != "",
	}, nil
}

// StoreConfig configures the transcript/caller store. An empty DatabaseURL
// selects the in-memory store.
type StoreConfig struct {
	DatabaseURL string
}

// CallConfig carries the receptionist's scripted phrases and the public URL
// the transport streams against.
type CallConfig struct {
	CourseName     string
	CourseLocation string
	WelcomeText    string
	FallbackText   string
	// PublicBaseURL is the externally reachable wss:// base written into the
	// stream descriptor.
	PublicBaseURL string
}

func loadCallConfig() CallConfig {
	name := getEnvOrDefault("COURSE_NAME", "Fox Hollow Golf Course")
	return CallConfig{
		CourseName:     name,
		CourseLocation: getEnvOrDefault("COURSE_LOCATION", "Troy, Michigan"),
		WelcomeText: getEnvOrDefault("CALL_WELCOME_TEXT",
			fmt.Sprintf("Thank you for calling %s. How can I help you today?", name)),
		FallbackText: getEnvOrDefault("CALL_FALLBACK_TEXT",
			"I'm sorry, I didn't catch that. Could you please repeat?"),
		PublicBaseURL: getEnvOrDefault("PUBLIC_BASE_URL", "wss://localhost:8080"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
