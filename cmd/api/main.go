package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fairwaylabs/caddie/internal/call"
	"github.com/fairwaylabs/caddie/internal/config"
	"github.com/fairwaylabs/caddie/internal/handler"
	"github.com/fairwaylabs/caddie/internal/handler/voice"
	"github.com/fairwaylabs/caddie/internal/service/agent"
	"github.com/fairwaylabs/caddie/internal/service/stt"
	"github.com/fairwaylabs/caddie/internal/service/tts"
	"github.com/fairwaylabs/caddie/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Conversation store: Postgres when configured, in-memory otherwise.
	var callStore store.Store
	if cfg.Store.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer pg.Close()
		callStore = pg
		log.Println("conversation store backed by Postgres")
	} else {
		callStore = store.NewMemory()
		log.Println("DATABASE_URL not set, conversation history kept in memory only")
	}

	// Response generator
	var generator call.Generator
	if cfg.AI.Enabled() {
		agentSvc, err := agent.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize agent service: %v", err)
			log.Println("continuing with fallback replies only - check the ARK_* environment variables")
		} else {
			generator = agentSvc
			log.Println("agent service initialized successfully")
		}
	} else {
		log.Println("chat model credentials not configured, replies fall back to the scripted phrase")
	}

	// Transcription
	var sttService stt.Service
	if cfg.STT.Enabled {
		sttService = stt.NewDeepgram(cfg.STT)
		log.Println("transcription service initialized successfully")
	} else {
		log.Println("DEEPGRAM_API_KEY not set, calls run without transcription")
	}

	// Synthesis
	var synthesizer call.Synthesizer
	if cfg.TTS.Enabled {
		synthesizer = tts.NewClient(cfg.TTS)
		log.Println("synthesis service initialized successfully")
	} else {
		log.Println("ElevenLabs credentials not configured, calls run without spoken replies")
	}

	registry := call.NewRegistry()
	playback := call.NewPlayback(synthesizer)
	voiceHandler := voice.NewHandler(registry, sttService, playback, generator, callStore, cfg.Call)

	router := handler.NewRouter(voiceHandler)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Caddie voice backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
