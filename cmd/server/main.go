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

	"gemini-chat/internal/config"
	"gemini-chat/internal/history"
	"gemini-chat/internal/httpapi"
	"gemini-chat/internal/llm"
	"gemini-chat/internal/scheduler"
)

// Used unless SYSTEM_PROMPT_PATH points at an override file.
const defaultSystemInstruction = "Você é um assistente de atendimento ao cliente amigável e prestativo. Mantenha as respostas concisas e focadas no tópico."

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	ctx := context.Background()

	gateway, err := llm.NewFactory(cfg).CreateGateway(ctx, string(cfg.LLMProvider))
	if err != nil {
		log.Fatalf("failed to create model gateway: %v", err)
	}

	// An unreachable store degrades the service instead of killing it;
	// the scheduler probe restores it once Redis is back.
	store := history.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MaxHistoryMessages)

	manager := history.NewManager(store, gateway, readSystemPrompt(cfg.SystemPromptPath))

	sched := scheduler.New(store, cfg.StoreProbeSpec)
	if err := sched.Start(); err != nil {
		log.Printf("failed to start store probe: %v", err)
	}

	server := httpapi.New(manager, store.Available, cfg.HTTPPort)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("server shutdown failed: %v", err)
	}
	sched.Stop()
}

func readSystemPrompt(path string) string {
	if path == "" {
		return defaultSystemInstruction
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("system prompt file not found or unreadable at %s, using default: %v", path, err)
		return defaultSystemInstruction
	}
	return string(data)
}
