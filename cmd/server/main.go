package main

import (
	httptransport "chat-gen/infrastructure/http"
	"chat-gen/internal"
	"chat-gen/repositories"
	"chat-gen/runtime"
	"chat-gen/runtime/workers"
	"chat-gen/services"
	"chat-gen/sink"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-gen/ai"
	"chat-gen/auth"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB) and search index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	searchIndex, err := repositories.NewSearchIndex(config.BlugeFilepath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = searchIndex.Close()
	}()

	// 3. Moderation
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	moderator, err := runtime.NewEmbeddedModerator(log, charReplacement)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}

	// 4. Runtime wiring
	store := repositories.NewStore(db, log, config.LimitMessages)
	users := repositories.NewUserRepository(db)
	locks := runtime.NewLockManager()
	registry := runtime.NewRegistry()

	publisher := runtime.NewPublisher(log, registry, config.SinkTimeout)
	publisher.Add(sink.NewSearchSink(searchIndex, store, log))

	adapter := pickAdapter(config, log)
	coordinator := runtime.NewCoordinator(log, locks, store, publisher, adapter, moderator)

	// 5. Services & transport
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(coordinator, registry, store, searchIndex)
	authService := services.NewAuthService(users, tokens)
	server := httptransport.NewServer(log, chatService, authService, tokens, config.ConnectionBufferSize)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Background workers under supervision
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewBadgerGCWorker(db, log, config.GCInterval),
		workers.NewTelemetryWorker(log, config.MetricInterval, coordinator),
	)
	go sup.Run(ctx)

	if config.EnableDebugServer {
		internal.StartDebugServer(db, config.DebugPort, nil, func() map[string]any {
			return map[string]any{"live_sessions": coordinator.LiveSessions()}
		})
	}

	// 8. HTTP server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Handler()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 10. Final Cleanup: stop accepting requests, then let in-flight
	// generation sessions finish their checkpoints.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	coordinator.Wait()
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// pickAdapter selects the generation backend. Without an API key the
// scripted adapter answers, which keeps local development offline.
func pickAdapter(config internal.Config, log *slog.Logger) ai.IStreamAdapter {
	if config.OpenAIAPIKey != "" {
		return ai.NewOpenAIAdapter(log, config.OpenAIAPIKey, config.OpenAIBaseURL, config.OpenAIModel)
	}
	log.Warn("OPENAI_API_KEY not set, using the scripted adapter")
	return &ai.ScriptedAdapter{
		Events: []ai.StreamEvent{
			ai.Partial{Text: "Hello"},
			ai.Partial{Text: "Hello, I am"},
			ai.Partial{Text: "Hello, I am a scripted reply."},
		},
		Delay: 300 * time.Millisecond,
	}
}
