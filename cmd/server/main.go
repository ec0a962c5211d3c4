package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/infrastructure/http/server"
	"chat-relay/infrastructure/mail"
	"chat-relay/infrastructure/storage"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal arrives or the HTTP
// server fails. Deferred cleanups run before main exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	options := storage.BuildOptions(config.BadgerFilepath, log)
	if config.BadgerFilepath == "" {
		log.Warn("BADGER_FILEPATH not set, history is kept in memory only")
		options = options.WithInMemory(true)
	}
	db, err := badger.Open(options)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	users := storage.NewUserRepository(db)
	sessions := storage.NewSessionRepository(db, log)
	membership := storage.NewMembershipRepository(db, log)
	messages := storage.NewMessageRepository(db, log)

	// 3. Runtime
	registry := runtime.NewRegistry(log, config.DeliveryTimeout)
	tokens := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration)
	authenticator := auth.NewTokenAuthenticator(tokens, users)
	relay := runtime.NewRelay(log, authenticator, membership, messages, registry)

	// 4. Background workers
	mailer := workers.NewInviteMailer(log, notifier(log, config), config.InviteQueueSize, config.NotifyTimeout)
	monitoring := observability.NewMonitoringManager(log)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		mailer,
		workers.NewHealthMonitoringWorker(log, monitoring, config.MetricInterval),
		workers.NewCapacityWorker(log, []workers.NamedQueue{
			{Name: "invite_mailer", Length: mailer.Pending, Capacity: mailer.Capacity()},
		}, registry, config.MetricInterval),
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. HTTP Server
	srv := server.NewServer(log,
		authenticator,
		services.NewAuthService(users, tokens),
		services.NewSessionService(log, sessions, membership, users, registry),
		services.NewInviteService(log, sessions, membership, users, mailer, config.PublicURL),
		services.NewChatService(relay, sessions, membership, messages),
		server.NewHealthHandler(db, registry, mailer, monitoring),
		server.Options{
			AllowedOrigins:       config.Origins(),
			ConnectionBufferSize: config.ConnectionBufferSize,
			MaxFrameSize:         config.MaxFrameSize,
			MaxBodySize:          config.MaxBodySize,
			RequestTimeout:       config.RequestTimeout,
		},
	)
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		log.Error("HTTP server failed", "error", err)
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("HTTP shutdown incomplete", "error", shutdownErr)
	}
	stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return err
}

func notifier(log *slog.Logger, config internal.Config) contract.Notifier {
	if !config.SMTPEnabled() {
		log.Info("SMTP_HOST not set, invite notifications are only logged")
		return mail.NewLogNotifier(log)
	}
	return mail.NewSMTPNotifier(log, mail.SMTPConfig{
		Host:     config.SMTPHost,
		Port:     config.SMTPPort,
		Username: config.SMTPUser,
		Password: config.SMTPPassword,
		From:     config.SMTPFrom,
	})
}
