package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/tutorbook/internal/application"
	"github.com/example/tutorbook/internal/calendar"
	"github.com/example/tutorbook/internal/config"
	httptransport "github.com/example/tutorbook/internal/http"
	"github.com/example/tutorbook/internal/identity"
	"github.com/example/tutorbook/internal/oauth"
	"github.com/example/tutorbook/internal/persistence/sqlite"
	"github.com/example/tutorbook/internal/persistence/sqlite/migration"
	"github.com/example/tutorbook/internal/queue"
	"github.com/example/tutorbook/internal/retry"
	"github.com/example/tutorbook/internal/scheduler"
	"github.com/example/tutorbook/internal/tokenseal"
	"github.com/example/tutorbook/internal/worker"
)

const slotCacheTTL = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tutorbook stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	now := time.Now
	idGenerator := uuid.NewString

	sealer, err := tokenseal.New(cfg.TokenKey)
	if err != nil {
		return fmt.Errorf("token sealer: %w", err)
	}

	store, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLiteDSN), sealer, now, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	verifier, err := identity.NewVerifier(cfg.IdentitySecret, now)
	if err != nil {
		return err
	}

	queueClient, err := newQueueClient(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := queueClient.Close(); cerr != nil {
			logger.Error("failed to close queue", "error", cerr)
		}
	}()
	cleanup := queue.CleanupPublisher{Client: queueClient}

	users := newUserAdapter(store.Users)
	credentials := newCredentialAdapter(store.Users)
	availability := newAvailabilityAdapter(store.Availability)
	sessions := newSessionAdapter(store.Sessions)

	var provider oauth.Provider
	var consent application.ConsentProvider
	if cfg.GoogleConfigured() {
		provider = oauth.NewGoogleProvider(oauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	} else {
		logger.Warn("google oauth client not configured, calendar features are disabled")
	}
	tokens := oauth.NewManager(provider, credentials, oauth.ManagerConfig{
		RefreshBuffer: cfg.RefreshBuffer,
		CallTimeout:   cfg.ExternalTimeout,
		Policy:        remotePolicy(cfg, "oauth-refresh"),
	}, now, logger)
	if provider != nil {
		consent = consentAdapter{provider: provider, manager: tokens}
	}

	gateway := calendar.NewGoogleGateway(cfg.CalendarID)
	syncer := calendar.NewSyncer(gateway, calendar.SyncerConfig{
		CallTimeout: cfg.ExternalTimeout,
		Policy:      remotePolicy(cfg, "calendar"),
	}, logger)

	slotService := application.NewSlotService(availability, sessions, cfg.Location, slotCacheTTL, now, logger)
	bookingService := application.NewBookingService(application.BookingDependencies{
		Users:        users,
		Credentials:  credentials,
		Availability: availability,
		Sessions:     sessions,
		Tokens:       tokens,
		Calendar:     syncer,
		Cleanup:      cleanup,
		Slots:        slotService,
		Location:     cfg.Location,
	}, idGenerator, now, logger)
	cancellationService := application.NewCancellationService(sessions, cleanup, slotService,
		scheduler.CancellationPolicy{MinimumNotice: cfg.CancellationNotice}, cfg.Location, now, logger)
	sessionService := application.NewSessionService(sessions, cfg.Location, now, logger)
	availabilityService := application.NewAvailabilityService(availability, slotService, idGenerator, logger)
	calendarService := application.NewCalendarConnectionService(verifier, consent, credentials, logger)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	cleanupWorker := worker.NewCleanupWorker(queueClient, credentials, tokens, syncer, cfg.CleanupWorkers, logger)
	cleanupWorker.Start(workerCtx)
	sweeper := worker.NewCompletionSweeper(sessionService, cfg.CompletionSweep, logger)
	go sweeper.Run(workerCtx)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Sessions:     httptransport.NewSessionHandler(bookingService, cancellationService, sessionService, logger),
		Availability: httptransport.NewAvailabilityHandler(availabilityService, slotService, logger),
		Calendar:     httptransport.NewCalendarHandler(calendarService, logger),
		Identity:     httptransport.RequireIdentity(verifier, users, logger),
		Metrics:      promhttp.Handler(),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Metrics(),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("tutorbook API listening", "addr", server.Addr, "timezone", cfg.Location.String())
	err = server.ListenAndServe()
	stopWorkers()
	cleanupWorker.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newQueueClient(cfg config.Config, logger *slog.Logger) (queue.Client, error) {
	if cfg.RabbitMQURL == "" {
		logger.Warn("no broker configured, calendar cleanup jobs stay in process")
		return queue.NewMemoryClient(256), nil
	}
	client, err := queue.NewRabbitClient(cfg.RabbitMQURL, cfg.CleanupQueue)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	return client, nil
}

// writeTimeout leaves room for a booking that exhausts both the token refresh
// and the event creation retry budgets before persisting.
func writeTimeout(cfg config.Config) time.Duration {
	refresh := remotePolicy(cfg, "oauth-refresh").Budget(cfg.ExternalTimeout)
	create := remotePolicy(cfg, "calendar").Budget(cfg.ExternalTimeout)
	return refresh + create + 30*time.Second
}

// remotePolicy applies the configured attempt budget. Classify is left for the
// consumer to fill in with its provider specific classifier.
func remotePolicy(cfg config.Config, name string) retry.Policy {
	policy := retry.Default(name)
	policy.MaxAttempts = cfg.RetryAttempts
	policy.BaseDelay = cfg.RetryBaseDelay
	policy.Classify = nil
	return policy
}
