package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appsaga "saga-coordinator/internal/application/saga"
	"saga-coordinator/internal/common/configs"
	"saga-coordinator/internal/common/health"
	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/infrastructure/dlq"
	"saga-coordinator/internal/infrastructure/escalation"
	"saga-coordinator/internal/infrastructure/eventbus"
	"saga-coordinator/internal/infrastructure/eventstore"
	httphandler "saga-coordinator/internal/infrastructure/http"
	"saga-coordinator/internal/infrastructure/participant"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	cfg := configs.Load()

	l := logger.NewZerologLogger(configs.ServiceNameCoordinator)

	db, err := initPostgreSQL(cfg.DatabaseURL)
	if err != nil {
		l.Error("Failed to initialize database", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}
	defer db.Close()

	eventStore, err := eventstore.NewPostgresEventStoreWithDB(db)
	if err != nil {
		l.Error("Failed to initialize event store", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	eventBus, err := eventbus.NewEventBus(cfg.KafkaBrokers, l)
	if err != nil {
		l.Error("Failed to initialize event bus", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}
	defer eventBus.Close()

	escalations, err := escalation.NewDBLog(db)
	if err != nil {
		l.Error("Failed to initialize escalation log", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	invoker := participant.NewHTTPInvoker(cfg.ParticipantRoutes, l)
	deadLetters := dlq.NewBuffer(0, l)

	coordinator := appsaga.NewCoordinator(eventStore, invoker, l,
		appsaga.WithEventBus(eventBus, configs.TopicSagaEvents),
		appsaga.WithEscalationLog(escalations),
		appsaga.WithDeadLetterQueue(deadLetters),
		appsaga.WithInvocationTimeout(cfg.InvocationTimeout),
		appsaga.WithRetryPolicy(appsaga.RetryPolicy{
			MaxAttempts:  cfg.CompensationMaxAttempts,
			InitialDelay: cfg.CompensationInitialDelay,
			Backoff:      cfg.CompensationBackoff,
		}),
	)

	query := appsaga.NewStatusQuery(eventStore, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resume sagas left pending by a previous run before accepting new ones.
	if err := coordinator.Recover(ctx); err != nil {
		l.Error("Recovery failed", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	startEventConsumers(ctx, coordinator, eventBus, l)

	checkers := []health.HealthChecker{health.NewDBHealthChecker(db)}
	sagaHandler := httphandler.NewSagaHandler(coordinator, query, checkers, l)

	router := gin.Default()
	sagaHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	l.Info("Starting saga coordinator", logger.Field{Key: "port", Value: cfg.HTTPPort})

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error("Server failed", logger.Field{Key: "error", Value: err})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("Server forced to shutdown", logger.Field{Key: "error", Value: err})
	}
}

func initPostgreSQL(connString string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func startEventConsumers(ctx context.Context, coordinator *appsaga.Coordinator, bus eventbus.EventBus, l logger.Logger) {
	// Participants report sub-transaction outcomes asynchronously; the
	// coordinator folds them into the matching instance.
	bus.SubscribeWithGroupID(ctx, configs.TopicParticipantEvents, configs.ServiceNameCoordinator, coordinator.HandleParticipantEvent)

	l.Info("Event consumers started")
}
