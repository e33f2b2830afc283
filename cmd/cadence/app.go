package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/cadence-api/internal/config"
	"github.com/phrazzld/cadence-api/internal/domain/recurrence"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/platform/memory"
	"github.com/phrazzld/cadence-api/internal/platform/postgres"
	"github.com/phrazzld/cadence-api/internal/service"
	"github.com/phrazzld/cadence-api/internal/store"
)

// application holds the dependencies shared by the server and processors.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	store     store.TaskStore
	bus       events.Bus
	memoryBus *events.InMemoryBus
	publisher *events.Publisher
	recurring service.RecurringTaskService
	tasks     service.TaskService
}

// newApplication opens the task store, builds the event publisher and the
// services on top of them. The publisher is started; cleanup stops it.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}

	if err := app.openStore(ctx); err != nil {
		return nil, err
	}

	bus, err := newBus(cfg.Events, logger)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	app.bus = bus
	if mb, ok := bus.(*events.InMemoryBus); ok {
		app.memoryBus = mb
	}

	app.publisher = events.NewPublisher(bus, events.PublisherConfig{
		QueueSize:      cfg.Events.QueueSize,
		WorkerCount:    cfg.Events.WorkerCount,
		EnqueueTimeout: cfg.Events.EnqueueTimeout,
		SendTimeout:    cfg.Events.SendTimeout,
	}, logger)

	app.recurring, err = service.NewRecurringTaskService(app.store, recurrence.NewDefaultEngine(), app.publisher, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create recurring task service: %w", err)
	}
	app.tasks, err = service.NewTaskService(app.store, app.recurring, app.publisher, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.publisher.Start()
	return app, nil
}

func (app *application) openStore(ctx context.Context) error {
	switch app.config.Database.Driver {
	case config.DriverMemory:
		app.logger.Warn("using in-memory task store; tasks are lost on exit")
		app.store = memory.NewTaskStore(app.logger)
		return nil
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, app.config.Database.URL, postgres.PoolOptions{
			MaxOpenConns:    app.config.Database.MaxOpenConns,
			MaxIdleConns:    app.config.Database.MaxIdleConns,
			ConnMaxLifetime: app.config.Database.ConnMaxLifetime,
		}, app.logger)
		if err != nil {
			return err
		}
		app.db = db
		app.store = postgres.NewPostgresTaskStore(db, app.logger)
		app.logger.Info("database connection established")
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", app.config.Database.Driver)
	}
}

// newBus returns the transport events leave the process through.
func newBus(cfg config.EventsConfig, logger *slog.Logger) (events.Bus, error) {
	switch cfg.Transport {
	case config.TransportMemory:
		return events.NewInMemoryBus(logger), nil
	case config.TransportDapr:
		bus, err := events.NewDaprBus(events.DaprConfig{
			BaseURL:    cfg.DaprURL,
			PubSubName: cfg.PubSubName,
			Timeout:    cfg.SendTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create dapr bus: %w", err)
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unsupported event transport %q", cfg.Transport)
	}
}

// cleanup stops the publisher and closes the database. Events still queued
// are delivered first.
func (app *application) cleanup() {
	if app.publisher != nil {
		app.publisher.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", slog.String("error", err.Error()))
		}
	}
}
