package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/phrazzld/cadence-api/internal/api"
	"github.com/phrazzld/cadence-api/internal/api/middleware"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/processor"
	"github.com/phrazzld/cadence-api/internal/service"
	"github.com/phrazzld/cadence-api/internal/service/auth"
	"github.com/spf13/cobra"
)

func newServerCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the task API server",
		Long: `Run the task API server and the reminder scanner.

With events.transport=memory the event processors are subscribed in
process, so a single server is a complete installation.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return state.bindFlag(cmd, "server.port", "port")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := state.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.cleanup()

			return app.runServer(ctx)
		},
	}
	cmd.Flags().Int("port", 8080, "port the API listens on")
	return cmd
}

func (app *application) runServer(ctx context.Context) error {
	jwtService, err := auth.NewJWTService(app.config.Auth)
	if err != nil {
		return fmt.Errorf("failed to create jwt service: %w", err)
	}

	if app.memoryBus != nil {
		closeInProcess, err := app.subscribeInProcess()
		if err != nil {
			return err
		}
		defer closeInProcess()
	}

	if app.config.Reminder.Enabled {
		scheduler, err := app.startReminders()
		if err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	router := api.NewRouter(
		api.NewTaskHandler(app.tasks, app.logger),
		middleware.NewAuthMiddleware(jwtService),
		app.logger,
	)
	return serveHTTP(ctx, fmt.Sprintf(":%d", app.config.Server.Port), router,
		app.config.Server.ShutdownTimeout, app.logger)
}

// subscribeInProcess attaches the processors to the in-memory bus.
func (app *application) subscribeInProcess() (func(), error) {
	audit, err := processor.OpenAuditStore(app.config.Audit.DSN, app.logger)
	if err != nil {
		return nil, err
	}

	app.memoryBus.Subscribe(events.TopicTaskEvents,
		processor.NewRecurringProcessor(app.store, app.recurring, app.logger))
	app.memoryBus.Subscribe(events.TopicTaskEvents,
		processor.NewAuditProcessor(audit, app.logger))
	app.memoryBus.Subscribe(events.TopicReminders,
		processor.NewNotificationProcessor(processor.NewLogNotifier(app.logger), app.logger))

	app.logger.Info("event processors subscribed in process")
	return func() {
		// Drain queued events before the audit database goes away.
		app.publisher.Stop()
		if err := audit.Close(); err != nil {
			app.logger.Error("failed to close audit store", slog.String("error", err.Error()))
		}
	}, nil
}

// startReminders schedules the reminder scan and starts the scheduler.
func (app *application) startReminders() (*service.SchedulerService, error) {
	reminders, err := service.NewReminderService(app.store, app.publisher, app.config.Reminder.Lead, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder service: %w", err)
	}

	scheduler := service.NewSchedulerService(time.UTC, app.logger)
	_, err = scheduler.Schedule(app.config.Reminder.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := reminders.Scan(ctx); err != nil {
			app.logger.Error("reminder scan failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", app.config.Reminder.Schedule, err)
	}

	scheduler.Start()
	return scheduler, nil
}
