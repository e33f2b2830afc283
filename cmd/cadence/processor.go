package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sort"
	"syscall"

	"github.com/phrazzld/cadence-api/internal/config"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/processor"
	"github.com/spf13/cobra"
)

// processorKind describes one deployable event processor.
type processorKind struct {
	service string
	topic   string
	build   func(ctx context.Context, cfg *config.Config, log *slog.Logger) (events.Handler, func(), error)
}

var processorKinds = map[string]processorKind{
	"recurring": {
		service: "recurring-task-service",
		topic:   events.TopicTaskEvents,
		build:   buildRecurringHandler,
	},
	"audit": {
		service: "audit-service",
		topic:   events.TopicTaskEvents,
		build:   buildAuditHandler,
	},
	"notification": {
		service: "notification-service",
		topic:   events.TopicReminders,
		build:   buildNotificationHandler,
	},
}

func processorNames() []string {
	names := make([]string, 0, len(processorKinds))
	for name := range processorKinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupProcessor(name string) (processorKind, error) {
	kind, ok := processorKinds[name]
	if !ok {
		return processorKind{}, fmt.Errorf("unknown processor %q (expected one of %v)", name, processorNames())
	}
	return kind, nil
}

func newProcessorCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "processor <recurring|audit|notification>",
		Short:     "Run an event processor behind a Dapr sidecar",
		Long:      "Run one event processor. It serves /dapr/subscribe, /health and one delivery route per topic.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: processorNames(),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return state.bindFlag(cmd, "processor.port", "port")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := lookupProcessor(args[0])
			if err != nil {
				return err
			}
			cfg, log, err := state.load()
			if err != nil {
				return err
			}
			log = log.With(slog.String("service", kind.service))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			handler, closeFn, err := kind.build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeFn()

			router := processor.NewRouter(processor.RouterConfig{
				Service:        kind.service,
				PubSubName:     cfg.Events.PubSubName,
				HandlerTimeout: cfg.Processor.HandlerTimeout,
			}, []processor.Route{{Topic: kind.topic, Handler: handler}}, log)

			return serveHTTP(ctx, fmt.Sprintf(":%d", cfg.Processor.Port), router,
				cfg.Server.ShutdownTimeout, log)
		},
	}
	cmd.Flags().Int("port", 8081, "port the processor listens on")
	return cmd
}

func buildRecurringHandler(ctx context.Context, cfg *config.Config, log *slog.Logger) (events.Handler, func(), error) {
	// A standalone process would see its own empty memory store.
	if cfg.Database.Driver == config.DriverMemory {
		return nil, nil, fmt.Errorf("recurring processor needs a shared database: driver %q is only usable in process with the server", cfg.Database.Driver)
	}

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return processor.NewRecurringProcessor(app.store, app.recurring, log), app.cleanup, nil
}

func buildAuditHandler(_ context.Context, cfg *config.Config, log *slog.Logger) (events.Handler, func(), error) {
	store, err := processor.OpenAuditStore(cfg.Audit.DSN, log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close audit store", slog.String("error", err.Error()))
		}
	}
	return processor.NewAuditProcessor(store, log), closeFn, nil
}

func buildNotificationHandler(_ context.Context, _ *config.Config, log *slog.Logger) (events.Handler, func(), error) {
	return processor.NewNotificationProcessor(processor.NewLogNotifier(log), log), func() {}, nil
}
