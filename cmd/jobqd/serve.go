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

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/xraph/jobq/api"
	audithook "github.com/xraph/jobq/audit_hook"
	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/mail"
	"github.com/xraph/jobq/queue"
	"github.com/xraph/jobq/store"
	"github.com/xraph/jobq/stream"
)

// readHeaderTimeout bounds slow clients on the API listener.
const readHeaderTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workers, health monitor and HTTP API",
		Long: `Run the queue daemon.

Workers for every registered job type start immediately. The health monitor
scans failed and pending counts on its schedule and the HTTP API serves
enqueue and status endpoints under /v1. SIGINT or SIGTERM stops the API,
the monitor and the workers, in that order.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg, a.logger)
		},
	}
}

// daemon is the set of running components built from a Config.
type daemon struct {
	store      store.Store
	closeStore func() error
	manager    *queue.Manager
	monitor    *health.Monitor
	broker     *stream.Broker
	cron       *cron.Cron
	server     *http.Server
}

// buildDaemon wires the store, the email job type, the monitor and the API.
// Nothing is started.
func buildDaemon(ctx context.Context, cfg *Config, logger *slog.Logger) (*daemon, error) {
	st, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	d := &daemon{store: st, closeStore: closeStore}

	if cfg.Store.Migrate {
		if err := st.Migrate(ctx); err != nil {
			return nil, errors.Join(err, closeStore())
		}
	}

	d.broker = stream.NewBroker(logger)
	opts := []queue.Option{
		queue.WithExtension(d.broker),
		queue.WithLogger(logger),
		queue.WithConfig(cfg.Queue),
		queue.WithLimits(cfg.Limits...),
	}
	if cfg.Audit.Enabled {
		opts = append(opts, queue.WithExtension(newAuditExtension(cfg.Audit, logger)))
	}
	d.manager = queue.New(st, opts...)

	sender, err := newSender(cfg.Mail, logger)
	if err != nil {
		return nil, errors.Join(err, closeStore())
	}
	def := mail.NewDefinition(sender, logger, job.WithConcurrency(cfg.Mail.Concurrency))
	if err := queue.Register(d.manager, def); err != nil {
		return nil, errors.Join(err, closeStore())
	}

	sink := health.MultiSink{
		health.NewLogSink(logger),
		d.manager.Extensions().AlertSink(),
	}
	d.monitor, err = health.New(d.manager, sink, cfg.Health, health.WithLogger(logger))
	if err != nil {
		return nil, errors.Join(err, closeStore())
	}

	if cfg.Purge.Schedule != "" {
		d.cron = cron.New()
		if _, err := d.cron.AddFunc(cfg.Purge.Schedule, purgeJob(st, cfg.Purge.Retention, logger)); err != nil {
			return nil, errors.Join(fmt.Errorf("purge.schedule: %w", err), closeStore())
		}
	}

	handler := api.New(d.manager,
		api.WithLogger(logger),
		api.WithMonitor(d.monitor),
		api.WithBroker(d.broker),
	).Handler()
	d.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	// Event streams only end when their subscriber closes.
	d.server.RegisterOnShutdown(func() {
		_ = d.broker.OnShutdown(context.Background())
	})
	return d, nil
}

// serve runs the daemon until ctx is cancelled or the listener fails.
func serve(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	d, err := buildDaemon(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := d.manager.Start(ctx); err != nil {
		return errors.Join(err, d.closeStore())
	}
	if err := d.monitor.Start(ctx); err != nil {
		return errors.Join(err, d.manager.Shutdown(cfg.Queue.ShutdownTimeout), d.closeStore())
	}
	if d.cron != nil {
		d.cron.Start()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api listening", slog.String("addr", cfg.Addr))
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("api listener failed", slog.String("error", err.Error()))
			runErr = err
		}
	}

	return errors.Join(runErr, d.shutdown(cfg.Queue.ShutdownTimeout))
}

// shutdown stops the components in reverse start order.
func (d *daemon) shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := d.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api shutdown: %w", err))
	}
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
	if err := d.monitor.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("monitor stop: %w", err))
	}
	if err := d.manager.Shutdown(timeout); err != nil {
		errs = append(errs, fmt.Errorf("queue shutdown: %w", err))
	}
	if err := d.closeStore(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// newAuditExtension builds the audit trail extension over the daemon log.
func newAuditExtension(cfg AuditConfig, logger *slog.Logger) *audithook.Extension {
	opts := []audithook.Option{audithook.WithLogger(logger)}
	if len(cfg.Actions) > 0 {
		opts = append(opts, audithook.WithActions(cfg.Actions...))
	}
	return audithook.New(audithook.NewLogRecorder(logger.With(slog.String("component", "audit"))), opts...)
}

// newSender returns the configured mail sender, or a sender that only logs
// when no provider is set.
func newSender(cfg MailConfig, logger *slog.Logger) (mail.Sender, error) {
	if cfg.Provider == "" {
		logger.Warn("mail.provider not set, emails are logged and not delivered")
		return mail.SenderFunc(func(_ context.Context, msg mail.Message) (string, error) {
			logger.Info("email (not delivered)",
				slog.Any("to", msg.To),
				slog.String("subject", msg.Subject),
			)
			return "", nil
		}), nil
	}
	return mail.NewSender(cfg.Config)
}
