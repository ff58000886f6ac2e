// Command courier-server serves the newsletter HTTP API and runs delivery workers.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"

	"github.com/coregx/courier"
	"github.com/coregx/courier/adapters/relica"
	"github.com/coregx/courier/cmd/courier-server/internal/api"
	"github.com/coregx/courier/cmd/courier-server/internal/config"
	"github.com/coregx/courier/cmd/courier-server/internal/logging"
	"github.com/coregx/courier/metrics"
	"github.com/coregx/courier/model"
	"github.com/coregx/courier/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("courier-server stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("driver", cfg.Database.Driver).
		Str("mode", cfg.Publishing.Mode).
		Bool("workers", cfg.Worker.Enabled).
		Int("worker_count", cfg.Worker.Count).
		Msg("Starting courier-server")

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close database")
		}
	}()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := courier.Migrate(ctx, db, cfg.Database.Driver, cfg.Database.Prefix); err != nil {
			return err
		}
		log.Info().Str("prefix", cfg.Database.Prefix).Msg("Schema is up to date")
	}

	repos := relica.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)

	emailTransport, err := buildTransport(cfg.Email)
	if err != nil {
		return err
	}

	queue, err := courier.NewDeliveryQueue(db, repos.Queue)
	if err != nil {
		return err
	}

	coordinator, err := courier.NewCoordinator(
		courier.WithCoordinatorStore(db, repos.Claim),
		courier.WithCoordinatorLogger(logging.NewAdapter(log, "idempotency")),
		courier.WithInFlightPolling(cfg.Publishing.InFlightAttempts, cfg.Publishing.InFlightInterval),
	)
	if err != nil {
		return err
	}

	publisher, err := courier.NewPublisher(
		courier.WithPublisherCoordinator(coordinator),
		courier.WithPublisherRepositories(repos.PublishAction, queue, repos.Subscriber),
		courier.WithPublisherTransport(emailTransport),
		courier.WithPublisherLogger(logging.NewAdapter(log, "publisher")),
		courier.WithDeliveryMode(courier.DeliveryMode(cfg.Publishing.Mode)),
		courier.WithRedirectLocation(cfg.Publishing.RedirectLocation),
	)
	if err != nil {
		return err
	}

	subscriptions, err := courier.NewSubscriptionManager(
		courier.WithSubscriptionManagerRepository(repos.Subscriber),
		courier.WithConfirmationEmails(emailTransport, cfg.Server.BaseURL),
		courier.WithSubscriptionManagerLogger(logging.NewAdapter(log, "subscriptions")),
	)
	if err != nil {
		return err
	}

	root := suture.New("courier", suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn().Fields(e.Map()).Msg(e.String())
		},
		Timeout: cfg.Server.ShutdownTimeout,
	})

	if cfg.Worker.Enabled {
		observer := metrics.NewObserver(prometheus.DefaultRegisterer)
		for i := 1; i <= cfg.Worker.Count; i++ {
			worker, err := courier.NewDeliveryWorker(
				courier.WithQueue(queue),
				courier.WithPublishActions(repos.PublishAction),
				courier.WithTransport(emailTransport),
				courier.WithLogger(logging.NewAdapter(log, "delivery")),
				courier.WithPolicy(cfg.WorkerPolicy()),
				courier.WithObserver(observer),
				courier.WithName(fmt.Sprintf("delivery-worker-%d", i)),
			)
			if err != nil {
				return err
			}
			root.Add(worker)
		}
	}

	handler := api.NewHandler(publisher, subscriptions, db, logging.NewAdapter(log, "api"))
	root.Add(&httpService{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           handler.Router(metrics.Handler(prometheus.DefaultGatherer), logging.RequestLogger(log)),
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	log.Info().Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).Msg("courier-server is ready")

	if err := root.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Msg("courier-server stopped")
	return nil
}

func buildTransport(cfg config.EmailConfig) (courier.Transport, error) {
	sender, err := model.ParseSubscriberEmail(cfg.Sender)
	if err != nil {
		return nil, err
	}

	var t courier.Transport
	switch cfg.Kind {
	case "smtp":
		t, err = transport.NewSMTP(transport.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Sender:   sender,
		})
	default:
		t, err = transport.NewAPIClient(cfg.BaseURL, sender, cfg.AuthToken, cfg.Timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create email transport: %w", err)
	}

	if cfg.BreakerFailures > 0 {
		t = transport.WithCircuitBreaker(t, transport.BreakerSettings("email-"+cfg.Kind, cfg.BreakerFailures, cfg.BreakerOpenFor))
	}
	if cfg.RatePerSecond > 0 {
		t = transport.WithRateLimit(t, rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst))
	}
	return t, nil
}
