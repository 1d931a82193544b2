package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/certella/certella/core/config"
	"github.com/certella/certella/core/domain"
	"github.com/certella/certella/core/email"
	"github.com/certella/certella/core/queue"
	"github.com/certella/certella/core/webhook"
	"github.com/certella/certella/integration/caproxy"
	"github.com/certella/certella/integration/database/pg"
	"github.com/certella/certella/integration/database/redis"
	"github.com/certella/certella/integration/email/postmark"
	"github.com/certella/certella/pkg/dedupe"
	"github.com/certella/certella/pkg/dnscheck"
)

type appConfig struct {
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	RedisEnabled bool          `env:"REDIS_ENABLED" envDefault:"false"`
	EmailEnabled bool          `env:"EMAIL_ENABLED" envDefault:"false"`
	NotifyTTL    time.Duration `env:"NOTIFY_DEDUPE_TTL" envDefault:"24h"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(appCfg.LogLevel),
	}))
	slog.SetDefault(log)

	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	guard := dedupe.Guard(dedupe.NewMemoryGuard())
	if appCfg.RedisEnabled {
		var redisCfg redis.Config
		config.MustLoad(&redisCfg)
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close() //nolint:errcheck
		guard, err = dedupe.NewRedisGuard(client)
		if err != nil {
			return err
		}
	}

	var caCfg caproxy.Config
	config.MustLoad(&caCfg)
	provider, err := caproxy.New(caCfg, caproxy.WithLogger(log.With(slog.String("component", "caproxy"))))
	if err != nil {
		return err
	}

	var dnsCfg dnscheck.Config
	config.MustLoad(&dnsCfg)
	checker, err := dnscheck.New(dnsCfg, dnscheck.WithLogger(log.With(slog.String("component", "dnscheck"))))
	if err != nil {
		return err
	}

	endpointStore, err := webhook.NewPGStore(pool)
	if err != nil {
		return err
	}
	var webhookCfg webhook.Config
	config.MustLoad(&webhookCfg)
	dispatcher, err := webhook.NewDispatcherFromConfig(webhookCfg, endpointStore,
		webhook.WithLogger(log.With(slog.String("component", "webhook"))))
	if err != nil {
		return err
	}

	storage, err := queue.NewPGStorage(pool)
	if err != nil {
		return err
	}
	var queueCfg queue.Config
	config.MustLoad(&queueCfg)
	enqueuer, err := queue.NewEnqueuer(storage, queue.WithDefaultMaxAttempts(queueCfg.MaxAttempts))
	if err != nil {
		return err
	}

	repo, err := domain.NewPGRepository(pool)
	if err != nil {
		return err
	}
	syncer, err := domain.NewSyncer(repo, provider, checker, enqueuer,
		domain.WithSyncerLogger(log.With(slog.String("component", "syncer"))),
		domain.WithEventDispatcher(dispatcher),
		domain.WithAuditStore(repo),
		domain.WithNotificationGuard(guard, appCfg.NotifyTTL),
	)
	if err != nil {
		return err
	}

	sender := emailSender(appCfg, log)
	notifier := domain.NewNotifier(sender, log.With(slog.String("component", "notifier")))

	handlers := append(syncer.Handlers(), notifier.Handler())
	worker, err := queue.NewWorkerFromConfig(queueCfg, storage, handlers,
		queue.WithWorkerLogger(log.With(slog.String("component", "queue"))))
	if err != nil {
		return err
	}

	var pollerCfg domain.PollerConfig
	config.MustLoad(&pollerCfg)
	poller, err := domain.NewPollerFromConfig(pollerCfg, repo, enqueuer,
		domain.WithPollerLogger(log.With(slog.String("component", "poller"))))
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "worker starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(dispatcher.Run(ctx))
	g.Go(worker.Run(ctx))
	g.Go(poller.Run(ctx))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("worker stopped")
	return nil
}

// emailSender picks the configured Postmark sender or the local
// file-based one for development.
func emailSender(cfg appConfig, log *slog.Logger) email.EmailSender {
	if !cfg.EmailEnabled {
		return email.NewDevSender("./tmp/emails")
	}
	var pmCfg postmark.Config
	config.MustLoad(&pmCfg)
	sender, err := postmark.New(pmCfg)
	if err != nil {
		log.Warn("postmark disabled", slog.Any("error", err))
		return email.NewDevSender("./tmp/emails")
	}
	return sender
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
