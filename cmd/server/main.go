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

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/docsales/realstate-docgen-front-sub000/internal/couple"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/registry"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/service"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/store"
	"github.com/docsales/realstate-docgen-front-sub000/internal/intake/handler"
	ocrclient "github.com/docsales/realstate-docgen-front-sub000/internal/ocr/client"
	ocrmetrics "github.com/docsales/realstate-docgen-front-sub000/internal/ocr/metrics"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/pipeline"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/reconcile"
	"github.com/docsales/realstate-docgen-front-sub000/internal/platform/config"
	"github.com/docsales/realstate-docgen-front-sub000/internal/platform/httpserver"
	"github.com/docsales/realstate-docgen-front-sub000/internal/platform/logger"
	"github.com/docsales/realstate-docgen-front-sub000/internal/platform/metrics"
	"github.com/docsales/realstate-docgen-front-sub000/internal/platform/postgres"
	"github.com/docsales/realstate-docgen-front-sub000/internal/platform/redis"
	"github.com/docsales/realstate-docgen-front-sub000/internal/realtime"
	rtkafka "github.com/docsales/realstate-docgen-front-sub000/internal/realtime/kafka"
	rtredis "github.com/docsales/realstate-docgen-front-sub000/internal/realtime/redis"
)

// version is stamped at build time.
var version = "dev"

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("intake server stopped", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies, starts the background loops and serves HTTP until
// the process is signalled.
func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry(version)
	ocrMetrics := ocrmetrics.New(reg)

	ocr, err := ocrclient.New(ocrclient.Config{
		BaseURL:           cfg.OCR.BaseURL,
		SigningKey:        cfg.OCR.SigningKey,
		RequestTimeout:    cfg.OCR.RequestTimeout,
		StatusTimeout:     cfg.OCR.StatusTimeout,
		ValidationTimeout: cfg.OCR.CoupleValidationTimeout,
	}, ocrclient.WithLogger(log))
	if err != nil {
		return fmt.Errorf("build ocr client: %w", err)
	}

	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}
	checkpointer, err := newCheckpointer(ctx, pool)
	if err != nil {
		return err
	}
	documents := registry.New(registry.WithLogger(log), registry.WithCheckpointer(checkpointer))

	transport, closeTransport, err := newTransport(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeTransport()

	var manager *realtime.Manager
	if transport != nil {
		manager = realtime.NewManager(transport,
			realtime.WithLogger(log),
			realtime.WithMetrics(realtime.NewMetrics(reg)),
			realtime.WithCircuitBreaker(cfg.Realtime.BreakerThreshold, cfg.Realtime.BreakerCooldown),
		)
		defer func() {
			if err := manager.Close(); err != nil {
				log.Warn("realtime manager close failed", "error", err)
			}
		}()
	}

	// The pipeline and reconciler reference each other: cached uploads are
	// pulled immediately, and refresh reprocesses through the pipeline.
	var rec *reconcile.Reconciler
	pipe, err := pipeline.New(documents, ocr, ocr,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(ocrMetrics),
		pipeline.WithChunkSize(cfg.Pipeline.ChunkSize),
		pipeline.WithCachedUploadHook(func(ctx context.Context, d *models.Descriptor) {
			rec.PullOne(ctx, d)
		}),
	)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	recOpts := []reconcile.Option{
		reconcile.WithLogger(log),
		reconcile.WithMetrics(ocrMetrics),
		reconcile.WithSettleDelay(cfg.Reconcile.SettleDelay),
		reconcile.WithQueryTimeout(cfg.OCR.StatusTimeout),
		reconcile.WithQueryRate(cfg.Reconcile.QueriesPerSec),
		reconcile.WithPullOnlyInterval(cfg.Reconcile.PullOnlyPeriod),
	}
	coupleOpts := []couple.Option{
		couple.WithLogger(log),
		couple.WithMetrics(couple.NewMetrics(reg)),
		couple.WithStartTimeout(cfg.OCR.CoupleValidationTimeout),
	}
	if manager != nil {
		recOpts = append(recOpts, reconcile.WithManager(manager))
		coupleOpts = append(coupleOpts, couple.WithManager(manager))
	}
	rec, err = reconcile.New(documents, ocr, pipe, recOpts...)
	if err != nil {
		return fmt.Errorf("build reconciler: %w", err)
	}
	couples, err := couple.New(ocr, coupleOpts...)
	if err != nil {
		return fmt.Errorf("build couple workflow: %w", err)
	}

	svc, err := service.New(documents, ocr, pipe, service.WithLogger(log))
	if err != nil {
		return fmt.Errorf("build document service: %w", err)
	}

	router := chi.NewRouter()
	router.Handle("/metrics", metrics.Handler(reg))
	handler.New(svc, rec, couples, log).Register(router)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pipe.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(rec.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(couples.Run(gctx))
	})
	g.Go(func() error {
		log.Info("starting intake server", "addr", cfg.Addr, "transport", cfg.Realtime.Transport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info("intake server stopped")
	return err
}

func newCheckpointer(ctx context.Context, pool *pgxpool.Pool) (registry.Checkpointer, error) {
	if pool == nil {
		return store.NewInMemory(), nil
	}
	pg := store.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

// newTransport returns a nil transport when push is disabled; the reconciler
// then stays in pull-only mode.
func newTransport(ctx context.Context, cfg config.Server, log *slog.Logger) (realtime.Transport, func(), error) {
	noop := func() {}
	switch cfg.Realtime.Transport {
	case config.TransportRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close failed", "error", err)
			}
		}
		t, err := rtredis.New(client.Client, cfg.Realtime.ChannelPrefix, rtredis.WithLogger(log))
		if err != nil {
			closeClient()
			return nil, noop, err
		}
		return t, closeClient, nil
	case config.TransportKafka:
		t, err := rtkafka.New(rtkafka.Config{
			Brokers:     cfg.Kafka.Brokers,
			TopicPrefix: cfg.Realtime.ChannelPrefix,
		}, rtkafka.WithLogger(log))
		if err != nil {
			return nil, noop, err
		}
		return t, noop, nil
	default:
		return nil, noop, nil
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
