package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/asset-derivatives/internal/api/handlers/derivative"
	"github.com/aliskhannn/asset-derivatives/internal/api/router"
	"github.com/aliskhannn/asset-derivatives/internal/api/server"
	"github.com/aliskhannn/asset-derivatives/internal/config"
	"github.com/aliskhannn/asset-derivatives/internal/infra/httpclient"
	"github.com/aliskhannn/asset-derivatives/internal/infra/kafka/consumer"
	"github.com/aliskhannn/asset-derivatives/internal/infra/kafka/producer"
	queuemsg "github.com/aliskhannn/asset-derivatives/internal/kafka/handlers/queue"
	"github.com/aliskhannn/asset-derivatives/internal/model"
	"github.com/aliskhannn/asset-derivatives/internal/processor"
	"github.com/aliskhannn/asset-derivatives/internal/queue"
	jobrepo "github.com/aliskhannn/asset-derivatives/internal/repository/job"
	"github.com/aliskhannn/asset-derivatives/internal/storage/file"
	"github.com/aliskhannn/asset-derivatives/internal/upload"
)

// templateSource is what the processor reads static layers from.
type templateSource interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// eventPublisher is satisfied by the kafka producer.
type eventPublisher interface {
	Publish(ctx context.Context, ev model.JobEvent) error
}

func main() {
	configPath := flag.String("config", "./config/config.yml", "path to the YAML config file")
	flag.Parse()

	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad(*configPath)

	// Retry strategy for the job store, uploads and kafka.
	strategy := cfg.Retry.Strategy()

	// Template layers come from a local directory or a MinIO bucket.
	var templates templateSource
	switch cfg.Templates.Source {
	case "minio":
		storage, err := file.NewStorage(ctx, cfg.Storage)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
		templates = storage
	default:
		templates = file.NewDir(cfg.Templates.Dir)
	}

	derivatives := processor.New(templates, cfg.Brand, cfg.Templates)

	client := httpclient.New(&http.Client{Timeout: cfg.JobStore.Timeout}, strategy)
	repo := jobrepo.NewRepository(client, cfg.JobStore)
	uploader := upload.New(client)

	var (
		wg     sync.WaitGroup
		events eventPublisher
		p      *producer.Producer
		c      *consumer.Consumer
	)

	if cfg.Kafka.Enabled {
		p = producer.New(&cfg.Kafka, strategy)
		events = p
	}

	var q *queue.Processor
	if cfg.Queue.Enabled {
		q = queue.New(repo, derivatives, uploader, events, cfg.Queue)

		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Run(ctx)
		}()

		// Kafka consumer for "jobs enqueued" triggers.
		if cfg.Kafka.Enabled {
			c = consumer.New(&cfg.Kafka, strategy, queuemsg.NewTriggerHandler(q))

			wg.Add(1)
			go c.Consume(ctx, &wg)
		}
	}

	// A nil *queue.Processor must not reach the handler as a non-nil interface.
	var sweeps interface {
		TriggerSweep(ctx context.Context) bool
	}
	if q != nil {
		sweeps = q
	}

	h := derivative.NewHandler(derivatives, sweeps)
	r := router.Setup(h, cfg.Server.MaxBodyBytes)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("starting http server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Wait for the poller, the consumer and any running sweep.
	wg.Wait()
	if q != nil {
		q.Wait()
	}

	// Close Kafka producer and consumer clients.
	if p != nil {
		if err := p.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}
	if c != nil {
		if err := c.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
		}
	}
}
