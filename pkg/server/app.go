package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"QuantLens/internal/domain/models"
	"QuantLens/internal/handler/ws"
	"QuantLens/internal/middleware"
	"QuantLens/internal/usecase"
	pkgch "QuantLens/pkg/clickhouse"
	"QuantLens/pkg/config"
	xhttp "QuantLens/pkg/http"
	pkgkafka "QuantLens/pkg/kafka"
	applogger "QuantLens/pkg/logger"
	"QuantLens/pkg/queue"
)

// Deps are the components the application owns. Optional ones may be nil.
type Deps struct {
	Config   *config.Config
	Logger   *applogger.Logger
	Intel    *usecase.IntelligenceService
	HTTP     *xhttp.Server
	Hub      *ws.Hub
	Pipeline *middleware.PublishPipeline
	Consumer *pkgkafka.Consumer
	Outcomes pkgkafka.MessageHandler
	Queue    *queue.RedisQueue
	Retrain  queue.Job
	Producer *pkgkafka.Producer
	Cache    io.Closer
	CH       *pkgch.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	Deps
	l *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(d Deps) *App {
	l := d.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &App{Deps: d, l: l}
}

// Intelligence exposes the service for one-shot commands.
func (a *App) Intelligence() *usecase.IntelligenceService { return a.Intel }

// Run starts every component and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	a.restoreModel(ctx)

	if a.Pipeline != nil {
		a.Pipeline.Start()
	}
	if a.Queue != nil {
		if a.Retrain != nil {
			a.Queue.RegisterJob(a.Retrain)
		}
		if err := a.Queue.Start(); err != nil {
			a.l.Error("queue start error", applogger.Error(err))
			return err
		}
		a.l.Info("job queue started", applogger.String("queue", a.Config.Queue.Name))
	}

	if a.Consumer != nil && a.Outcomes != nil {
		a.Consumer.RegisterHandler(a.Outcomes)
		if err := a.Consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	if err := a.HTTP.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("quantlens started",
		applogger.String("env", a.Config.Environment),
		applogger.String("ledger_backend", a.Config.Ledger.Backend),
		applogger.Int("ledger_records", a.Intel.Session().LedgerSize()),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.HTTP.ShutdownTimeout())
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Train runs a single training pass on top of the restored model.
func (a *App) Train(ctx context.Context, p models.TrainParams) (*models.TrainingReport, error) {
	a.restoreModel(ctx)
	return a.Intel.TrainRegimeModel(ctx, p)
}

func (a *App) restoreModel(ctx context.Context) {
	restored, err := a.Intel.RestoreModel(ctx)
	switch {
	case err != nil:
		a.l.Warn("model restore failed", applogger.Error(err))
	case restored:
		a.l.Info("regime model restored")
	}
}

// Shutdown stops the servers and workers, flushes the ledger and closes clients.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.HTTP != nil {
		if err := a.HTTP.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.Queue != nil {
		if err := a.Queue.Stop(ctx); err != nil {
			a.l.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.Pipeline != nil {
		if err := a.Pipeline.Stop(ctx); err != nil {
			a.l.Warn("publish pipeline stop error", applogger.Error(err))
		}
	}

	if err := a.Intel.Session().Flush(ctx); err != nil {
		errs = append(errs, err)
	}

	a.Close()
	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}

// Close releases infrastructure clients without stopping servers.
func (a *App) Close() {
	// The log collector publishes through the producer.
	a.l.RemoveCollector()
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.CH != nil {
		if err := a.CH.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}
