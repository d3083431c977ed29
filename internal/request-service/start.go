package requestservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"blood-link/internal/config"
	"blood-link/internal/mylogger"
	"blood-link/internal/observability"
	"blood-link/internal/request-service/adapters/driven/archive"
	"blood-link/internal/request-service/adapters/driven/bm"
	"blood-link/internal/request-service/adapters/driven/consumer"
	"blood-link/internal/request-service/adapters/driven/db"
	"blood-link/internal/request-service/adapters/driven/geocode"
	"blood-link/internal/request-service/adapters/driven/memory"
	"blood-link/internal/request-service/adapters/driven/notification"
	"blood-link/internal/request-service/adapters/driven/sqlite"
	"blood-link/internal/request-service/adapters/driver/myhttp"
	"blood-link/internal/request-service/adapters/driver/myhttp/handle"
	"blood-link/internal/request-service/adapters/driver/myhttp/middleware"
	"blood-link/internal/request-service/adapters/driver/myhttp/ws"
	"blood-link/internal/request-service/core/ports"
	"blood-link/internal/request-service/core/services"
)

// Execute wires the request service and blocks until a shutdown signal or a server failure.
func Execute(ctx context.Context, mylog mylogger.Logger, cfg *config.Config) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	shutdownTracing, err := observability.InitTracing(runCtx, cfg.Tracing, mylog)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, mylog)

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	store, err := openStore(runCtx, cfg, mylog)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			mylog.Error("Failed to close store", err)
		}
	}()

	geocoder, err := geocode.LoadFile(cfg.App.HospitalsFile)
	if err != nil {
		return err
	}
	mylog.Info("hospital directory loaded", "hospitals", geocoder.Len())

	archiver, err := openArchive(runCtx, cfg)
	if err != nil {
		return err
	}

	checks := map[string]handle.Check{"store": store.IsAlive}
	var (
		events ports.IEventPublisher
		broker *bm.RabbitMQ
	)
	if cfg.RabbitMq.Enabled {
		broker, err = bm.New(runCtx, *cfg.RabbitMq, mylog)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer func() { _ = broker.Close() }()
		events = broker
		checks["broker"] = func(context.Context) error {
			if !broker.IsAlive() {
				return bm.ErrConnClosed
			}
			return nil
		}
		mylog.Info("Successful message broker connection")
	}

	dispatcher := ws.NewDispatcher(runCtx, mylog, func(token string) (string, error) {
		return middleware.ParseToken(cfg.App.PublicJwtSecret, token)
	})
	defer dispatcher.Close()
	notifier := notification.New(mylog, store, dispatcher, events)

	opts := services.Options{
		MaxDistanceKm:     cfg.Sweep.MaxAvailableKm,
		MaxEligibleDonors: cfg.Sweep.MaxEligibleDonors,
		DeleteExpired:     cfg.Sweep.ExpiredRetention == config.RetentionDelete,
	}
	requestService := services.NewRequestService(mylog, store, events, notifier, geocoder, archiver, metrics, opts)
	matchingService := services.NewMatchingService(mylog, store, events, notifier, metrics, opts)
	trackingService := services.NewTrackingService(mylog, store, requestService, events, notifier, geocoder, dispatcher, metrics, opts)
	profileService := services.NewProfileService(mylog, store, opts)
	overviewService := services.NewOverviewService(mylog, store, opts)
	notificationService := services.NewNotificationService(mylog, store)

	var wg sync.WaitGroup
	if broker != nil {
		if err := consumer.New(runCtx, &wg, mylog, broker, trackingService).Run(); err != nil {
			return fmt.Errorf("start location consumer: %w", err)
		}
	}

	sweeper := services.NewSweeper(mylog, requestService, trackingService, cfg.Sweep.Interval, cfg.Sweep.TrackingInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(runCtx)
	}()

	server := myhttp.New(runCtx, mylog, cfg, myhttp.Deps{
		Requests:      requestService,
		Matching:      matchingService,
		Tracking:      trackingService,
		Profiles:      profileService,
		Overview:      overviewService,
		Notifications: notificationService,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Checks:        checks,
	})

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- server.Run()
	}()

	var runErr error
	select {
	case <-sigCtx.Done():
		mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
	case err := <-runErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			mylog.Action("request_service_failed").Error("Server failed unexpectedly", err)
			runErr = err
		}
	}

	stopErr := server.Stop(context.Background())
	cancel()
	wg.Wait()
	mylog.Action("server_stopped").Info("Request service stopped")
	return errors.Join(runErr, stopErr)
}

func openStore(ctx context.Context, cfg *config.Config, mylog mylogger.Logger) (ports.IStore, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		mylog.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil
	case config.StoreSQLite:
		s, err := sqlite.NewStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		mylog.Info("sqlite store opened", "path", cfg.Store.SQLitePath)
		return s, nil
	default:
		d, err := db.New(ctx, cfg.DB, mylog)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		mylog.Info("Successful database connection")
		return d, nil
	}
}

// openArchive returns a nil archive when archiving is off.
func openArchive(ctx context.Context, cfg *config.Config) (ports.IArchive, error) {
	switch cfg.Archive.Driver {
	case config.ArchiveFS:
		return archive.NewFS(cfg.Archive.Dir)
	case config.ArchiveS3:
		return archive.NewS3(ctx, cfg.Archive)
	}
	return nil, nil
}
