package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"asset-console/internal/backend"
	"asset-console/internal/config"
	"asset-console/internal/event"
	"asset-console/internal/handler"
	"asset-console/internal/metrics"
	"asset-console/internal/model"
	"asset-console/internal/push"
	"asset-console/internal/router"
	"asset-console/internal/service"
	"asset-console/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

var pushStates = []string{
	string(push.StateDisconnected),
	string(push.StateConnecting),
	string(push.StateConnected),
}

// App is one console session against the backend: the HTTP client, the
// services built on it and the push connection.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
	bus     *event.InMemoryBus
	backend *backend.Client
	push    *push.Client
	hub     *websocket.Hub

	debouncer *service.Debouncer

	Sessions      *service.SessionService
	Hierarchy     *service.HierarchyService
	Mutations     *service.MutationService
	Signals       *service.SignalService
	Transfer      *service.TransferService
	Notifications *service.NotificationService

	mu         sync.Mutex
	pushCancel context.CancelFunc
	pushDone   chan struct{}
}

// New wires the console without touching the network.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	collector := metrics.NewCollector()
	bus := event.NewBus(logger, event.WithDropHook(func(t event.Type) {
		collector.EventDropped(string(t))
	}))

	client, err := backend.New(backend.Options{
		BaseURL:     cfg.BackendURL,
		Timeout:     cfg.BackendTimeout,
		RPS:         cfg.BackendRPS,
		Burst:       cfg.BackendBurst,
		InsecureTLS: cfg.BackendInsecureTLS,
		Breaker: backend.BreakerSettings{
			FailureRatio: cfg.BreakerFailureRatio,
			MinRequests:  cfg.BreakerMinRequests,
			OpenTimeout:  cfg.BreakerOpenTimeout,
		},
		Logger:   logger,
		Observer: collector.ObserveBackend,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend client: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		bus:     bus,
		backend: client,
		hub:     websocket.NewHub(bus, cfg.CORSOrigins, logger),
	}

	a.Hierarchy = service.NewHierarchyService(client, bus, collector, logger, cfg.BackendTimeout)
	a.debouncer = service.NewDebouncer(cfg.RefreshDebounce, func(ctx context.Context) {
		a.Hierarchy.Refresh(ctx)
	})
	a.Mutations = service.NewMutationService(client, a.Hierarchy, collector, logger)
	a.Signals = service.NewSignalService(client, collector)
	a.Transfer = service.NewTransferService(client, a.Hierarchy, cfg.MaxUploadSize)
	a.Notifications = service.NewNotificationService(client, bus, a.debouncer.Trigger, collector, logger, cfg.PushEventBuffer)
	a.Sessions = service.NewSessionService(client, logger)

	a.push = push.New(push.Options{
		HubURL:          cfg.PushHubURL,
		HTTPClient:      client.HTTPClient(),
		Authorize:       client.Authorize,
		ReconnectDelays: cfg.PushReconnectDelays,
		InsecureTLS:     cfg.BackendInsecureTLS,
		Logger:          logger,
		OnState:         a.onPushState,
		OnEvent: func(e model.PushEvent) {
			a.Notifications.Enqueue(e)
		},
	})

	a.Sessions.OnLogin(a.Notifications.SetSession)
	a.Sessions.OnLogout(func() {
		a.stopPush()
		a.Notifications.Reset()
		a.Hierarchy.Clear()
	})

	return a, nil
}

func (a *App) onPushState(state push.State) {
	a.metrics.SetPushState(string(state), pushStates...)
	a.bus.Publish(event.New(event.TypePushState, event.PushStatePayload{State: string(state)}))
}

// Login opens the backend session from the configured credentials. A token
// wins over username and password.
func (a *App) Login(ctx context.Context) (model.SessionData, error) {
	if a.cfg.BackendToken != "" {
		return a.Sessions.LoginWithToken(ctx, a.cfg.BackendToken)
	}
	return a.Sessions.LoginWithPassword(ctx, a.cfg.BackendUsername, a.cfg.BackendPassword)
}

// Start logs in and loads the hierarchy once. A failed first load is not
// fatal; the projection reports it as errored.
func (a *App) Start(ctx context.Context) (model.SessionData, service.Snapshot, error) {
	session, err := a.Login(ctx)
	if err != nil {
		return model.SessionData{}, service.Snapshot{}, fmt.Errorf("backend login failed: %w", err)
	}

	snap := a.Hierarchy.Refresh(ctx)
	if snap.Err != nil {
		a.logger.Warn("initial hierarchy load failed", "error", snap.Err)
	}
	return session, snap, nil
}

// Serve runs the console API with the push connection and background workers
// until ctx is cancelled, then shuts everything down.
func (a *App) Serve(ctx context.Context) error {
	session, _, err := a.Start(ctx)
	if err != nil {
		return err
	}

	if err := a.Notifications.Reload(ctx); err != nil {
		a.logger.Warn("notification log unavailable", "error", err)
	}

	workers, workerCtx := errgroup.WithContext(ctx)
	workers.Go(func() error {
		a.debouncer.Run(workerCtx)
		return nil
	})
	workers.Go(func() error {
		a.Notifications.Run(workerCtx)
		return nil
	})
	workers.Go(func() error {
		a.hub.Run(workerCtx)
		return nil
	})
	a.startPush(workerCtx)

	server := &http.Server{
		Addr:              ":" + a.cfg.ServerPort,
		Handler:           a.Handler(session.Capabilities),
		ReadHeaderTimeout: a.cfg.ServerReadTimeout,
		WriteTimeout:      a.cfg.ServerWriteTimeout,
		IdleTimeout:       a.cfg.ServerIdleTimeout,
	}

	workers.Go(func() error {
		a.logger.Info("server starting", "addr", server.Addr, "user", session.User.Username, "role", session.User.Role)
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", serveErr)
		}
		return nil
	})
	workers.Go(func() error {
		<-workerCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		a.stopPush()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err = workers.Wait()
	a.logger.Info("server stopped")
	return err
}

// Handler builds the console API for a session with caps.
func (a *App) Handler(caps model.Capabilities) http.Handler {
	return router.New(a.cfg, a.logger, a.metrics, a.Sessions, caps, router.Handlers{
		Session:      handler.NewSessionHandler(a.Sessions, a.push.State),
		Hierarchy:    handler.NewHierarchyHandler(a.Hierarchy),
		Asset:        handler.NewAssetHandler(a.Mutations),
		Signal:       handler.NewSignalHandler(a.Signals),
		Transfer:     handler.NewTransferHandler(a.Transfer, a.cfg.MaxUploadSize),
		Notification: handler.NewNotificationHandler(a.Notifications),
	}, a.hub)
}

func (a *App) startPush(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pushCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.pushCancel = cancel
	a.pushDone = done

	go func() {
		defer close(done)
		_ = a.push.Run(ctx)
	}()
}

func (a *App) stopPush() {
	a.mu.Lock()
	cancel, done := a.pushCancel, a.pushDone
	a.pushCancel, a.pushDone = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Logout ends the backend session and stops the push connection.
func (a *App) Logout() {
	a.Sessions.Logout()
}
