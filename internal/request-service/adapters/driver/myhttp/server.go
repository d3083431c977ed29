package myhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"blood-link/internal/config"
	"blood-link/internal/mylogger"
	"blood-link/internal/observability"
	"blood-link/internal/request-service/adapters/driver/myhttp/handle"
	"blood-link/internal/request-service/adapters/driver/myhttp/middleware"
	"blood-link/internal/request-service/adapters/driver/myhttp/ws"
	"blood-link/internal/request-service/core/ports"
)

const WaitTime = 10

// Deps are the services and sinks the HTTP surface is built from.
type Deps struct {
	Requests      ports.IRequestService
	Matching      ports.IMatchingService
	Tracking      ports.ITrackingService
	Profiles      ports.IProfileService
	Overview      ports.IOverviewService
	Notifications ports.INotificationService
	Dispatcher    *ws.Dispatcher
	Metrics       *observability.Collector
	Checks        map[string]handle.Check
}

type Server struct {
	ctx   context.Context
	cfg   *config.Config
	mylog mylogger.Logger
	mux   *http.ServeMux

	mu  sync.Mutex
	srv *http.Server
}

func New(ctx context.Context, mylog mylogger.Logger, cfg *config.Config, deps Deps) *Server {
	s := &Server{
		ctx:   ctx,
		cfg:   cfg,
		mylog: mylog,
		mux:   http.NewServeMux(),
	}
	s.Configure(deps)
	return s
}

// Run starts listening. It returns when the server stops or ctx is done.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%v", s.cfg.Srv.RequestServicePort),
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Unlock()

	mylog.WithGroup("details").With("port", s.cfg.Srv.RequestServicePort).Info("server is running")
	return s.startHTTPServer()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Info("Shutting down HTTP server...")
	if s.srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, WaitTime*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.mylog.Error("Failed to shut down HTTP server gracefully", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.mylog.Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) startHTTPServer() error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Configure registers the request, matching, tracking, profile, overview and notification
// APIs plus the websocket stream, health and metrics endpoints.
func (s *Server) Configure(d Deps) {
	requestHandler := handle.NewRequestsHandler(d.Requests, s.mylog)
	matchingHandler := handle.NewMatchingHandler(d.Matching, s.mylog)
	trackingHandler := handle.NewTrackingHandler(d.Tracking, s.mylog)
	profileHandler := handle.NewProfileHandler(d.Profiles, s.mylog)
	overviewHandler := handle.NewOverviewHandler(s.mylog, d.Overview)
	notificationHandler := handle.NewNotificationHandler(d.Notifications, s.mylog)

	authMiddleware := middleware.NewAuthMiddleware(s.cfg.App.PublicJwtSecret)
	route := func(pattern string, h http.Handler) {
		s.mux.Handle(pattern, d.Metrics.Instrument(pattern, authMiddleware.Wrap(h)))
	}

	// lifecycle
	route("POST /requests", requestHandler.CreateRequest())
	route("GET /requests/{request_id}", requestHandler.GetRequest())
	route("POST /requests/{request_id}/cancel", requestHandler.CancelRequest())
	route("POST /requests/{request_id}/complete", requestHandler.CompleteRequest())
	route("GET /requests/mine", requestHandler.ListMine())

	// matching
	route("GET /requests/available", matchingHandler.ListAvailable())
	route("GET /requests/accepted", matchingHandler.ListAccepted())
	route("POST /requests/{request_id}/accept", matchingHandler.Accept())
	route("GET /requests/{request_id}/eligible-donors", matchingHandler.EligibleDonors())

	// tracking
	route("POST /requests/{request_id}/location", trackingHandler.ReportLocation())
	route("POST /requests/{request_id}/arrival/confirm", trackingHandler.ConfirmArrival())
	route("POST /requests/{request_id}/arrival/deny", trackingHandler.DenyArrival())

	// profile
	route("PUT /profile", profileHandler.UpsertProfile())
	route("GET /profile", profileHandler.GetProfile())

	route("GET /stats/overview", overviewHandler.GetSystemOverview())
	route("GET /notifications", notificationHandler.ListNotifications())

	// websocket routes
	if d.Dispatcher != nil {
		s.mux.Handle("GET /ws/users/{user_id}", d.Dispatcher.WsHandler())
	}

	s.mux.Handle("GET /health", handle.Health(d.Checks))
	if d.Metrics != nil {
		s.mux.Handle("GET /metrics", d.Metrics.Handler())
	}
}
