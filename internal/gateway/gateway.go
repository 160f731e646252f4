package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nullbridge/tunnelgate/internal/config"
	"github.com/nullbridge/tunnelgate/internal/connlog"
	"github.com/nullbridge/tunnelgate/internal/security"
	"github.com/nullbridge/tunnelgate/internal/tunnel"
)

// Gateway owns every long-lived service this system runs: the agent
// registry, the security ledger, the connection log, the tunnel
// listener, the HTTP dispatch API, and the maintenance scheduler. It
// replaces the teacher's package-level singletons (its own comment in
// server.go notes the Java source's static ban-set/registry) with one
// value constructed at startup and torn down at shutdown, per
// SPEC_FULL.md's design-notes section on scoped services.
type Gateway struct {
	cfg        *config.Config
	log        *slog.Logger
	registry   *tunnel.Registry
	ledger     *security.Ledger
	connLog    *connlog.Logger
	metrics    *Metrics
	registerer prometheus.Registerer

	startedAt time.Time

	tunnelListener *tunnel.Listener
	scheduler      *Scheduler

	httpServer *http.Server
	tunnelStop chan struct{}
}

// New constructs a Gateway from cfg. It does not start listening; call
// Run for that.
func New(cfg *config.Config, log *slog.Logger) *Gateway {
	connLog := connlog.New(cfg.MaxLogEntries)
	registry := tunnel.NewRegistry(connLog, log)
	ledger := security.New(cfg.Ban.ToSecurityThresholds())
	registerer := prometheus.NewRegistry()
	metrics := NewMetrics(registerer)

	g := &Gateway{
		cfg:        cfg,
		log:        log,
		registry:   registry,
		ledger:     ledger,
		connLog:    connLog,
		metrics:    metrics,
		registerer: registerer,
		startedAt:  time.Now(),
		tunnelStop: make(chan struct{}),
	}

	deps := tunnel.HandshakeDeps{
		AuthToken: cfg.AuthToken,
		Ledger:    ledger,
		ConnLog:   connLog,
		Registry:  registry,
		Timeouts: tunnel.Timeouts{
			Handshake: cfg.HandshakeTimeout,
			Idle:      cfg.IdleTimeout,
			Dispatch:  cfg.DispatchTimeout,
			Heartbeat: cfg.HeartbeatTimeout,
		},
		Log: log,
	}
	g.tunnelListener = tunnel.NewListener(cfg.TunnelAddr, deps)
	g.scheduler = NewScheduler(cfg.SweepInterval, registry, ledger, metrics, log)

	g.httpServer = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: g.routes(),
	}

	return g
}

func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/forward", g.requireAdmin(g.handleForward))
	mux.HandleFunc("GET /api/health", g.handleHealth)
	mux.HandleFunc("GET /api/health/{name}", g.handleHealthNamed)
	mux.HandleFunc("GET /api/security-status", g.requireAdmin(g.handleSecurityStatus))
	mux.HandleFunc("POST /api/admin/security", g.requireAdmin(g.handleAdminSecurity))
	mux.HandleFunc("POST /api/cleanup-connections", g.requireAdmin(g.handleCleanupConnections))
	mux.HandleFunc("GET /api/admin/connection-logs", g.requireAdmin(g.handleConnectionLogs))
	mux.HandleFunc("POST /api/admin/connection-logs/clear", g.requireAdmin(g.handleConnectionLogsClear))
	mux.Handle("/metrics", promhttp.HandlerFor(g.registerer.(prometheus.Gatherer), promhttp.HandlerOpts{}))

	return mux
}

// Run starts the tunnel listener and the HTTP server and blocks until
// ctx is cancelled, then closes the tunnel listener and shuts the HTTP
// server down with a bounded (10s) grace period, mirroring the teacher's own Run(ctx) shutdown idiom in server.go
// generalized from one listener to two.
func (g *Gateway) Run(ctx context.Context) error {
	g.scheduler.Start(ctx)

	errCh := make(chan error, 2)
	go func() {
		if err := g.tunnelListener.Run(g.tunnelStop); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		g.log.Info("gateway shutting down")
		close(g.tunnelStop)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return g.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
