package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/internal/bracket"
	"github.com/SubhajL/online-trading-sub002/internal/events"
	"github.com/SubhajL/online-trading-sub002/internal/monitor"
	"github.com/SubhajL/online-trading-sub002/pkg/db"
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// Orders is the bracket orchestrator as seen by the HTTP layer.
// *bracket.Service implements it.
type Orders interface {
	Place(ctx context.Context, req bracket.Request) (*bracket.Bracket, error)
	Cancel(ctx context.Context, venue exchange.MarketType, symbol, orderID string) error
	CloseAll(ctx context.Context, venue exchange.MarketType, symbol string) (*bracket.CloseResult, error)
}

// Options wires the server. Only Orders is required; nil Bus, Journal or
// Metrics disable the routes that need them.
type Options struct {
	Orders     Orders
	Validators map[exchange.MarketType]*filters.Validator // readiness
	Bus        *events.Bus
	Journal    *db.Journal
	Metrics    *monitor.Metrics
	Logger     *zap.Logger
	Meta       SystemMeta

	JWTSecret      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

// SystemMeta describes the runtime exposed on /stats.
type SystemMeta struct {
	DryRun  bool     `json:"dry_run"`
	Venues  []string `json:"venues"`
	Version string   `json:"version"`
}

// Server wires HTTP endpoints around the bracket orchestrator.
type Server struct {
	Router *gin.Engine

	orders     Orders
	validators map[exchange.MarketType]*filters.Validator
	bus        *events.Bus
	journal    *db.Journal
	metrics    *monitor.Metrics
	logger     *zap.Logger
	meta       SystemMeta
	jwtSecret  string
	cors       *cors.Cors
	started    time.Time
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "api"))
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(logger, opts.Metrics))
	r.Use(RateLimitMiddleware(newIPLimiter(opts.RateLimitRPS, opts.RateLimitBurst), logger))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))

	s := &Server{
		Router:     r,
		orders:     opts.Orders,
		validators: opts.Validators,
		bus:        opts.Bus,
		journal:    opts.Journal,
		metrics:    opts.Metrics,
		logger:     logger,
		meta:       opts.Meta,
		jwtSecret:  opts.JWTSecret,
		cors: cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
		}),
		started: time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/healthz", s.health)
	s.Router.GET("/readyz", s.ready)
	s.Router.GET("/stats", s.stats)
	s.Router.GET("/ws", s.websocket)
	if s.metrics != nil {
		s.Router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	s.Router.GET("/brackets/:id/events", s.bracketEvents)

	// Mutating routes need a bearer token when a secret is configured.
	orders := s.Router.Group("")
	if s.jwtSecret != "" {
		orders.Use(AuthMiddleware(s.jwtSecret))
	}
	{
		orders.POST("/place_bracket", s.placeBracket)
		orders.POST("/cancel", s.cancelOrder)
		orders.POST("/close_all", s.closeAll)
	}
}

// Handler is the full HTTP handler: CORS around the gin router.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.Router)
}

// Start serves on addr until ctx is done, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ready reports 503 until every enabled venue has a filter snapshot, since
// brackets cannot be rounded without one.
func (s *Server) ready(c *gin.Context) {
	venues := make(map[string]int, len(s.validators))
	ready := len(s.validators) > 0
	for venue, v := range s.validators {
		n := v.Len()
		venues[string(venue)] = n
		if n == 0 {
			ready = false
		}
	}
	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "symbols": venues})
}

func (s *Server) stats(c *gin.Context) {
	out := gin.H{
		"meta":   s.meta,
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if s.metrics != nil {
		out["metrics"] = s.metrics.GetSnapshot()
	}
	if s.bus != nil {
		out["ws_subscribers"] = s.bus.Subscribers(events.EventOrderUpdate)
		out["bus_dropped"] = s.bus.Dropped()
	}
	c.JSON(http.StatusOK, out)
}
