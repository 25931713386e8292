package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/prepdeck/interviewchat/internal/api/middleware"
	"github.com/prepdeck/interviewchat/internal/controller"
	"github.com/prepdeck/interviewchat/internal/logging"
)

// StatusSource exposes the controller's point-in-time state.
type StatusSource interface {
	Status() controller.Status
}

// Options configures the debug server.
type Options struct {
	Addr     string
	Source   StatusSource
	Registry *prometheus.Registry
	Logger   *logging.Logger
}

// Server is the local debug surface: health, controller status, and
// Prometheus metrics. It never carries chat traffic.
type Server struct {
	router *gin.Engine
	srv    *http.Server
	log    *logging.Logger
}

// New builds the debug server and registers its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoopbackOnly())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	s := &Server{
		router: router,
		srv: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: opts.Logger.Component("debug-server"),
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, opts.Source.Status())
	})
	if opts.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			opts.Registry, promhttp.HandlerOpts{})))
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("debug server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
