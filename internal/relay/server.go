package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"vcard-wallet-go/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig carries the optional relay features.
type RouterConfig struct {
	JwtSecret string
	Cors      models.CorsConfig
	RateLimit models.RateLimitConfig
}

// NewRouter wires the relay routes. Only /api/create-card requires a caller
// token, and only when a JWT secret is configured.
func NewRouter(h *Handler, metrics *Metrics, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), metrics.Middleware(), CORS(cfg.Cors))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/test", h.Test)

	create := []gin.HandlerFunc{}
	if cfg.JwtSecret != "" {
		create = append(create, RequireUser(cfg.JwtSecret))
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		create = append(create, NewRateLimiter(cfg.RateLimit).Middleware())
	}
	create = append(create, h.CreateCard)
	api.POST("/create-card", create...)

	return r
}

// Server owns the HTTP listener for the relay.
type Server struct {
	httpServer *http.Server
}

func NewServer(port string, handler http.Handler, requestTimeout time.Duration) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      requestTimeout + 10*time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start serves until Shutdown is called. The returned channel yields a
// listener error, if any.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("Relay listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
