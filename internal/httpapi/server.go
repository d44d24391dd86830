package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"openjack/internal/session"
)

// LiveStats are in-memory counters since the dealer started.
type LiveStats struct {
	SessionsStarted uint64            `json:"sessions_started"`
	SessionsActive  int               `json:"sessions_active"`
	SessionsClosed  map[string]uint64 `json:"sessions_closed"`
	Rounds          uint64            `json:"rounds"`
	PlayerWins      uint64            `json:"player_wins"`
	DealerWins      uint64            `json:"dealer_wins"`
	Ties            uint64            `json:"ties"`
	OffersSent      uint64            `json:"offers_sent"`
	OffersFailed    uint64            `json:"offers_failed"`
	StartedAt       time.Time         `json:"started_at"`
}

// Backend is what the API reads from the running dealer.
type Backend interface {
	DealerName() string
	TCPPort() int
	Sessions() []session.Info
	Stats() LiveStats
}

// Server is the dealer's management API.
type Server struct {
	router  *gin.Engine
	backend Backend
	hub     *Hub
	logger  *slog.Logger
}

// NewServer builds the router. hub may be nil, in which case /ws/events
// is not served.
func NewServer(backend Backend, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		backend: backend,
		hub:     hub,
		logger:  logger.With("component", "http"),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLog())

	s.router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.router.GET("/health", s.health)
	s.router.GET("/sessions", s.sessions)
	s.router.GET("/stats/live", s.stats)
	if s.hub != nil {
		s.router.GET("/ws/events", s.hub.HandleEvents)
		s.router.GET("/ws/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"connected_clients": s.hub.ClientCount()})
		})
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"dealer":   s.backend.DealerName(),
		"tcp_port": s.backend.TCPPort(),
	})
}

func (s *Server) sessions(c *gin.Context) {
	list := s.backend.Sessions()
	if list == nil {
		list = []session.Info{}
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": list,
		"count":    len(list),
	})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.Stats())
}

// Router returns the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve runs the API on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("management API listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
