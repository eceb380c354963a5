package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/roach88/subvote/internal/abuse"
	"github.com/roach88/subvote/internal/store"
	"github.com/roach88/subvote/internal/submission"
)

// Options configures a Server.
type Options struct {
	// APIToken is the bearer token every /api request must carry.
	APIToken string

	// CORSOrigins lists browser origins allowed to call the API.
	// Empty disables CORS handling.
	CORSOrigins []string

	// Reports enables the /api/abuse-reports routes when set.
	Reports *abuse.Service

	Logger *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	submissions *submission.Service
	reports     *abuse.Service
	store       *store.Store
	token       string
	logger      *slog.Logger
	router      *gin.Engine
}

// New builds the router. The caller decides how to listen; see Serve.
func New(svc *submission.Service, s *store.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		submissions: svc,
		reports:     opts.Reports,
		store:       s,
		token:       opts.APIToken,
		logger:      logger,
	}

	router := gin.New()
	router.Use(gin.Recovery(), srv.requestLog())
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	router.GET("/health", srv.health)

	api := router.Group("/api", srv.requireToken())
	{
		api.POST("/applications", srv.createApplication)
		api.GET("/applications", srv.listApplications)
		api.GET("/applications/:id", srv.getApplication)
		api.POST("/records/:id/applications", srv.updateApplication)
		api.DELETE("/records/:id", srv.deleteRecord)
		api.GET("/users/:id/records", srv.listUserRecords)
	}
	if srv.reports != nil {
		api.POST("/abuse-reports", srv.createAbuseReport)
		api.GET("/abuse-reports", srv.listAbuseReports)
		api.POST("/abuse-reports/:id/acknowledge", srv.acknowledgeAbuseReport)
		api.POST("/abuse-reports/:id/suspend", srv.suspendAbuseReport)
		api.POST("/abuse-reports/:id/ignore", srv.ignoreAbuseReport)
	}

	srv.router = router
	return srv
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http api stopped")
	return nil
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || s.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid bearer token"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "subvote"})
}
