// Package restapi is the thin out-of-scope HTTP surface named in SPEC_FULL.md
// §1 and §7: gin-gonic/gin plus gin-contrib/cors exposing the in-process
// query router and vector collection store 1:1, with no semantics of its
// own beyond request/response translation.
package restapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/logging"
	"github.com/lumos-db/lumosdb/internal/query"
	"github.com/lumos-db/lumosdb/internal/ratelimit"
	"github.com/lumos-db/lumosdb/internal/rowengine"
	"github.com/lumos-db/lumosdb/internal/vector"
	"github.com/lumos-db/lumosdb/pkg/config"
)

// DefaultBodyLimit caps request bodies on the thin REST surface.
const DefaultBodyLimit = 1 * 1024 * 1024 // 1MB

// AuthMiddleware is named per SPEC_FULL.md §1 ("auth middleware is a named
// no-op interface (`AuthMiddleware`)") but intentionally left
// unimplemented: this surface carries no authentication scheme of its own.
type AuthMiddleware interface {
	Handle() gin.HandlerFunc
}

// Server wraps the gin router and the handful of core collaborators the
// thin surface delegates to: the Query Router/CrossEngineExecutor for
// /query, and a registry of named vector collections for /collections*.
type Server struct {
	router      *gin.Engine
	cfg         *config.Config
	row         *rowengine.Engine
	column      *columnengine.Engine
	queryRouter *query.Router
	crossEngine *query.CrossEngineExecutor
	limiter     *ratelimit.Limiter
	httpServer  *http.Server
	log         *logging.Logger

	mu          sync.RWMutex
	collections map[string]*vector.CollectionStore
}

// NewServer constructs the REST surface over the already-open row/column
// engines, wiring gin.New()+Recovery(), conditional CORS, and rate limiting
// the way teacher's internal/api.NewServer does (SPEC_FULL.md §7).
func NewServer(row *rowengine.Engine, column *columnengine.Engine, cfg *config.Config) *Server {
	log := logging.GetLogger("restapi")
	log.Info("initializing REST API server")

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.RestAPI.CORS {
		log.Debug("enabling CORS")
		router.Use(cors.New(cors.Config{
			AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
			AllowAllOrigins: true,
			MaxAge:          12 * time.Hour,
		}))
	}

	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig())
	router.Use(RateLimitMiddleware(limiter))
	router.Use(MaxBodySizeMiddleware(DefaultBodyLimit))

	s := &Server{
		router:      router,
		cfg:         cfg,
		row:         row,
		column:      column,
		queryRouter: query.NewRouter(row, column),
		crossEngine: query.NewCrossEngineExecutor(row, column),
		limiter:     limiter,
		log:         log,
		collections: make(map[string]*vector.CollectionStore),
	}
	s.setupRoutes()
	return s
}

// setupRoutes wires exactly the five routes SPEC_FULL.md §7 names, no more:
// the collection and query surfaces, matching the in-process APIs 1:1.
func (s *Server) setupRoutes() {
	s.router.GET("/collections", s.listCollections)
	s.router.POST("/collections", s.createCollection)
	s.router.DELETE("/collections/:name", s.deleteCollection)
	s.router.POST("/query", s.runQuery)
	s.router.POST("/collections/:name/search", s.searchCollection)
}

// Router returns the underlying gin engine, for tests and for embedding in
// an httptest.Server.
func (s *Server) Router() *gin.Engine { return s.router }

// StartWithContext starts the HTTP server and blocks until ctx is
// cancelled or the server fails, then shuts down gracefully within
// shutdownTimeout (mirrors teacher's internal/api.Server.StartWithContext).
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.RestAPI.Host, s.cfg.RestAPI.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting REST API server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping REST API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("server shutdown error", "error", err)
		return err
	}
	s.log.Info("REST API server stopped")
	return nil
}
