// Package server exposes the read-only query surface over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	spashta "github.com/mpcoder1111/Spashta-CKG"
)

// Loader produces a fresh QueryBuilder from the published artifacts.
type Loader func() (*spashta.QueryBuilder, error)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string    `json:"status"`
	Nodes    int       `json:"nodes"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Server serves queries over the most recently loaded graph.
type Server struct {
	load     Loader
	logger   *zap.Logger
	registry *prometheus.Registry

	mu       sync.RWMutex
	query    *spashta.QueryBuilder
	loadedAt time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistry exposes reg on GET /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New loads the graph once and returns a Server over it.
func New(load Loader, opts ...Option) (*Server, error) {
	s := &Server{load: load, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload swaps in a freshly loaded graph. On failure the current graph
// keeps serving.
func (s *Server) Reload() error {
	q, err := s.load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.query, s.loadedAt = q, time.Now().UTC()
	s.mu.Unlock()
	s.logger.Info("graph loaded", zap.Int("nodes", q.Graph().Len()))
	return nil
}

func (s *Server) current() (*spashta.QueryBuilder, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query, s.loadedAt
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.GET("/healthz", s.handleHealth)
	if s.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
	RegisterRoutes(r.Group("/v1"), s)
	return r
}

// RegisterRoutes mounts the query routes on rg.
func RegisterRoutes(rg *gin.RouterGroup, s *Server) {
	rg.GET("/search", s.handleSearch)
	rg.GET("/locate", s.handleLocate)
	rg.GET("/read", s.handleRead)
	rg.GET("/details", s.handleDetails)
	rg.GET("/impact", s.handleTrace(spashta.DefaultImpactDepth, (*spashta.QueryBuilder).Impact))
	rg.GET("/dependencies", s.handleTrace(spashta.DefaultDependenciesDepth, (*spashta.QueryBuilder).Dependencies))
	rg.GET("/call-graph", s.handleCallGraph)
	rg.GET("/stats", s.handleStats)
	rg.GET("/files", s.handleFiles)
	rg.POST("/reload", s.handleReload)
}

// Serve runs the HTTP server on addr until ctx is done, then shuts it
// down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving queries", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	q, at := s.current()
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Nodes: q.Graph().Len(), LoadedAt: at})
}

func (s *Server) handleReload(c *gin.Context) {
	if err := s.Reload(); err != nil {
		s.logger.Warn("reload failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "RELOAD_FAILED", err)
		return
	}
	s.handleHealth(c)
}

func (s *Server) handleSearch(c *gin.Context) {
	term := c.Query("q")
	if term == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query parameter q is required", Code: "INVALID_REQUEST"})
		return
	}
	q, _ := s.current()
	c.JSON(http.StatusOK, q.Search(term, c.Query("type")))
}

// nodeID reads the required id parameter, replying 400 when it is absent.
func nodeID(c *gin.Context) (string, bool) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query parameter id is required", Code: "INVALID_REQUEST"})
		return "", false
	}
	return id, true
}

func (s *Server) handleLocate(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	q, _ := s.current()
	v, err := q.Locate(id)
	reply(c, v, err)
}

func (s *Server) handleRead(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	q, _ := s.current()
	v, err := q.Read(id)
	reply(c, v, err)
}

func (s *Server) handleDetails(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	q, _ := s.current()
	v, err := q.Details(id)
	reply(c, v, err)
}

func (s *Server) handleCallGraph(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	q, _ := s.current()
	v, err := q.CallGraph(id)
	reply(c, v, err)
}

type traceFunc func(q *spashta.QueryBuilder, id string, depth int) ([]spashta.Relation, error)

func (s *Server) handleTrace(defaultDepth int, trace traceFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := nodeID(c)
		if !ok {
			return
		}
		depth := defaultDepth
		if raw := c.Query("depth"); raw != "" {
			d, err := strconv.Atoi(raw)
			if err != nil || d < 0 {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "depth must be a non-negative integer", Code: "INVALID_DEPTH"})
				return
			}
			depth = d
		}
		q, _ := s.current()
		v, err := trace(q, id, depth)
		reply(c, v, err)
	}
}

func (s *Server) handleStats(c *gin.Context) {
	q, _ := s.current()
	c.JSON(http.StatusOK, q.Stats())
}

func (s *Server) handleFiles(c *gin.Context) {
	q, _ := s.current()
	c.JSON(http.StatusOK, q.ListFiles())
}

// reply writes v, or maps err onto a status code.
func reply[T any](c *gin.Context, v T, err error) {
	if err != nil {
		status, code := http.StatusUnprocessableEntity, "QUERY_FAILED"
		if errors.Is(err, spashta.ErrNotFound) {
			status, code = http.StatusNotFound, "NODE_NOT_FOUND"
		}
		fail(c, status, code, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func fail(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
