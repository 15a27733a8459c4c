package server

import (
	"net/http"

	"vegamdb"
	"vegamdb/internal/config"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Server is the REST front-end. It consumes only the public DB surface; the
// DB's own locking provides the single-writer/multi-reader model, so the
// server adds no locks of its own.
type Server struct {
	router   *gin.Engine
	db       *vegamdb.DB
	cache    *lru.Cache[string, searchResponse]
	limiter  *rate.Limiter
	metrics  *metrics
	dataPath string
}

// New builds the router. The search cache is dropped wholesale on any
// mutation, so a cached response can never outlive the index it came from.
func New(db *vegamdb.DB, cfg *config.Config) (*Server, error) {
	cache, err := lru.New[string, searchResponse](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	s := &Server{
		router:   gin.New(),
		db:       db,
		cache:    cache,
		metrics:  newMetrics(),
		dataPath: cfg.DataPath,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	s.router.Use(gin.Recovery(), s.rateLimit())

	s.router.GET("/", s.handleHealthCheck())
	s.router.GET("/stats", s.handleStats())
	s.router.GET("/metrics", gin.WrapH(s.metrics.handler()))
	s.router.POST("/vectors", s.handleAddVector())
	s.router.POST("/vectors/batch", s.handleAddBatch())
	s.router.POST("/index", s.handleBuildIndex())
	s.router.POST("/search", s.handleSearch())
	s.router.POST("/save", s.handleSave())
	s.router.POST("/load", s.handleLoad())
	return s, nil
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
