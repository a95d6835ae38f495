package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/bronze/internal/bronze"
	"github.com/tinytelemetry/bronze/internal/fetch"
	"github.com/tinytelemetry/bronze/internal/model"
)

const defaultMaxBodyBytes = 32 << 20

// Fetcher is the narrow fetch contract required by the HTTP API.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]model.Record, error)
}

// Preparer is the narrow bronze contract required by the HTTP API.
type Preparer interface {
	Prepare(records []model.Record, source string) ([]model.BronzeRow, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string, timeout time.Duration) ([]model.Record, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string, timeout time.Duration) ([]model.Record, error) {
	return f(ctx, url, timeout)
}

// Config holds HTTP API settings.
type Config struct {
	Addr           string
	DefaultTimeout time.Duration
	MaxBodyBytes   int64
	Fetcher        Fetcher
	Preparer       Preparer
}

// Server exposes bronze row preparation over HTTP.
type Server struct {
	addr           string
	fetcher        Fetcher
	preparer       Preparer
	defaultTimeout time.Duration
	maxBodyBytes   int64
	server         *http.Server
	listener       net.Listener
	ctx            context.Context
	cancel         context.CancelFunc
	startTime      time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:3000"
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = fetch.DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = FetcherFunc(fetch.Fetch)
	}
	if cfg.Preparer == nil {
		cfg.Preparer = bronze.NewPreparer()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:           cfg.Addr,
		fetcher:        cfg.Fetcher,
		preparer:       cfg.Preparer,
		defaultTimeout: cfg.DefaultTimeout,
		maxBodyBytes:   cfg.MaxBodyBytes,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.POST("/api/prepare", s.handlePrepare)
	r.POST("/api/fetch", s.handleFetch)
	return r
}

// Listen binds the configured address. Call Serve to accept requests.
func (s *Server) Listen() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.defaultTimeout + 30*time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.addr = listener.Addr().String()
	return nil
}

// Serve accepts requests on the bound listener until Shutdown.
// It returns nil after a graceful shutdown and the listener error otherwise.
func (s *Server) Serve() error {
	if s.server == nil || s.listener == nil {
		return errors.New("httpserver: Serve called before Listen")
	}
	s.startTime = time.Now()
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpserver: serve %s: %w", s.addr, err)
	}
	return nil
}

// Addr returns the listen address; after Listen it reflects the bound port.
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handlePrepare(c *gin.Context) {
	source := strings.TrimSpace(c.Query("source"))
	if source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing source query parameter"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)
	var records []model.Record
	if err := c.ShouldBindJSON(&records); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON array of objects"})
		return
	}

	s.respondRows(c, records, source)
}

type fetchRequest struct {
	URL     string `json:"url" binding:"required"`
	Source  string `json:"source" binding:"required"`
	Timeout string `json:"timeout"`
}

func (s *Server) handleFetch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing url/source field"})
		return
	}

	timeout := s.defaultTimeout
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timeout must be a positive duration such as 5s"})
			return
		}
		// Responses must finish inside WriteTimeout, which is sized from defaultTimeout.
		if d > s.defaultTimeout {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("timeout must not exceed %v", s.defaultTimeout)})
			return
		}
		timeout = d
	}

	records, err := s.fetcher.Fetch(c.Request.Context(), req.URL, timeout)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			body := gin.H{"error": fetchErr.Error(), "cause": fetchErr.Cause.String()}
			if fetchErr.Cause == fetch.CauseStatus {
				body["upstream_status"] = fetchErr.StatusCode
			}
			c.JSON(http.StatusBadGateway, body)
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "cause": "decode"})
		return
	}

	s.respondRows(c, records, req.Source)
}

func (s *Server) respondRows(c *gin.Context, records []model.Record, source string) {
	rows, err := s.preparer.Prepare(records, source)
	if err != nil {
		var serErr *bronze.SerializationError
		if errors.As(err, &serErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "index": serErr.Index})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	batchID := ""
	if len(rows) > 0 {
		batchID = rows[0].BatchID
	}
	c.JSON(http.StatusOK, gin.H{
		"rows":      rows,
		"row_count": len(rows),
		"batch_id":  batchID,
	})
}
