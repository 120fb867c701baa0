// Package api exposes the forensic engine over HTTP: demo analysis, CSV
// upload jobs, job polling, the downloadable report and a websocket stream
// of job updates.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/common"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/config"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/jobs"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/ledger"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/sampledata"
)

const (
	serviceName    = "RIFT 2026 Financial Forensic Engine"
	reportFilename = "rift_forensic_report.json"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Engine jobs.Analyzer
	Jobs   *jobs.Manager
	Cache  *jobs.Cache
	Hub    *Hub
	Server config.ServerConfig
}

type APIHandler struct {
	engine    jobs.Analyzer
	jobs      *jobs.Manager
	cache     *jobs.Cache
	hub       *Hub
	maxUpload int64
	logger    zerolog.Logger
}

func SetupRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(), gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("handler panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
	}))
	r.Use(cors(deps.Server.AllowedOrigins))

	maxUpload := deps.Server.MaxUploadMB << 20
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}
	r.MaxMultipartMemory = maxUpload

	handler := &APIHandler{
		engine:    deps.Engine,
		jobs:      deps.Jobs,
		cache:     deps.Cache,
		hub:       deps.Hub,
		maxUpload: maxUpload,
		logger:    log.With().Str("component", "api").Logger(),
	}

	r.GET("/health", handler.handleHealth)
	r.GET("/result/:job_id", handler.handleGetResult)
	r.GET("/report", handler.handleReport)
	if deps.Hub != nil {
		r.GET("/stream", deps.Hub.Subscribe)
	}

	analysis := r.Group("/")
	if deps.Server.RateLimitPerMin > 0 {
		analysis.Use(NewRateLimiter(deps.Server.RateLimitPerMin, deps.Server.RateLimitBurst).Middleware())
	}
	{
		analysis.GET("/demo", handler.handleDemo)
		analysis.POST("/upload", handler.handleUpload)
	}

	return r
}

// cors allows every origin when the list is empty or "*", otherwise only
// the listed ones. Credentials are allowed only for an echoed origin.
func cors(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	logger := log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		} else if status >= http.StatusBadRequest {
			ev = logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("took", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("request")
	}
}

// abortWithError writes the {"detail"} body for err with the status its
// class maps to.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrParse):
		status = http.StatusUnprocessableEntity
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": common.Detail(err)})
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
	})
}

// handleDemo analyzes the built-in fixture synchronously and makes it the
// latest analysis.
func (h *APIHandler) handleDemo(c *gin.Context) {
	set, err := ledger.Parse(sampledata.Generate())
	if err != nil {
		abortWithError(c, common.Internal("Analysis failed", err))
		return
	}

	result, err := h.engine.Analyze(context.WithoutCancel(c.Request.Context()), set)
	if err != nil {
		var de *common.DetailError
		if !errors.As(err, &de) {
			err = common.Internal("Analysis failed", err)
		}
		abortWithError(c, err)
		return
	}
	h.cache.Store(result)

	c.JSON(http.StatusOK, result)
}

// handleReport serves the latest analysis as a downloadable report.
func (h *APIHandler) handleReport(c *gin.Context) {
	report, err := h.cache.Report()
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+reportFilename+`"`)
	c.JSON(http.StatusOK, report)
}
