// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"answerd/internal/metrics"
	"answerd/internal/pev"
	"answerd/internal/provider"
)

// Processor answers queries. Satisfied by *pev.Orchestrator.
type Processor interface {
	Process(ctx context.Context, query, sessionID string) (pev.Answer, error)
}

// Server is the HTTP front door.
type Server struct {
	echo   *echo.Echo
	proc   Processor
	log    *zap.Logger
	apiKey string
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey requires clients to present the key in the X-API-Key header.
// Empty disables the check.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// New builds the server and its routes.
func New(proc Processor, met *metrics.Metrics, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{proc: proc, log: log}
	for _, o := range opts {
		o(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.requestLogger)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if met != nil {
		e.GET("/metrics", echo.WrapHandler(met.Handler()))
	}

	q := e.Group("/v1")
	if s.apiKey != "" {
		q.Use(s.checkAPIKey)
	}
	q.POST("/query", s.handleQuery)

	s.echo = e
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler { return s.echo }

type queryRequest struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Content           string   `json:"content"`
	ProcessingTimeMS  int64    `json:"processing_time_ms"`
	SessionID         string   `json:"session_id"`
	QueryCategory     string   `json:"query_category"`
	VerificationScore *float64 `json:"verification_score,omitempty"`
	IterationsUsed    int      `json:"iterations_used"`
	Degraded          bool     `json:"degraded"`
}

type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Message          string `json:"message"`
	ErrorType        string `json:"error_type"`
	ErrorDetails     string `json:"error_details,omitempty"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
}

func (s *Server) handleQuery(c echo.Context) error {
	start := time.Now()

	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, start, http.StatusBadRequest, "invalid_request", "request body is not valid JSON", "client", err)
	}

	ans, err := s.proc.Process(c.Request().Context(), req.Content, req.SessionID)
	if err != nil {
		return s.queryError(c, start, err)
	}

	resp := queryResponse{
		Content:          ans.Content,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		SessionID:        ans.SessionID,
		QueryCategory:    string(ans.Category),
		IterationsUsed:   ans.Iterations,
		Degraded:         ans.Degraded,
	}
	if ans.Score != nil {
		overall := ans.Score.Overall
		resp.VerificationScore = &overall
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) queryError(c echo.Context, start time.Time, err error) error {
	switch {
	case errors.Is(err, pev.ErrEmptyQuery):
		return errJSON(c, start, http.StatusBadRequest, "empty_query", "query content is empty", "client", nil)
	case provider.IsAuth(err):
		return errJSON(c, start, http.StatusBadGateway, "provider_auth", "model backend rejected the service credentials", "upstream", err)
	case provider.KindOf(err) == provider.KindDeadline || provider.KindOf(err) == provider.KindTimeout:
		return errJSON(c, start, http.StatusGatewayTimeout, "deadline_exceeded", "query did not complete within its time budget", "timeout", err)
	default:
		s.log.Error("query failed", zap.Error(err), zap.String("request_id", requestID(c)))
		return errJSON(c, start, http.StatusInternalServerError, "internal", "query processing failed", "internal", err)
	}
}

func errJSON(c echo.Context, start time.Time, status int, code, msg, typ string, cause error) error {
	resp := errorResponse{
		ErrorCode:        code,
		Message:          msg,
		ErrorType:        typ,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
	if cause != nil {
		resp.ErrorDetails = cause.Error()
	}
	return c.JSON(status, resp)
}

func (s *Server) checkAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("X-API-Key") != s.apiKey {
			return errJSON(c, time.Now(), http.StatusUnauthorized, "unauthorized", "missing or invalid API key", "client", nil)
		}
		return next(c)
	}
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.log.Info("request",
			zap.String("request_id", requestID(c)),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)))
		return err
	}
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
