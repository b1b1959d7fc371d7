// Package server exposes health, metrics and the latest migration report over HTTP while a
// run is in progress.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ramsey-B/fern/pkg/checker"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/pipeline"
)

// ReportSource provides the stats of the latest run
type ReportSource interface {
	LastStats() *pipeline.Stats
}

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	echo   *echo.Echo
	port   int
	logger ectologger.Logger
	report ReportSource
	checks map[string]ReadinessCheck

	mu           sync.RWMutex
	verification *checker.Report
	verifyErr    error
}

func New(port int, logger ectologger.Logger, report ReportSource, checks map[string]ReadinessCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	s := &Server{
		echo:   e,
		port:   port,
		logger: logger,
		report: report,
		checks: checks,
	}

	e.GET("/health/live", s.live)
	e.GET("/health/ready", s.ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1/migration")
	api.GET("/report", s.migrationReport)

	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens in the background until Stop is called
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithContext(ctx).WithError(err).Error("Status server stopped")
		}
	}()

	s.logger.WithContext(ctx).WithField("addr", addr).Info("Status server listening")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// SetVerification publishes the outcome of a consistency check with the run report
func (s *Server) SetVerification(report *checker.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verification = report
	s.verifyErr = err
}

func (s *Server) live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ready(c echo.Context) error {
	ctx := c.Request().Context()
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("dependency", name).Warn("Dependency not ready")
			return httperror.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("%s is not ready", name)).
				AddMetaValue("dependency", name)
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

type reportResponse struct {
	Run          *pipeline.Stats     `json:"run"`
	Totals       pipeline.TableStats `json:"totals"`
	Verification *checker.Report     `json:"verification,omitempty"`
	Divergence   string              `json:"divergence,omitempty"`
}

func (s *Server) migrationReport(c echo.Context) error {
	if s.report == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "no migration has run yet")
	}

	stats := s.report.LastStats()
	if stats == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "no migration has run yet")
	}

	s.mu.RLock()
	resp := reportResponse{
		Run:          stats,
		Totals:       stats.Totals(),
		Verification: s.verification,
	}
	if s.verifyErr != nil {
		resp.Divergence = s.verifyErr.Error()
	}
	s.mu.RUnlock()

	return c.JSON(http.StatusOK, resp)
}
