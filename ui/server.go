package ui

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leibatt/latency-visual-search/app"
	"github.com/leibatt/latency-visual-search/domain/core"
	"github.com/leibatt/latency-visual-search/internal"
	"github.com/leibatt/latency-visual-search/internal/config"
	"github.com/leibatt/latency-visual-search/internal/errors"
	"github.com/leibatt/latency-visual-search/internal/report"
	"github.com/leibatt/latency-visual-search/ports"
)

// Server serves the rendered report files and a JSON view of the
// analysis results.
type Server struct {
	router    *gin.Engine
	cfg       *config.Config
	log       *internal.Logger
	artifacts *app.Artifacts
	runs      ports.RunRepository // nil disables run endpoints
}

// NewServer creates the report viewer. artifacts is the run being
// served; runs may be nil when no database is configured.
func NewServer(cfg *config.Config, log *internal.Logger, artifacts *app.Artifacts, runs ports.RunRepository) *Server {
	gin.SetMode(cfg.Server.GinMode)

	s := &Server{
		router:    gin.New(),
		cfg:       cfg,
		log:       log,
		artifacts: artifacts,
		runs:      runs,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/healthz", s.handleHealth)

	for _, name := range []string{report.MarkdownFile, report.WorkbookFile, report.CurveImageFile, report.ResultsFile} {
		s.router.StaticFile("/"+name, filepath.Join(s.cfg.Report.OutputDir, name))
	}

	s.router.GET("/api/results", s.handleResults)
	if s.runs != nil {
		s.router.GET("/api/runs", s.handleRunList)
		s.router.GET("/api/runs/:id", s.handleRunGet)
	}
}

// Start runs the HTTP server on addr.
func (s *Server) Start(addr string) error {
	s.log.Info("report viewer listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.File(filepath.Join(s.cfg.Report.OutputDir, report.HTMLFile))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "run": s.artifacts.RunID})
}

func (s *Server) handleResults(c *gin.Context) {
	c.JSON(http.StatusOK, s.artifacts)
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	summaries, err := s.runs.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.log.Error("run listing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": summaries})
}

func (s *Server) handleRunGet(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := s.runs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.GetCode(err) == errors.CodeNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		s.log.Error("run lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run lookup failed"})
		return
	}
	c.JSON(http.StatusOK, record)
}
