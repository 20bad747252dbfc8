// Package http provides the HTTP API for shelfd.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/filestore"
	"github.com/fyrsmithlabs/shelfd/internal/formats"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
	"github.com/fyrsmithlabs/shelfd/internal/store"
)

// defaultTake is the search result count when the client sends none.
const defaultTake = 10

// Server provides the HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	service *store.Service
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates the HTTP server.
func NewServer(service *store.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "0.0.0.0", Port: 8080}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	s.echo.POST("/files", s.handleAddFile)
	s.echo.GET("/files", s.handleSearch)
	s.echo.DELETE("/files/:doc_id", s.handleDeleteFile)
	s.echo.GET("/files/extensions", s.handleExtensions)

	s.echo.GET("/documents/content", s.handleDocumentsContent)
	s.echo.GET("/documents/pdf", s.handleDocumentPDF)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// SearchResponse is the response body for GET /files.
type SearchResponse struct {
	Sources []store.SourceDto `json:"sources"`
}

// ExtensionsResponse is the response body for GET /files/extensions.
type ExtensionsResponse struct {
	Extensions []string `json:"extensions"`
}

// ContentResponse is the response body for GET /documents/content.
type ContentResponse struct {
	Content []string `json:"content"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleAddFile ingests the request body as one document. Identity and
// typing arrive in headers so the body stays a raw byte stream.
func (s *Server) handleAddFile(c echo.Context) error {
	fileName := c.Request().Header.Get("fileName")
	if fileName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "fileName header is required")
	}
	bucket := c.Request().Header.Get("bucket")
	docID := c.Request().Header.Get("id")
	mimeType := c.Request().Header.Get("fileMimeType")
	indexName := c.Request().Header.Get("indexName")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	err = sourcefile.WithTemp(body, fileExt(fileName), mimeType, fileName, func(f sourcefile.SourceFile) error {
		if docID != "" {
			f.ID = docID
		}
		return s.service.AddFile(c.Request().Context(), f, bucket, indexName)
	})
	if err != nil {
		return s.mapError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter is required")
	}

	take := defaultTake
	if raw := c.QueryParam("take"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "take must be a positive integer")
		}
		take = parsed
	}

	var docIDs []string
	if raw := c.QueryParams()["doc_id"]; len(raw) > 0 {
		docIDs = raw
	}

	results, err := s.service.Search(
		c.Request().Context(),
		query,
		c.QueryParam("bucket"),
		take,
		docIDs,
		c.QueryParam("indexName"),
	)
	if err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, SearchResponse{
		Sources: s.service.Sources(c.Request().Context(), results),
	})
}

func (s *Server) handleDeleteFile(c echo.Context) error {
	docID := c.Param("doc_id")
	if err := s.service.DeleteFile(c.Request().Context(), docID, c.QueryParam("indexName")); err != nil {
		return s.mapError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleExtensions(c echo.Context) error {
	return c.JSON(http.StatusOK, ExtensionsResponse{Extensions: s.service.Extensions()})
}

func (s *Server) handleDocumentsContent(c echo.Context) error {
	ids := c.QueryParams()["id"]
	if len(ids) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "id parameter is required")
	}

	content, err := s.service.GetDocumentsContent(c.Request().Context(), ids, c.QueryParam("indexName"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, ContentResponse{Content: content})
}

func (s *Server) handleDocumentPDF(c echo.Context) error {
	docID := c.QueryParam("doc_id")
	if docID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doc_id parameter is required")
	}

	file, err := s.service.GetDocumentPDF(c.Request().Context(), docID)
	if err != nil {
		return s.mapError(c, err)
	}
	defer func() {
		if err := file.Delete(); err != nil {
			s.logger.Warn("failed to delete pdf temp file", zap.String("doc_id", docID), zap.Error(err))
		}
	}()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, file.FileName))
	return c.File(file.Path)
}

// mapError translates service failures into HTTP status codes.
func (s *Server) mapError(c echo.Context, err error) error {
	var pe *formats.ProcessingError
	var ce *formats.ConversionError

	switch {
	case errors.Is(err, formats.ErrUnsupportedFormat):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "File format not supported.")
	case errors.As(err, &pe):
		s.logger.Warn("processing failed", zap.Error(err))
		status := pe.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		return echo.NewHTTPError(status, "Processing failed")
	case errors.As(err, &ce):
		s.logger.Warn("conversion failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Conversion failed")
	case errors.Is(err, filestore.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Document not found")
	case errors.Is(err, store.ErrFileStoreDisabled):
		return echo.NewHTTPError(http.StatusNotFound, "Document downloads are not enabled")
	case errors.Is(err, context.Canceled):
		return echo.NewHTTPError(499, "Request canceled")
	default:
		s.logger.Error("internal error", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal error")
	}
}

func fileExt(fileName string) string {
	for i := len(fileName) - 1; i >= 0; i-- {
		if fileName[i] == '.' {
			return fileName[i+1:]
		}
		if fileName[i] == '/' || fileName[i] == '\\' {
			break
		}
	}
	return ""
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
