// Package api serves a read-mostly HTTP view of buffer residency.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/duplex/internal/backend"
	"github.com/samcharles93/duplex/internal/logger"
	"github.com/samcharles93/duplex/internal/workload"
)

// RunFunc executes a workload.
type RunFunc func(ctx context.Context, s workload.Spec, log logger.Logger) (*workload.Report, error)

type Server struct {
	catalog  *Catalog
	defaults workload.Spec
	run      RunFunc
	log      logger.Logger
}

// NewServer returns a Server over catalog. Workload requests start from
// defaults; fields they set override it.
func NewServer(catalog *Catalog, defaults workload.Spec, log logger.Logger) *Server {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		catalog:  catalog,
		defaults: defaults,
		run:      workload.Run,
		log:      log,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/buffers", s.handleListBuffers)
	e.GET("/v1/buffers/:name", s.handleGetBuffer)
	e.DELETE("/v1/buffers/:name", s.handleDeleteBuffer)
	e.GET("/v1/buffers/:name/streams", s.handleStreams)
	e.POST("/v1/workloads", s.handleCreateWorkload)
	e.GET("/v1/backends", s.handleBackends)
}

func (s *Server) handleListBuffers(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   s.catalog.List(),
	})
}

func (s *Server) handleGetBuffer(c *echo.Context) error {
	name := c.Param("name")
	r, ok := s.catalog.Get(name)
	if !ok {
		return writeNotFound(c, fmt.Sprintf("buffer %q not found", name))
	}
	return c.JSON(http.StatusOK, r)
}

func (s *Server) handleDeleteBuffer(c *echo.Context) error {
	name := c.Param("name")
	if !s.catalog.Delete(name) {
		return writeNotFound(c, fmt.Sprintf("buffer %q not found", name))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleStreams(c *echo.Context) error {
	ctxID := -1
	if q := c.QueryParam("context"); q != "" {
		id, err := strconv.Atoi(q)
		if err != nil || id < 0 {
			return writeBadRequest(c, "context must be a non-negative integer")
		}
		ctxID = id
	}
	streams, err := s.catalog.Streams(c.Param("name"), ctxID)
	if err != nil {
		return writeFailure(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   streams,
	})
}

// workloadRequest mirrors workload.Spec with optional fields.
type workloadRequest struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Backend     string   `json:"backend"`
	Dims        []int    `json:"dims"`
	ElementSize *int     `json:"element_size"`
	Hint        string   `json:"hint"`
	Contexts    *int     `json:"contexts"`
	Iterations  *int     `json:"iterations"`
	Rate        *float64 `json:"rate"`
}

func (s *Server) specFor(req workloadRequest) (workload.Spec, error) {
	spec := s.defaults
	spec.Dims = append([]int(nil), s.defaults.Dims...)
	if req.Name != "" {
		spec.Name = req.Name
	}
	if req.Kind != "" {
		spec.Kind = req.Kind
	}
	if req.Backend != "" {
		spec.Backend = req.Backend
	}
	if len(req.Dims) > 0 {
		spec.Dims = req.Dims
	}
	if req.ElementSize != nil {
		spec.ElementSize = *req.ElementSize
	}
	if req.Hint != "" {
		spec.Hint = req.Hint
	}
	if req.Contexts != nil {
		spec.Contexts = *req.Contexts
	}
	if req.Iterations != nil {
		spec.Iterations = *req.Iterations
	}
	if req.Rate != nil {
		spec.Rate = *req.Rate
	}
	if err := spec.Validate(); err != nil {
		return spec, newInvalidRequest(err.Error())
	}
	return spec, nil
}

func (s *Server) handleCreateWorkload(c *echo.Context) error {
	req, err := decodeJSON[workloadRequest](c.Request().Body)
	if err != nil && !errors.Is(err, io.EOF) {
		return writeBadRequest(c, err.Error())
	}
	spec, err := s.specFor(req)
	if err != nil {
		return writeFailure(c, err)
	}
	if spec.Name != "" {
		if err := s.catalog.Reserve(spec.Name); err != nil {
			return writeFailure(c, err)
		}
		defer s.catalog.Release(spec.Name)
	}

	report, err := s.run(c.Request().Context(), spec, s.log)
	if report == nil {
		return writeFailure(c, err)
	}
	s.catalog.Add(report)
	status := http.StatusCreated
	if err != nil {
		s.log.Warn("workload finished with errors", "id", report.ID, "error", err)
		status = http.StatusOK
	}
	return c.JSON(status, report)
}

func (s *Server) handleBackends(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"available": backend.Available(),
		"cuda":      backend.Has(backend.CUDA),
	})
}
