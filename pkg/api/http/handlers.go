package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scopeflow/scopeflow/internal/pipeline"
)

// SavePipelineRequest represents a pipeline save request
type SavePipelineRequest struct {
	Name     string          `json:"name" binding:"required"`
	Pipeline json.RawMessage `json:"pipeline" binding:"required"`
}

// RunSubmitResponse represents a run submission response
type RunSubmitResponse struct {
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"active_runs": s.manager.ActiveCount(),
	})
}

// handleSavePipeline handles pipeline storage. The document is parsed
// before saving so a malformed pipeline is rejected at write time.
func (s *Server) handleSavePipeline(c *gin.Context) {
	var req SavePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	var p pipeline.Pipeline
	if err := json.Unmarshal(req.Pipeline, &p); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_PIPELINE",
				Message: err.Error(),
			},
		})
		return
	}

	if err := s.pipelines.Save(c.Request.Context(), req.Name, req.Pipeline); err != nil {
		s.logger.Error("failed to save pipeline",
			zap.String("name", req.Name),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to save pipeline",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"name":   req.Name,
		"nodes":  p.NodeCount(),
		"status": "saved",
	})
}

// handleListPipelines handles listing stored pipelines
func (s *Server) handleListPipelines(c *gin.Context) {
	names, err := s.pipelines.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list pipelines", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to list pipelines",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pipelines": names,
		"total":     len(names),
	})
}

// handleGetPipeline handles getting a stored pipeline document
func (s *Server) handleGetPipeline(c *gin.Context) {
	name := c.Param("name")

	doc, err := s.pipelines.Load(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Pipeline not found",
			},
		})
		return
	}

	c.Data(http.StatusOK, "application/json", doc)
}

// handleDeletePipeline handles deleting a stored pipeline
func (s *Server) handleDeletePipeline(c *gin.Context) {
	name := c.Param("name")

	if err := s.pipelines.Delete(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Pipeline not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":   name,
		"status": "deleted",
	})
}

// handleValidatePipeline handles validating a stored pipeline. The full
// problem list is returned so the editor can show every issue at once.
func (s *Server) handleValidatePipeline(c *gin.Context) {
	p, ok := s.loadPipeline(c)
	if !ok {
		return
	}

	problems := p.Validate()
	c.JSON(http.StatusOK, gin.H{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
}

// handleRunPipeline handles submitting a stored pipeline for execution
func (s *Server) handleRunPipeline(c *gin.Context) {
	name := c.Param("name")

	p, ok := s.loadPipeline(c)
	if !ok {
		return
	}

	runID, err := s.manager.Submit(c.Request.Context(), name, p)
	if err != nil {
		s.logger.Error("failed to submit run",
			zap.String("pipeline", name),
			zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SUBMISSION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, RunSubmitResponse{
		RunID:       runID,
		Status:      "submitted",
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetRun handles getting run status
func (s *Server) handleGetRun(c *gin.Context) {
	runID := c.Param("id")

	record, err := s.manager.Status(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleCancelRun handles run cancellation
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.manager.Cancel(c.Request.Context(), runID); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CANCELLATION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"status": "cancellation_requested",
	})
}

// loadPipeline loads and parses the pipeline named in the request path,
// writing the error response itself when that fails.
func (s *Server) loadPipeline(c *gin.Context) (*pipeline.Pipeline, bool) {
	name := c.Param("name")

	doc, err := s.pipelines.Load(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Pipeline not found",
			},
		})
		return nil, false
	}

	var p pipeline.Pipeline
	if err := json.Unmarshal(doc, &p); err != nil {
		s.logger.Error("stored pipeline is corrupt",
			zap.String("name", name),
			zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_PIPELINE",
				Message: err.Error(),
			},
		})
		return nil, false
	}

	return &p, true
}
