package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/workorders-tracker/internal/pipeline"
)

type processResponse struct {
	Success       bool            `json:"success"`
	Analysis      json.RawMessage `json:"analysis"`
	TasksCreated  int             `json:"tasksCreated"`
	Provider      string          `json:"provider"`
	PromptVersion string          `json:"promptVersion"`
	Warnings      []string        `json:"warnings,omitempty"`
}

type alreadyProcessedResponse struct {
	Message  string          `json:"message"`
	Analysis json.RawMessage `json:"analysis"`
}

// Processor is the extraction entry point the handler depends on.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// processWorkOrder handles POST /api/process-work-order.
func (s *Server) processWorkOrder(c *gin.Context) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request body must be JSON with a workOrderId")
		return
	}

	res, err := s.processor.Process(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	if res.AlreadyProcessed {
		c.JSON(http.StatusOK, alreadyProcessedResponse{Message: "already processed", Analysis: rawOrNull(res.Analysis)})
		return
	}
	c.JSON(http.StatusOK, processResponse{
		Success:       true,
		Analysis:      rawOrNull(res.Analysis),
		TasksCreated:  res.TasksCreated,
		Provider:      res.Provider,
		PromptVersion: res.PromptVersion,
		Warnings:      res.Warnings,
	})
}

func rawOrNull(b json.RawMessage) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return b
}
