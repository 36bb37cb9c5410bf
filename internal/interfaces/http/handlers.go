package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anungis437/nzila-automation-sub005/internal/application/service"
	"github.com/anungis437/nzila-automation-sub005/internal/application/workflow"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/evidence"
	"github.com/anungis437/nzila-automation-sub005/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine   workflow.Engine
	exporter *service.ChainExporter
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine workflow.Engine, exporter *service.ChainExporter, logger *zap.Logger) *Handlers {
	return &Handlers{
		engine:   engine,
		exporter: exporter,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CreateInstanceRequest is the body of POST /api/tenants/:tenant/instances
type CreateInstanceRequest struct {
	InstanceID        string         `json:"instance_id" binding:"required"`
	DefinitionName    string         `json:"definition_name" binding:"required"`
	DefinitionVersion int            `json:"definition_version" binding:"required"`
	ActorID           string         `json:"actor_id" binding:"required"`
	Context           map[string]any `json:"context"`
}

// AttemptRequest is the body of POST /api/tenants/:tenant/instances/:id/attempts
type AttemptRequest struct {
	Action          string              `json:"action" binding:"required"`
	ActorID         string              `json:"actor_id" binding:"required"`
	ContextPatch    map[string]any      `json:"context_patch"`
	Evidence        []evidence.Artifact `json:"evidence"`
	ExpectedVersion int64               `json:"expected_version" binding:"required"`
}

// VerifyEvidenceRequest is the body of POST /api/evidence/:pack_id/verify
type VerifyEvidenceRequest struct {
	Artifacts []evidence.Artifact `json:"artifacts" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"status": "healthy"},
	})
}

// CreateInstance handles POST /api/tenants/:tenant/instances
func (h *Handlers) CreateInstance(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if err := utils.ValidateIdentifier(c.Param("tenant")); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	if err := utils.ValidateIdentifier(req.InstanceID); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	instance, err := h.engine.CreateInstance(c.Request.Context(),
		c.Param("tenant"), req.InstanceID, req.DefinitionName, req.DefinitionVersion, req.ActorID, req.Context)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrInstanceExists):
			c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
		case errors.Is(err, workflow.ErrDefinitionNotFound):
			c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
		default:
			h.logger.Error("Failed to create instance", zap.Error(err))
			c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: instance})
}

// GetInstance handles GET /api/tenants/:tenant/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	instance, err := h.engine.GetInstance(c.Request.Context(), c.Param("tenant"), c.Param("id"))
	if err != nil {
		if errors.Is(err, workflow.ErrInstanceNotFound) {
			c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
			return
		}
		h.logger.Error("Failed to get instance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// outcomeStatus maps attempt outcomes to HTTP status codes. Rejections are
// client-visible conditions, not server errors.
func outcomeStatus(outcome workflow.Outcome) int {
	switch outcome {
	case workflow.OutcomeCommitted:
		return http.StatusOK
	case workflow.OutcomeConflict:
		return http.StatusConflict
	case workflow.OutcomeGovernanceBlocked:
		return http.StatusForbidden
	case workflow.OutcomeWorkflowTerminated:
		return http.StatusGone
	default: // illegal action, evidence missing
		return http.StatusUnprocessableEntity
	}
}

// AttemptTransition handles POST /api/tenants/:tenant/instances/:id/attempts
func (h *Handlers) AttemptTransition(c *gin.Context) {
	var req AttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.engine.Attempt(c.Request.Context(), workflow.AttemptRequest{
		TenantID:        c.Param("tenant"),
		InstanceID:      c.Param("id"),
		Action:          req.Action,
		ActorID:         req.ActorID,
		ContextPatch:    req.ContextPatch,
		Evidence:        req.Evidence,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		if errors.Is(err, workflow.ErrInstanceNotFound) {
			c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
			return
		}
		h.logger.Error("Attempt failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(outcomeStatus(result.Outcome), Response{
		Success: result.Outcome == workflow.OutcomeCommitted,
		Data:    result,
	})
}

// seqRange reads the from/to query parameters with open-ended defaults.
func seqRange(c *gin.Context) (int64, int64, error) {
	fromSeq, err := strconv.ParseInt(c.DefaultQuery("from", "1"), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	toSeq, err := strconv.ParseInt(c.DefaultQuery("to", strconv.FormatInt(int64(1)<<62, 10)), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return fromSeq, toSeq, nil
}

// VerifyChain handles GET /api/tenants/:tenant/audit/verify
func (h *Handlers) VerifyChain(c *gin.Context) {
	fromSeq, toSeq, err := seqRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid sequence range"})
		return
	}

	valid, err := h.engine.VerifyChain(c.Request.Context(), c.Param("tenant"), fromSeq, toSeq)
	if err != nil {
		h.logger.Error("Chain verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"valid": valid, "from_seq": fromSeq, "to_seq": toSeq},
	})
}

// ExportChain handles GET /api/tenants/:tenant/audit/export. The format
// query selects JSON (default) or an XLSX workbook.
func (h *Handlers) ExportChain(c *gin.Context) {
	fromSeq, toSeq, err := seqRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid sequence range"})
		return
	}
	tenantID := c.Param("tenant")

	if c.DefaultQuery("format", "json") == "xlsx" {
		var buf bytes.Buffer
		if err := h.exporter.ExportXLSX(c.Request.Context(), tenantID, fromSeq, toSeq, &buf); err != nil {
			h.logger.Error("Chain export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "export failed"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="audit-chain-`+tenantID+`.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
		return
	}

	entries, err := h.engine.ExportChain(c.Request.Context(), tenantID, fromSeq, toSeq)
	if err != nil {
		h.logger.Error("Chain export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// VerifyEvidencePack handles POST /api/evidence/:pack_id/verify
func (h *Handlers) VerifyEvidencePack(c *gin.Context) {
	var req VerifyEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	valid, err := h.engine.VerifyEvidencePack(c.Request.Context(), c.Param("pack_id"), req.Artifacts)
	if err != nil {
		h.logger.Error("Evidence verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"valid": valid},
	})
}
