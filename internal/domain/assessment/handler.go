package assessment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cardia/cardia/internal/domain/risk"
	"github.com/cardia/cardia/internal/platform/auth"
	"github.com/cardia/cardia/pkg/pagination"
)

// Handler provides HTTP handlers for the assessment domain.
type Handler struct {
	svc *Service
}

// NewHandler creates a new assessment domain handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers all assessment domain routes. Previews do not
// persist anything, so they sit with the read routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "clinician", "analyst"))
	read.GET("/assessments", h.ListAssessments)
	read.GET("/assessments/:id", h.GetAssessment)
	read.POST("/assessments/preview", h.PreviewAssessment)
	read.POST("/assessments/preview/batch", h.PreviewBatch)
	read.GET("/patients/:patientId/assessments", h.ListPatientAssessments)
	read.GET("/patients/:patientId/assessments/stats", h.GetPatientStats)
	read.GET("/model/info", h.GetModelInfo)

	write := api.Group("", auth.RequireRole("admin", "clinician"))
	write.POST("/assessments", h.CreateAssessment)
	write.PATCH("/assessments/:id", h.UpdateAssessment)
	write.DELETE("/assessments/:id", h.DeleteAssessment)
}

func (h *Handler) CreateAssessment(c echo.Context) error {
	var a Assessment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if uid := auth.UserIDFromContext(ctx); uid != "" {
		a.CreatedBy = &uid
	}
	if err := h.svc.CreateAssessment(ctx, &a); err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) PreviewAssessment(c echo.Context) error {
	var rec risk.PatientRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, h.svc.PreviewAssessment(rec))
}

type previewBatchRequest struct {
	Records []risk.PatientRecord `json:"records"`
}

func (h *Handler) PreviewBatch(c echo.Context) error {
	var req previewBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	previews, err := h.svc.PreviewBatch(req.Records)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   len(previews),
		"results": previews,
	})
}

func (h *Handler) GetAssessment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAssessment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "assessment not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAssessments(c echo.Context) error {
	pg := pagination.FromContext(c)
	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err := h.svc.ListAssessmentsByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	items, total, err := h.svc.ListAssessments(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPatientAssessments(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAssessmentsByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatientStats(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	stats, err := h.svc.PatientStatistics(c.Request().Context(), pid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

type updateAssessmentRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func (h *Handler) UpdateAssessment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if _, err := h.svc.GetAssessment(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "assessment not found")
	}
	var req updateAssessmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateAssessment(c.Request().Context(), id, req.Status, req.Notes)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAssessment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteAssessment(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "assessment not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// ModelInfo describes the deployed derivation engine.
type ModelInfo struct {
	EngineVersion    string          `json:"engine_version"`
	RecognizedFields int             `json:"recognized_fields"`
	RiskBands        []risk.RiskBand `json:"risk_bands"`
	BatchLimit       int             `json:"batch_limit"`
}

func (h *Handler) GetModelInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, ModelInfo{
		EngineVersion:    risk.EngineVersion,
		RecognizedFields: risk.TotalRecognizedFields,
		RiskBands:        risk.RiskBands(),
		BatchLimit:       MaxBatchSize,
	})
}
