package handlers

import (
	"net/http"
	"strings"

	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/models"
	"crosplit/internal/services/experiment"

	"github.com/gin-gonic/gin"
)

// ExperimentHandler serves experiment listing, the scheduled sweeps and
// winner approval.
type ExperimentHandler struct {
	store       *database.Database
	coordinator *experiment.Coordinator
	logger      *logger.Logger
}

func NewExperimentHandler(store *database.Database, coordinator *experiment.Coordinator, logger *logger.Logger) *ExperimentHandler {
	return &ExperimentHandler{store: store, coordinator: coordinator, logger: logger}
}

// List returns experiments, optionally filtered by ?status=active,paused.
func (h *ExperimentHandler) List(c *gin.Context) {
	var statuses []models.ExperimentStatus
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, models.ExperimentStatus(s))
		}
	}

	experiments, err := h.store.ListExperiments(c.Request.Context(), statuses...)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": experiments})
}

// Significance runs the significance sweep. Called by the scheduler.
func (h *ExperimentHandler) Significance(c *gin.Context) {
	settings, err := h.store.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	result, err := h.coordinator.EvaluateSignificance(c.Request.Context(), settings)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result.Experiments})
}

// Reconcile runs the status reconciliation sweep. Called by the scheduler.
func (h *ExperimentHandler) Reconcile(c *gin.Context) {
	settings, err := h.store.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	results, err := h.coordinator.Reconcile(c.Request.Context(), settings)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": results})
}

// Convert re-runs the winner conversion for an experience that was ended but not converted.
func (h *ExperimentHandler) Convert(c *gin.Context) {
	settings, err := h.store.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	exp, err := h.coordinator.ConvertVariant(c.Request.Context(), settings, c.Param("experienceId"), c.Param("variantId"))
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": exp})
}

type approvalParams struct {
	GoalID       string `form:"goalId"`
	VariantID    string `form:"variantId"`
	ExperienceID string `form:"experienceId"`
	Error        string
	Approved     bool
}

func (p approvalParams) complete() bool {
	return p.GoalID != "" && p.VariantID != "" && p.ExperienceID != ""
}

// ApprovalForm renders the confirmation page the approval email links to.
func (h *ExperimentHandler) ApprovalForm(c *gin.Context) {
	var params approvalParams
	_ = c.ShouldBindQuery(&params)
	if !params.complete() {
		params.Error = "Missing goalId, variantId or experienceId"
		c.HTML(http.StatusBadRequest, approvalTemplateName, params)
		return
	}
	c.HTML(http.StatusOK, approvalTemplateName, params)
}

// Approve ends the experience and promotes the chosen variant.
func (h *ExperimentHandler) Approve(c *gin.Context) {
	var params approvalParams
	_ = c.ShouldBind(&params)
	if !params.complete() {
		params.Error = "Invalid form data"
		c.HTML(http.StatusBadRequest, approvalTemplateName, params)
		return
	}

	settings, err := h.store.GetSettings(c.Request.Context())
	if err == nil {
		_, err = h.coordinator.ApproveWinner(c.Request.Context(), settings, params.GoalID, params.VariantID, params.ExperienceID)
	}
	if err != nil {
		h.logger.Error("Approval of variant %s for experience %s failed: %v", params.VariantID, params.ExperienceID, err)
		params.Error = err.Error()
		c.HTML(statusFor(err), approvalTemplateName, params)
		return
	}

	params.Approved = true
	c.HTML(http.StatusOK, approvalTemplateName, params)
}
