package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rbac-console/internal/service"
	"github.com/noah-isme/rbac-console/pkg/response"
)

// ReportHandler exposes directory reports.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Summary godoc
// @Summary Directory summary
// @Description Role and status counts with percentages
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ReportSummary
// @Failure 403 {object} response.ErrorEnvelope
// @Router /reports/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
