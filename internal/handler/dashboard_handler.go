package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
	"github.com/Aar2284/University-Management-Sys/pkg/response"
)

type dashboardService interface {
	Student(ctx context.Context, userID string) (*models.StudentDashboard, bool, error)
	Teacher(ctx context.Context, userID string) (*models.TeacherDashboard, bool, error)
}

// DashboardHandler exposes aggregated dashboard endpoints.
type DashboardHandler struct {
	dashboards dashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboards dashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Student godoc
// @Summary Student dashboard
// @Description Profile, attendance summary, curved grades, average and assignments in one payload
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, cached, err := h.dashboards.Student(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil, map[string]interface{}{"cached": cached})
}

// Teacher godoc
// @Summary Teacher dashboard
// @Description Profile, active and historical subject assignments with per-subject averages
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/teacher [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.Role != models.RoleTeacher && claims.Role != models.RoleAdmin {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	dashboard, cached, err := h.dashboards.Teacher(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil, map[string]interface{}{"cached": cached})
}
