package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	"github.com/Aar2284/University-Management-Sys/internal/service"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
	"github.com/Aar2284/University-Management-Sys/pkg/response"
)

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Upsert godoc
// @Summary Store or replace a mark
// @Description Teacher writes one student's mark for an assigned subject
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body models.GradeUpsertRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /grades [put]
func (h *GradeHandler) Upsert(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.GradeUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}

	grade, err := h.grades.Upsert(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// StudentGrades godoc
// @Summary Grades for a student
// @Description All marks with curved letter grades computed per subject cohort
// @Tags Grades
// @Produce json
// @Param id path string true "Student user ID"
// @Success 200 {object} response.Envelope
// @Router /grades/students/{id} [get]
func (h *GradeHandler) StudentGrades(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	studentID := c.Param("id")
	if claims.Role == models.RoleStudent && studentID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	grades, err := h.grades.StudentGrades(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// SubjectResults godoc
// @Summary Results for a subject
// @Description Roster marks with the curve applied against the subject cohort
// @Tags Grades
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /grades/subjects/{id} [get]
func (h *GradeHandler) SubjectResults(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rows, err := h.grades.SubjectResults(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
