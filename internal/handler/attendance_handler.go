package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	"github.com/Aar2284/University-Management-Sys/internal/service"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
	"github.com/Aar2284/University-Management-Sys/pkg/response"
)

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// RecordSheet godoc
// @Summary Record an attendance sheet
// @Description Teacher records attendance for a subject on a given day
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.AttendanceSheetRequest true "Attendance sheet"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance/sheet [post]
func (h *AttendanceHandler) RecordSheet(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.AttendanceSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance sheet payload"))
		return
	}

	recorded, err := h.attendance.RecordSheet(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"recorded": recorded})
}

// CheckIn godoc
// @Summary Student self check-in
// @Description Marks the calling student present for today's class
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.CheckInRequest true "Check-in payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}

	record, err := h.attendance.CheckIn(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param subjectId query string false "Filter by subject"
// @Param status query string false "Filter by status (P or A)"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.AttendanceFilter
	filter.StudentID = c.Query("studentId")
	filter.SubjectID = c.Query("subjectId")
	if status := c.Query("status"); status != "" {
		s := models.AttendanceStatus(status)
		filter.Status = &s
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.DateTo = &t
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortOrder = c.Query("order")

	// students only ever see their own records
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	records, total, err := h.attendance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Summary godoc
// @Summary Attendance summary for a student
// @Description Attended/total counts with the truncated percentage
// @Tags Attendance
// @Produce json
// @Param id path string true "Student user ID"
// @Param subjectId query string false "Limit to one subject"
// @Success 200 {object} response.Envelope
// @Router /attendance/summary/{id} [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
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

	summary, err := h.attendance.Summary(c.Request.Context(), studentID, c.Query("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
