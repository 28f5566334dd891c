package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	"github.com/Aar2284/University-Management-Sys/internal/service"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
	"github.com/Aar2284/University-Management-Sys/pkg/response"
)

// AssignmentHandler exposes assignment and submission endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
	subjects    *service.SubjectService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService, subjects *service.SubjectService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, subjects: subjects}
}

// Create godoc
// @Summary Publish an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body models.AssignmentCreateRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.AssignmentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	assignment, err := h.assignments.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// List godoc
// @Summary List assignments
// @Description Students get their assignments with submission state; teachers list by subject
// @Tags Assignments
// @Produce json
// @Param subjectId query string false "Filter by subject (required for teachers)"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	subjectID := c.Query("subjectId")

	if claims.Role == models.RoleTeacher {
		if subjectID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subjectId required"))
			return
		}
		assignments, err := h.assignments.ListBySubject(c.Request.Context(), claims.UserID, subjectID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, assignments, nil)
		return
	}

	subjectIDs, err := h.resolveSubjectIDs(c, subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	assignments, err := h.assignments.ListForStudent(c.Request.Context(), claims.UserID, subjectIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Submit godoc
// @Summary Submit assignment work
// @Description Student uploads a PDF for an assignment; resubmission replaces the file
// @Tags Assignments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Assignment ID"
// @Param file formData file true "PDF file"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /assignments/{id}/submissions [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read upload"))
		return
	}
	defer file.Close()

	submission, err := h.assignments.Submit(c.Request.Context(), claims.UserID, c.Param("id"), header.Filename, header.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Submissions godoc
// @Summary List submissions for an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *AssignmentHandler) Submissions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	submissions, err := h.assignments.Submissions(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// DownloadSubmission godoc
// @Summary Download a submitted PDF
// @Tags Assignments
// @Produce application/pdf
// @Param id path string true "Assignment ID"
// @Param studentId path string true "Student user ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /assignments/{id}/submissions/{studentId} [get]
func (h *AssignmentHandler) DownloadSubmission(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	file, err := h.assignments.OpenSubmission(c.Request.Context(), claims, c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to stat submission"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="submission.pdf"`)
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, nil)
}

func (h *AssignmentHandler) resolveSubjectIDs(c *gin.Context, subjectID string) ([]string, error) {
	if subjectID != "" {
		return []string{subjectID}, nil
	}
	subjects, _, err := h.subjects.List(c.Request.Context(), models.SubjectFilter{PageSize: 100})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(subjects))
	for i, subject := range subjects {
		ids[i] = subject.ID
	}
	return ids, nil
}
