package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/pkg/response"
)

type gradeService interface {
	Upsert(ctx context.Context, caller *models.JWTClaims, req models.UpsertGradeRequest) (*models.Grade, error)
	BulkUpsert(ctx context.Context, caller *models.JWTClaims, req models.BulkGradeRequest) (*models.BulkGradeResult, error)
	List(ctx context.Context, caller *models.JWTClaims, filter models.GradeFilter) ([]models.Grade, error)
	Submit(ctx context.Context, caller *models.JWTClaims, id string) (*models.Grade, error)
	Approve(ctx context.Context, caller *models.JWTClaims, id string) (*models.Grade, error)
	Reject(ctx context.Context, caller *models.JWTClaims, id string) (*models.Grade, error)
	BulkSubmit(ctx context.Context, caller *models.JWTClaims, req models.GradeTransitionRequest) (*models.TransitionResult, error)
	BulkApprove(ctx context.Context, caller *models.JWTClaims, req models.GradeTransitionRequest) (*models.TransitionResult, error)
	BulkReject(ctx context.Context, caller *models.JWTClaims, req models.GradeTransitionRequest) (*models.TransitionResult, error)
	ReportCard(ctx context.Context, caller *models.JWTClaims, studentID, term, year string) ([]byte, string, error)
}

// GradeHandler handles grade entry and the approval workflow.
type GradeHandler struct {
	service gradeService
}

// NewGradeHandler constructs a grade handler.
func NewGradeHandler(svc gradeService) *GradeHandler {
	return &GradeHandler{service: svc}
}

// Upsert godoc
// @Summary Enter grade
// @Description Creates or overwrites the grade for a student, subject and term. Overwriting resets the status to draft.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body models.UpsertGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /grades [post]
func (h *GradeHandler) Upsert(c *gin.Context) {
	var req models.UpsertGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid grade payload"))
		return
	}
	grade, err := h.service.Upsert(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// BulkUpsert godoc
// @Summary Enter grades in bulk
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body models.BulkGradeRequest true "Bulk grade payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/bulk [post]
func (h *GradeHandler) BulkUpsert(c *gin.Context) {
	var req models.BulkGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid bulk grade payload"))
		return
	}
	result, err := h.service.BulkUpsert(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List grades
// @Description Parents only ever see approved grades of their children
// @Tags Grades
// @Produce json
// @Param student_id query string false "Student ID"
// @Param subject_id query string false "Subject ID"
// @Param class_id query string false "Class ID"
// @Param term query string false "Term"
// @Param academic_year query string false "Academic year"
// @Param status query string false "draft, submitted or approved"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	filter := models.GradeFilter{
		StudentIDs:   queryList(c, "student_id"),
		SubjectID:    c.Query("subject_id"),
		ClassID:      c.Query("class_id"),
		Term:         c.Query("term"),
		AcademicYear: c.Query("academic_year"),
		Status:       models.GradeStatus(c.Query("status")),
	}
	grades, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Submit godoc
// @Summary Submit grade
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/{id}/submit [put]
func (h *GradeHandler) Submit(c *gin.Context) {
	h.transition(c, h.service.Submit)
}

// Approve godoc
// @Summary Approve grade
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/{id}/approve [put]
func (h *GradeHandler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

// Reject godoc
// @Summary Return grade to draft
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/{id}/reject [put]
func (h *GradeHandler) Reject(c *gin.Context) {
	h.transition(c, h.service.Reject)
}

func (h *GradeHandler) transition(c *gin.Context, fn func(context.Context, *models.JWTClaims, string) (*models.Grade, error)) {
	grade, err := fn(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// BulkSubmit godoc
// @Summary Submit matching draft grades
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body models.GradeTransitionRequest true "Selection"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/submit-bulk [put]
func (h *GradeHandler) BulkSubmit(c *gin.Context) {
	h.bulkTransition(c, h.service.BulkSubmit)
}

// BulkApprove godoc
// @Summary Approve matching submitted grades
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body models.GradeTransitionRequest true "Selection"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/approve-bulk [put]
func (h *GradeHandler) BulkApprove(c *gin.Context) {
	h.bulkTransition(c, h.service.BulkApprove)
}

// BulkReject godoc
// @Summary Return matching submitted grades to draft
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body models.GradeTransitionRequest true "Selection"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/reject-bulk [put]
func (h *GradeHandler) BulkReject(c *gin.Context) {
	h.bulkTransition(c, h.service.BulkReject)
}

// bulkTransition accepts the selection as a JSON body or as query parameters.
func (h *GradeHandler) bulkTransition(c *gin.Context, fn func(context.Context, *models.JWTClaims, models.GradeTransitionRequest) (*models.TransitionResult, error)) {
	req := models.GradeTransitionRequest{
		SubjectID:    c.Query("subject_id"),
		ClassID:      c.Query("class_id"),
		Term:         c.Query("term"),
		AcademicYear: c.Query("academic_year"),
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid selection payload"))
			return
		}
	}
	result, err := fn(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ReportCard godoc
// @Summary Download report card
// @Tags Grades
// @Produce application/pdf
// @Param student_id path string true "Student ID"
// @Param term query string false "Term"
// @Param academic_year query string false "Academic year"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /grades/report-card/{student_id} [get]
func (h *GradeHandler) ReportCard(c *gin.Context) {
	body, filename, err := h.service.ReportCard(c.Request.Context(), claimsFromContext(c), c.Param("student_id"), c.Query("term"), c.Query("academic_year"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", body)
}
