package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qirllo/school-api/internal/models"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

type fakeGradeService struct {
	lastFilter     models.GradeFilter
	lastTransition models.GradeTransitionRequest
	lastID         string
	transitionErr  error
}

func (f *fakeGradeService) Upsert(_ context.Context, _ *models.JWTClaims, req models.UpsertGradeRequest) (*models.Grade, error) {
	total := req.CAScore + req.ExamScore
	return &models.Grade{ID: "g1", StudentID: req.StudentID, TotalScore: total, Grade: models.LetterGrade(total), Status: models.GradeStatusDraft}, nil
}

func (f *fakeGradeService) BulkUpsert(_ context.Context, _ *models.JWTClaims, req models.BulkGradeRequest) (*models.BulkGradeResult, error) {
	return &models.BulkGradeResult{Grades: []models.Grade{}, Errors: []models.BulkEntryError{{Index: 0, StudentID: req.Grades[0].StudentID, Error: "Student not found"}}}, nil
}

func (f *fakeGradeService) List(_ context.Context, _ *models.JWTClaims, filter models.GradeFilter) ([]models.Grade, error) {
	f.lastFilter = filter
	return []models.Grade{}, nil
}

func (f *fakeGradeService) Submit(_ context.Context, _ *models.JWTClaims, id string) (*models.Grade, error) {
	f.lastID = id
	return &models.Grade{ID: id, Status: models.GradeStatusSubmitted}, f.transitionErr
}

func (f *fakeGradeService) Approve(_ context.Context, _ *models.JWTClaims, id string) (*models.Grade, error) {
	f.lastID = id
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	return &models.Grade{ID: id, Status: models.GradeStatusApproved}, nil
}

func (f *fakeGradeService) Reject(_ context.Context, _ *models.JWTClaims, id string) (*models.Grade, error) {
	f.lastID = id
	return &models.Grade{ID: id, Status: models.GradeStatusDraft}, nil
}

func (f *fakeGradeService) BulkSubmit(_ context.Context, _ *models.JWTClaims, req models.GradeTransitionRequest) (*models.TransitionResult, error) {
	f.lastTransition = req
	return &models.TransitionResult{Message: "Submitted 0 grades", Count: 0}, nil
}

func (f *fakeGradeService) BulkApprove(_ context.Context, _ *models.JWTClaims, req models.GradeTransitionRequest) (*models.TransitionResult, error) {
	f.lastTransition = req
	return &models.TransitionResult{Message: "Approved 3 grades", Count: 3}, nil
}

func (f *fakeGradeService) BulkReject(_ context.Context, _ *models.JWTClaims, req models.GradeTransitionRequest) (*models.TransitionResult, error) {
	f.lastTransition = req
	return &models.TransitionResult{Count: 1}, nil
}

func (f *fakeGradeService) ReportCard(_ context.Context, _ *models.JWTClaims, studentID, _, _ string) ([]byte, string, error) {
	return []byte("%PDF-1.3"), "report-card-" + studentID + ".pdf", nil
}

func TestGradeHandlerUpsertComputesLetter(t *testing.T) {
	h := NewGradeHandler(&fakeGradeService{})
	c, rec := newTestContext(http.MethodPost, "/grades", strings.NewReader(`{"student_id":"s1","subject_id":"sub1","ca_score":30,"exam_score":40,"term":"first"}`), teacherClaims)

	h.Upsert(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"grade":"A"`)
}

func TestGradeHandlerListMapsQuery(t *testing.T) {
	svc := &fakeGradeService{}
	h := NewGradeHandler(svc)
	c, rec := newTestContext(http.MethodGet, "/grades?student_id=s1&term=second&status=draft", nil, parentClaims)

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s1"}, svc.lastFilter.StudentIDs)
	assert.Equal(t, "second", svc.lastFilter.Term)
	assert.Equal(t, models.GradeStatusDraft, svc.lastFilter.Status)
}

func TestGradeHandlerBulkApproveAcceptsQuerySelection(t *testing.T) {
	svc := &fakeGradeService{}
	h := NewGradeHandler(svc)
	c, rec := newTestContext(http.MethodPut, "/grades/approve-bulk?subject_id=sub1&term=first", nil, adminClaims)

	h.BulkApprove(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sub1", svc.lastTransition.SubjectID)
	assert.Equal(t, "first", svc.lastTransition.Term)
	assert.Contains(t, rec.Body.String(), `"count":3`)
}

func TestGradeHandlerBulkSubmitAcceptsBody(t *testing.T) {
	svc := &fakeGradeService{}
	h := NewGradeHandler(svc)
	c, rec := newTestContext(http.MethodPut, "/grades/submit-bulk", strings.NewReader(`{"class_id":"c1","term":"third"}`), teacherClaims)

	h.BulkSubmit(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", svc.lastTransition.ClassID)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestGradeHandlerApproveInvalidTransition(t *testing.T) {
	svc := &fakeGradeService{transitionErr: appErrors.Clone(appErrors.ErrBadRequest, "Only submitted grades can be approved")}
	h := NewGradeHandler(svc)
	c, rec := newTestContext(http.MethodPut, "/grades/g9/approve", nil, adminClaims)
	c.Params = append(c.Params, ginParam("id", "g9"))

	h.Approve(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "g9", svc.lastID)
}

func TestGradeHandlerReportCardStreamsPDF(t *testing.T) {
	h := NewGradeHandler(&fakeGradeService{})
	c, rec := newTestContext(http.MethodGet, "/grades/report-card/s1", nil, parentClaims)
	c.Params = append(c.Params, ginParam("student_id", "s1"))

	h.ReportCard(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report-card-s1.pdf")
}
