package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qirllo/school-api/internal/models"
	appErrors "github.com/qirllo/school-api/pkg/errors"
	"github.com/qirllo/school-api/pkg/export"
)

type recordingRenderer struct {
	doc export.Document
}

func (r *recordingRenderer) RenderDocument(doc export.Document) ([]byte, error) {
	r.doc = doc
	return []byte("%PDF-fake"), nil
}

func newGradeFixture(pdf documentRenderer) (*GradeService, *fakeGrades, *fakeAudit) {
	students, _ := schoolFixture()
	subjects := newFakeSubjects(
		&models.Subject{ID: "math", Name: "Mathematics", Code: "MTH", ClassID: "c1"},
		&models.Subject{ID: "eng", Name: "English", Code: "ENG", ClassID: "c1"},
	)
	grades := newFakeGrades()
	audit := &fakeAudit{}
	svc := NewGradeService(GradeServiceDeps{
		Repo:       grades,
		Students:   students,
		Subjects:   subjects,
		PDF:        pdf,
		Audit:      audit,
		Defaults:   SchoolDefaults{AcademicYear: "2025/2026", Term: models.TermFirst},
		SchoolName: "QIRLLO School",
	})
	return svc, grades, audit
}

func TestGradeServiceUpsertComputesTotalsAndLetters(t *testing.T) {
	svc, _, _ := newGradeFixture(nil)
	ctx := context.Background()

	cases := []struct {
		ca, exam float64
		letter   string
	}{
		{30, 40, "A"},
		{25, 35, "B"},
		{20, 30, "C"},
		{20, 25, "D"},
		{15, 25, "E"},
		{15, 24.9, "F"},
	}
	for _, tc := range cases {
		grade, err := svc.Upsert(ctx, teacherCaller("t1"), models.UpsertGradeRequest{
			StudentID: "s1", SubjectID: "math", CAScore: tc.ca, ExamScore: tc.exam, Term: models.TermFirst,
		})
		require.NoError(t, err)
		assert.InDelta(t, tc.ca+tc.exam, grade.TotalScore, 0.0001)
		assert.Equal(t, tc.letter, grade.Grade, "total %.1f", grade.TotalScore)
		assert.Equal(t, "2025/2026", grade.AcademicYear)
		assert.Equal(t, "Mathematics", *grade.SubjectName)
	}
}

func TestGradeServiceUpsertKeepsOneGradePerKey(t *testing.T) {
	svc, grades, _ := newGradeFixture(nil)
	ctx := context.Background()
	req := models.UpsertGradeRequest{StudentID: "s1", SubjectID: "math", CAScore: 30, ExamScore: 50, Term: models.TermFirst}

	first, err := svc.Upsert(ctx, teacherCaller("t1"), req)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, teacherCaller("t1"), first.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, adminCaller(), first.ID)
	require.NoError(t, err)

	req.ExamScore = 20
	second, err := svc.Upsert(ctx, teacherCaller("t1"), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, grades.grades, 1)
	stored := grades.grades[first.ID]
	assert.Equal(t, models.GradeStatusDraft, stored.Status)
	assert.Equal(t, "C", stored.Grade)
}

func TestGradeServiceUpsertValidation(t *testing.T) {
	svc, _, _ := newGradeFixture(nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, teacherCaller("t1"), models.UpsertGradeRequest{StudentID: "s1", SubjectID: "math", CAScore: 41, ExamScore: 10, Term: models.TermFirst})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Upsert(ctx, teacherCaller("t1"), models.UpsertGradeRequest{StudentID: "s1", SubjectID: "nope", CAScore: 10, ExamScore: 10, Term: models.TermFirst})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Upsert(ctx, parentCaller("p1"), models.UpsertGradeRequest{StudentID: "s1", SubjectID: "math", CAScore: 10, ExamScore: 10, Term: models.TermFirst})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestGradeServiceBulkUpsertReportsFailuresByIndex(t *testing.T) {
	svc, _, _ := newGradeFixture(nil)

	result, err := svc.BulkUpsert(context.Background(), teacherCaller("t1"), models.BulkGradeRequest{
		SubjectID: "math",
		Term:      models.TermSecond,
		Grades: []models.BulkGradeEntry{
			{StudentID: "s1", CAScore: 30, ExamScore: 40},
			{StudentID: "ghost", CAScore: 30, ExamScore: 40},
			{StudentID: "s2", CAScore: 50, ExamScore: 40},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Grades, 1)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, "Student not found", result.Errors[0].Error)
	assert.Equal(t, 2, result.Errors[1].Index)
	assert.Equal(t, "s2", result.Errors[1].StudentID)
}

func TestGradeServiceTransitions(t *testing.T) {
	svc, _, audit := newGradeFixture(nil)
	ctx := context.Background()

	grade, err := svc.Upsert(ctx, teacherCaller("t1"), models.UpsertGradeRequest{StudentID: "s1", SubjectID: "math", CAScore: 30, ExamScore: 50, Term: models.TermFirst})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, adminCaller(), grade.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.Submit(ctx, teacherCaller("t1"), grade.ID)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, teacherCaller("t1"), grade.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.Approve(ctx, teacherCaller("t1"), grade.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	rejected, err := svc.Reject(ctx, adminCaller(), grade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GradeStatusDraft, rejected.Status)

	_, err = svc.Submit(ctx, teacherCaller("t1"), grade.ID)
	require.NoError(t, err)
	approved, err := svc.Approve(ctx, adminCaller(), grade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GradeStatusApproved, approved.Status)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionApprove, audit.logs[0].Action)

	_, err = svc.Submit(ctx, teacherCaller("t1"), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestGradeServiceBulkTransitions(t *testing.T) {
	svc, _, _ := newGradeFixture(nil)
	ctx := context.Background()
	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := svc.Upsert(ctx, teacherCaller("t1"), models.UpsertGradeRequest{StudentID: id, SubjectID: "math", CAScore: 20, ExamScore: 30, Term: models.TermFirst})
		require.NoError(t, err)
	}

	_, err := svc.BulkSubmit(ctx, teacherCaller("t1"), models.GradeTransitionRequest{SubjectID: "math"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	result, err := svc.BulkSubmit(ctx, teacherCaller("t1"), models.GradeTransitionRequest{SubjectID: "math", Term: models.TermFirst})
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Count)
	assert.Equal(t, "3 grades submitted", result.Message)

	result, err = svc.BulkApprove(ctx, adminCaller(), models.GradeTransitionRequest{SubjectID: "math"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Count)

	result, err = svc.BulkReject(ctx, adminCaller(), models.GradeTransitionRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.Count)
	assert.Equal(t, "0 grades rejected", result.Message)
}

func TestGradeServiceParentSeesOnlyApprovedGradesOfChildren(t *testing.T) {
	svc, _, _ := newGradeFixture(nil)
	ctx := context.Background()
	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := svc.Upsert(ctx, teacherCaller("t1"), models.UpsertGradeRequest{StudentID: id, SubjectID: "math", CAScore: 20, ExamScore: 30, Term: models.TermFirst})
		require.NoError(t, err)
	}
	_, err := svc.Upsert(ctx, teacherCaller("t1"), models.UpsertGradeRequest{StudentID: "s3", SubjectID: "eng", CAScore: 20, ExamScore: 30, Term: models.TermFirst})
	require.NoError(t, err)
	_, err = svc.BulkSubmit(ctx, teacherCaller("t1"), models.GradeTransitionRequest{SubjectID: "math", Term: models.TermFirst})
	require.NoError(t, err)
	_, err = svc.BulkApprove(ctx, adminCaller(), models.GradeTransitionRequest{SubjectID: "math"})
	require.NoError(t, err)

	grades, err := svc.List(ctx, parentCaller("p1"), models.GradeFilter{Status: models.GradeStatusDraft, StudentIDs: []string{"s2", "s3"}})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, "s3", grades[0].StudentID)
	assert.Equal(t, models.GradeStatusApproved, grades[0].Status)

	grades, err = svc.List(ctx, parentCaller("nobody"), models.GradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, grades)

	grades, err = svc.List(ctx, teacherCaller("t1"), models.GradeFilter{Status: models.GradeStatusDraft})
	require.NoError(t, err)
	assert.Len(t, grades, 1)
}

func TestGradeServiceReportCardUsesApprovedGrades(t *testing.T) {
	renderer := &recordingRenderer{}
	svc, _, _ := newGradeFixture(renderer)
	ctx := context.Background()
	for _, subject := range []string{"math", "eng"} {
		_, err := svc.Upsert(ctx, teacherCaller("t1"), models.UpsertGradeRequest{StudentID: "s1", SubjectID: subject, CAScore: 35, ExamScore: 40, Term: models.TermFirst})
		require.NoError(t, err)
	}
	_, err := svc.BulkSubmit(ctx, teacherCaller("t1"), models.GradeTransitionRequest{SubjectID: "math", Term: models.TermFirst})
	require.NoError(t, err)
	_, err = svc.BulkApprove(ctx, adminCaller(), models.GradeTransitionRequest{SubjectID: "math"})
	require.NoError(t, err)

	data, filename, err := svc.ReportCard(ctx, parentCaller("p1"), "s1", "", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-fake"), data)
	assert.Equal(t, "report-card-QRL-2025-0001-first.pdf", filename)
	assert.Equal(t, "QIRLLO School", renderer.doc.Heading)
	require.NotNil(t, renderer.doc.Table)
	assert.Len(t, renderer.doc.Table.Rows, 1)
	assert.Contains(t, renderer.doc.Footnote, "Average score: 75 (A)")

	_, _, err = svc.ReportCard(ctx, parentCaller("p2"), "s1", "", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestGradeServiceReportCardRendersPDF(t *testing.T) {
	svc, _, _ := newGradeFixture(nil)

	data, _, err := svc.ReportCard(context.Background(), adminCaller(), "s2", models.TermSecond, "2025/2026")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRestrictTo(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, restrictTo(nil, []string{"a", "b"}))
	assert.Equal(t, []string{"b"}, restrictTo([]string{"b", "c"}, []string{"a", "b"}))
	assert.NotNil(t, restrictTo(nil, nil))
}
