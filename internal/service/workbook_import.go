package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/policy"
	appErrors "github.com/qirllo/school-api/pkg/errors"
	"github.com/qirllo/school-api/pkg/export"
)

// Workbook sheet names.
const (
	SheetClasses = "Classes"
	SheetFees    = "Fees"
)

// ImportWorkbook creates classes from the "Classes" sheet and saves fee
// structures from the "Fees" sheet. Classes whose name already exists are
// skipped; fee rows upsert on (level, term, academic year).
func (s *ImportService) ImportWorkbook(ctx context.Context, caller *models.JWTClaims, filename string, src io.Reader) (*models.WorkbookImportResult, error) {
	if err := s.authz.Authorize(caller, policy.ActionImport); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "File must be an XLSX workbook")
	}
	book, err := export.ReadWorkbook(src)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, appErrors.ErrBadRequest.Status, "unable to read XLSX file")
	}
	classes, hasClasses := book[SheetClasses]
	fees, hasFees := book[SheetFees]
	if !hasClasses && !hasFees {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Workbook must contain a Classes or Fees sheet")
	}

	result := &models.WorkbookImportResult{Errors: make([]string, 0)}
	classFailures := 0
	for i, row := range classes.Rows {
		if blankRow(row) {
			continue
		}
		created, err := s.importClassRow(ctx, caller, row)
		if err != nil {
			classFailures++
			result.Errors = append(result.Errors, fmt.Sprintf("%s row %d: %s", SheetClasses, i+2, err.Error()))
			continue
		}
		if created {
			result.ClassesCreated++
		}
	}
	feeFailures := 0
	for i, row := range fees.Rows {
		if blankRow(row) {
			continue
		}
		if err := s.importFeeRow(ctx, caller, row); err != nil {
			feeFailures++
			result.Errors = append(result.Errors, fmt.Sprintf("%s row %d: %s", SheetFees, i+2, err.Error()))
			continue
		}
		result.FeesSaved++
	}
	result.Message = fmt.Sprintf("Created %d classes and saved %d fee structures", result.ClassesCreated, result.FeesSaved)

	s.metrics.RecordImport("classes", result.ClassesCreated, classFailures)
	s.metrics.RecordImport("fees", result.FeesSaved, feeFailures)
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:   &caller.UserID,
		Action:   models.AuditActionImport,
		Resource: "classes",
		Payload:  importPayload(filename, &models.ImportResult{Created: result.ClassesCreated + result.FeesSaved, Errors: result.Errors}),
	})
	s.logger.Info("workbook import finished", zap.Int("classes", result.ClassesCreated), zap.Int("fees", result.FeesSaved), zap.Int("failed", len(result.Errors)))
	return result, nil
}

func (s *ImportService) importClassRow(ctx context.Context, caller *models.JWTClaims, row map[string]string) (bool, error) {
	name := row["name"]
	level := strings.ToUpper(row["level"])
	if name == "" || level == "" {
		return false, errors.New("Missing required fields (name or level)")
	}
	if !validLevel(level) {
		return false, fmt.Errorf("Invalid class level %s", level)
	}
	if _, err := s.classes.FindByName(ctx, name); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	_, err := s.classSetup.Create(ctx, caller, models.CreateClassRequest{
		Name:         name,
		Level:        level,
		Section:      row["section"],
		AcademicYear: s.defaults.year(row["academic_year"]),
	})
	if err != nil {
		return false, errors.New(appErrors.FromError(err).Message)
	}
	return true, nil
}

func (s *ImportService) importFeeRow(ctx context.Context, caller *models.JWTClaims, row map[string]string) error {
	level := strings.ToUpper(row["class_level"])
	if level == "" {
		return errors.New("Missing required field class_level")
	}
	if !validLevel(level) {
		return fmt.Errorf("Invalid class level %s", level)
	}
	req := models.FeeStructureRequest{
		ClassLevel:   level,
		Term:         normalizeTerm(row["term"]),
		AcademicYear: row["academic_year"],
	}
	amounts := []struct {
		column string
		dest   *float64
	}{
		{"tuition", &req.Tuition},
		{"books", &req.Books},
		{"uniform", &req.Uniform},
		{"other_fees", &req.OtherFees},
	}
	for _, a := range amounts {
		raw := strings.ReplaceAll(row[a.column], ",", "")
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return fmt.Errorf("Invalid %s %s", a.column, row[a.column])
		}
		*a.dest = v
	}
	if _, err := s.structures.SetStructure(ctx, caller, req); err != nil {
		return errors.New(appErrors.FromError(err).Message)
	}
	return nil
}

// WorkbookTemplate returns a sample class and fee workbook.
func (s *ImportService) WorkbookTemplate() ([]byte, error) {
	classes := export.Dataset{Headers: []string{"name", "level", "section", "academic_year"}}
	classes.Append(map[string]string{"name": "JSS1 A", "level": "JSS1", "section": "A", "academic_year": s.defaults.year("")})
	classes.Append(map[string]string{"name": "JSS1 B", "level": "JSS1", "section": "B", "academic_year": s.defaults.year("")})

	fees := export.Dataset{Headers: []string{"class_level", "term", "academic_year", "tuition", "books", "uniform", "other_fees"}}
	fees.Append(map[string]string{"class_level": "JSS1", "term": models.TermFirst, "academic_year": s.defaults.year(""), "tuition": "40000", "books": "5000", "uniform": "3000", "other_fees": "2000"})
	fees.Append(map[string]string{"class_level": "SS1", "term": models.TermFirst, "academic_year": s.defaults.year(""), "tuition": "50000", "books": "6000", "uniform": "3000", "other_fees": "1000"})

	out, err := s.xlsx.RenderWorkbook(export.Sheet{Name: SheetClasses, Data: classes}, export.Sheet{Name: SheetFees, Data: fees})
	if err != nil {
		return nil, internalError(err, "failed to build workbook template")
	}
	return out, nil
}

func validLevel(level string) bool {
	for _, l := range models.ClassLevels {
		if string(l) == level {
			return true
		}
	}
	return false
}

func blankRow(row map[string]string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
