package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qirllo/school-api/internal/models"
)

var feeStructureRowColumns = []string{"id", "class_level", "term", "academic_year", "tuition", "books", "uniform", "other_fees", "total", "created_at", "updated_at"}

func TestFeeUpsertStructure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (class_level, term, academic_year) DO UPDATE SET")).
		WillReturnRows(sqlmock.NewRows(feeStructureRowColumns).
			AddRow("fs1", "JSS1", "first", "2025/2026", 40000.0, 5000.0, 3000.0, 2000.0, 50000.0, now, now))

	structure := &models.FeeStructure{ClassLevel: "JSS1", Term: "first", AcademicYear: "2025/2026", Tuition: 40000, Books: 5000, Uniform: 3000, OtherFees: 2000, Total: 50000}
	require.NoError(t, repo.UpsertStructure(context.Background(), structure))
	assert.Equal(t, "fs1", structure.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeFindStructureMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM fee_structures WHERE class_level = $1 AND term = $2 ORDER BY updated_at DESC LIMIT 1")).
		WithArgs("SS3", "third").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindStructure(context.Background(), models.FeeStructureFilter{ClassLevel: "SS3", Term: "third"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeePaidByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, COALESCE(SUM(amount), 0) AS paid FROM fee_payments WHERE student_id = ANY($1) AND term = $2 GROUP BY student_id")).
		WithArgs(sqlmock.AnyArg(), "first").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "paid"}).AddRow("s1", 30000.0))

	totals, err := repo.PaidByStudent(context.Background(), models.PaymentFilter{StudentIDs: []string{"s1", "s2"}, Term: "first"})
	require.NoError(t, err)
	assert.Equal(t, 30000.0, totals["s1"])
	assert.Zero(t, totals["s2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeCreatePaymentAndReceiptPath(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectExec("INSERT INTO fee_payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE fee_payments SET receipt_path = $1 WHERE id = $2")).
		WithArgs("receipts/p1.pdf", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.FeePayment{StudentID: "s1", Amount: 20000, PaymentMethod: models.PaymentCash, Term: "first", AcademicYear: "2025/2026", ReceiptNumber: "RCP-1"}
	require.NoError(t, repo.CreatePayment(context.Background(), payment))
	assert.NotEmpty(t, payment.ID)
	require.NoError(t, repo.SetReceiptPath(context.Background(), payment.ID, "receipts/p1.pdf"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
