package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/qirllo/school-api/internal/models"
)

const (
	feeStructureColumns = `id, class_level, term, academic_year, tuition, books, uniform, other_fees, total, created_at, updated_at`
	feePaymentColumns   = `id, student_id, student_name, class_name, amount, payment_method, term, academic_year, receipt_number, notes, recorded_by, receipt_path, created_at`
)

// FeeRepository persists fee structures and the payment ledger.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs a FeeRepository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// UpsertStructure stores the structure for (level, term, academic year).
func (r *FeeRepository) UpsertStructure(ctx context.Context, structure *models.FeeStructure) error {
	if structure.ID == "" {
		structure.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	structure.CreatedAt = now
	structure.UpdatedAt = now

	query := `INSERT INTO fee_structures (id, class_level, term, academic_year, tuition, books, uniform, other_fees, total, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (class_level, term, academic_year) DO UPDATE SET
            tuition = EXCLUDED.tuition, books = EXCLUDED.books, uniform = EXCLUDED.uniform,
            other_fees = EXCLUDED.other_fees, total = EXCLUDED.total, updated_at = EXCLUDED.updated_at
        RETURNING ` + feeStructureColumns
	row := r.db.QueryRowxContext(ctx, query,
		structure.ID, structure.ClassLevel, structure.Term, structure.AcademicYear, structure.Tuition, structure.Books,
		structure.Uniform, structure.OtherFees, structure.Total, structure.CreatedAt, structure.UpdatedAt)
	if err := row.StructScan(structure); err != nil {
		return fmt.Errorf("upsert fee structure: %w", err)
	}
	return nil
}

// ListStructures returns fee structures matching the filter.
func (r *FeeRepository) ListStructures(ctx context.Context, filter models.FeeStructureFilter) ([]models.FeeStructure, error) {
	conds := structureConditions(filter)
	structures := make([]models.FeeStructure, 0)
	query := "SELECT " + feeStructureColumns + " FROM fee_structures" + conds.where() + " ORDER BY class_level ASC, term ASC"
	if err := r.db.SelectContext(ctx, &structures, query, conds.args...); err != nil {
		return nil, fmt.Errorf("list fee structures: %w", err)
	}
	return structures, nil
}

// FindStructure returns the most recently updated structure for a level and
// term, optionally narrowed to an academic year.
func (r *FeeRepository) FindStructure(ctx context.Context, filter models.FeeStructureFilter) (*models.FeeStructure, error) {
	conds := structureConditions(filter)
	var structure models.FeeStructure
	query := "SELECT " + feeStructureColumns + " FROM fee_structures" + conds.where() + " ORDER BY updated_at DESC LIMIT 1"
	if err := r.db.GetContext(ctx, &structure, query, conds.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find fee structure: %w", err)
	}
	return &structure, nil
}

// CreatePayment appends a payment to the ledger.
func (r *FeeRepository) CreatePayment(ctx context.Context, payment *models.FeePayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO fee_payments (id, student_id, student_name, class_name, amount, payment_method, term, academic_year, receipt_number, notes, recorded_by, receipt_path, created_at)
        VALUES (:id, :student_id, :student_name, :class_name, :amount, :payment_method, :term, :academic_year, :receipt_number, :notes, :recorded_by, :receipt_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindPayment returns a payment by id.
func (r *FeeRepository) FindPayment(ctx context.Context, id string) (*models.FeePayment, error) {
	var payment models.FeePayment
	if err := r.db.GetContext(ctx, &payment, "SELECT "+feePaymentColumns+" FROM fee_payments WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &payment, nil
}

// ListPayments returns payments matching the filter, newest first.
func (r *FeeRepository) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.FeePayment, error) {
	conds := paymentConditions(filter)
	payments := make([]models.FeePayment, 0)
	query := "SELECT " + feePaymentColumns + " FROM fee_payments" + conds.where() + " ORDER BY created_at DESC"
	if err := r.db.SelectContext(ctx, &payments, query, conds.args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// PaidByStudent sums payments per student for the filter.
func (r *FeeRepository) PaidByStudent(ctx context.Context, filter models.PaymentFilter) (map[string]float64, error) {
	conds := paymentConditions(filter)
	rows := []struct {
		StudentID string  `db:"student_id"`
		Paid      float64 `db:"paid"`
	}{}
	query := "SELECT student_id, COALESCE(SUM(amount), 0) AS paid FROM fee_payments" + conds.where() + " GROUP BY student_id"
	if err := r.db.SelectContext(ctx, &rows, query, conds.args...); err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	totals := make(map[string]float64, len(rows))
	for _, row := range rows {
		totals[row.StudentID] = row.Paid
	}
	return totals, nil
}

// SetReceiptPath records where the rendered receipt was stored.
func (r *FeeRepository) SetReceiptPath(ctx context.Context, id, path string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE fee_payments SET receipt_path = $1 WHERE id = $2`, path, id); err != nil {
		return fmt.Errorf("set receipt path: %w", err)
	}
	return nil
}

// ClearReceiptPaths forgets receipt files rendered before the cutoff.
func (r *FeeRepository) ClearReceiptPaths(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE fee_payments SET receipt_path = NULL WHERE receipt_path IS NOT NULL AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("clear receipt paths: %w", err)
	}
	return res.RowsAffected()
}

func structureConditions(filter models.FeeStructureFilter) conditions {
	var conds conditions
	if filter.ClassLevel != "" {
		conds.add("class_level = $%d", filter.ClassLevel)
	}
	if filter.Term != "" {
		conds.add("term = $%d", filter.Term)
	}
	if filter.AcademicYear != "" {
		conds.add("academic_year = $%d", filter.AcademicYear)
	}
	return conds
}

func paymentConditions(filter models.PaymentFilter) conditions {
	var conds conditions
	if filter.StudentIDs != nil {
		conds.add("student_id = ANY($%d)", pq.Array(filter.StudentIDs))
	}
	if filter.Term != "" {
		conds.add("term = $%d", filter.Term)
	}
	if filter.AcademicYear != "" {
		conds.add("academic_year = $%d", filter.AcademicYear)
	}
	return conds
}
