package models

import "time"

// PaymentMethod values.
const (
	PaymentCash     = "cash"
	PaymentTransfer = "transfer"
	PaymentCard     = "card"
	PaymentPOS      = "pos"
)

// FeeStructure holds the fee components for a class level in one term.
type FeeStructure struct {
	ID           string    `db:"id" json:"id"`
	ClassLevel   string    `db:"class_level" json:"class_level"`
	Term         string    `db:"term" json:"term"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	Tuition      float64   `db:"tuition" json:"tuition"`
	Books        float64   `db:"books" json:"books"`
	Uniform      float64   `db:"uniform" json:"uniform"`
	OtherFees    float64   `db:"other_fees" json:"other_fees"`
	Total        float64   `db:"total" json:"total"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FeeStructureRequest sets the fee structure for a level and term.
type FeeStructureRequest struct {
	ClassLevel   string  `json:"class_level" validate:"required,oneof=JSS1 JSS2 JSS3 SS1 SS2 SS3"`
	Term         string  `json:"term" validate:"required,oneof=first second third"`
	AcademicYear string  `json:"academic_year"`
	Tuition      float64 `json:"tuition" validate:"gte=0"`
	Books        float64 `json:"books" validate:"gte=0"`
	Uniform      float64 `json:"uniform" validate:"gte=0"`
	OtherFees    float64 `json:"other_fees" validate:"gte=0"`
}

// FeeStructureFilter narrows structure listings.
type FeeStructureFilter struct {
	ClassLevel   string
	Term         string
	AcademicYear string
}

// FeePayment is an append-only ledger entry.
type FeePayment struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	StudentName   *string   `db:"student_name" json:"student_name,omitempty"`
	ClassName     *string   `db:"class_name" json:"class_name,omitempty"`
	Amount        float64   `db:"amount" json:"amount"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	Term          string    `db:"term" json:"term"`
	AcademicYear  string    `db:"academic_year" json:"academic_year"`
	ReceiptNumber string    `db:"receipt_number" json:"receipt_number"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	RecordedBy    *string   `db:"recorded_by" json:"recorded_by,omitempty"`
	ReceiptPath   *string   `db:"receipt_path" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// RecordPaymentRequest records a fee payment.
type RecordPaymentRequest struct {
	StudentID     string  `json:"student_id" validate:"required"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=cash transfer card pos"`
	Term          string  `json:"term" validate:"required,oneof=first second third"`
	AcademicYear  string  `json:"academic_year"`
	ReceiptNumber *string `json:"receipt_number"`
	Notes         *string `json:"notes"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	StudentIDs   []string
	Term         string
	AcademicYear string
}

// FeeBalance is the outstanding amount for one student in one term.
type FeeBalance struct {
	StudentID   string       `json:"student_id"`
	StudentName string       `json:"student_name"`
	ClassName   string       `json:"class_name"`
	Term        string       `json:"term"`
	TotalFees   float64      `json:"total_fees"`
	TotalPaid   float64      `json:"total_paid"`
	Balance     float64      `json:"balance"`
	Payments    []FeePayment `json:"payments"`
}

// Balance statuses used in the all-balances report.
const (
	BalancePaid    = "paid"
	BalancePartial = "partial"
	BalanceUnpaid  = "unpaid"
)

// BalanceRow is one student line in the all-balances report.
type BalanceRow struct {
	StudentID       string  `json:"student_id"`
	StudentName     string  `json:"student_name"`
	AdmissionNumber string  `json:"admission_number"`
	ClassName       string  `json:"class_name"`
	TotalFees       float64 `json:"total_fees"`
	TotalPaid       float64 `json:"total_paid"`
	Balance         float64 `json:"balance"`
	Status          string  `json:"status"`
}

// ReceiptLink is a time-limited download link for a rendered receipt.
type ReceiptLink struct {
	PaymentID     string    `json:"payment_id"`
	ReceiptNumber string    `json:"receipt_number"`
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expires_at"`
}
