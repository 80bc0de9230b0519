package service

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qirllo/school-api/internal/models"
	appErrors "github.com/qirllo/school-api/pkg/errors"
	"github.com/qirllo/school-api/pkg/jobs"
	"github.com/qirllo/school-api/pkg/storage"
)

type feeFixture struct {
	svc    *FeeService
	repo   *fakeFees
	queue  *fakeQueue
	audit  *fakeAudit
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
}

func newFeeFixture(t *testing.T) *feeFixture {
	t.Helper()
	students, classes := schoolFixture()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	f := &feeFixture{
		repo:   newFakeFees(),
		queue:  &fakeQueue{},
		audit:  &fakeAudit{},
		store:  store,
		signer: storage.NewSignedURLSigner("secret", time.Hour),
	}
	f.svc = NewFeeService(FeeServiceDeps{
		Repo:        f.repo,
		Students:    students,
		Classes:     classes,
		Storage:     store,
		Signer:      f.signer,
		Queue:       f.queue,
		Audit:       f.audit,
		Defaults:    SchoolDefaults{AcademicYear: "2025/2026", Term: models.TermFirst, FeeTotal: 50000},
		SchoolName:  "QIRLLO School",
		DownloadURL: "http://api.test/api/v1/fees/receipts/download",
	})
	return f
}

func (f *feeFixture) pay(t *testing.T, studentID string, amount float64, term string) *models.FeePayment {
	t.Helper()
	payment, err := f.svc.RecordPayment(context.Background(), adminCaller(), models.RecordPaymentRequest{
		StudentID: studentID, Amount: amount, PaymentMethod: models.PaymentCash, Term: term,
	})
	require.NoError(t, err)
	return payment
}

func TestFeeServiceBalanceUsesDefaultFeeWithoutStructure(t *testing.T) {
	f := newFeeFixture(t)
	f.pay(t, "s1", 20000, models.TermFirst)
	f.pay(t, "s1", 10000, models.TermFirst)
	f.pay(t, "s1", 5000, models.TermSecond)

	balance, err := f.svc.Balance(context.Background(), parentCaller("p1"), "s1", models.TermFirst, "")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, balance.TotalFees)
	assert.Equal(t, 30000.0, balance.TotalPaid)
	assert.Equal(t, 20000.0, balance.Balance)
	assert.Len(t, balance.Payments, 2)
}

func TestFeeServiceBalanceUsesStructureForLevel(t *testing.T) {
	f := newFeeFixture(t)
	ctx := context.Background()
	structure, err := f.svc.SetStructure(ctx, adminCaller(), models.FeeStructureRequest{
		ClassLevel: "SS2", Term: models.TermFirst, Tuition: 30000, Books: 5000, Uniform: 3000, OtherFees: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, 40000.0, structure.Total)
	assert.Equal(t, "2025/2026", structure.AcademicYear)

	f.pay(t, "s3", 45000, models.TermFirst)
	balance, err := f.svc.Balance(ctx, adminCaller(), "s3", "", "")
	require.NoError(t, err)
	assert.Equal(t, 40000.0, balance.TotalFees)
	assert.Equal(t, -5000.0, balance.Balance)

	_, err = f.svc.Balance(ctx, parentCaller("p2"), "s3", "", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestFeeServiceRecordPayment(t *testing.T) {
	f := newFeeFixture(t)
	at := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return at }

	payment := f.pay(t, "s1", 15000, models.TermFirst)
	assert.True(t, strings.HasPrefix(payment.ReceiptNumber, "RCP-20250304-"))
	assert.Len(t, payment.ReceiptNumber, len("RCP-20250304-")+8)
	assert.Equal(t, "JSS1 A", *payment.ClassName)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, JobTypeRenderReceipt, f.queue.jobs[0].Type)
	require.Len(t, f.audit.logs, 1)

	_, err := f.svc.RecordPayment(context.Background(), adminCaller(), models.RecordPaymentRequest{StudentID: "s1", Amount: 0, PaymentMethod: "cash", Term: "first"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, err = f.svc.RecordPayment(context.Background(), teacherCaller("t1"), models.RecordPaymentRequest{StudentID: "s1", Amount: 10, PaymentMethod: "cash", Term: "first"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestReceiptNumber(t *testing.T) {
	at := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "RCP-20251201-ABCDEF12", ReceiptNumber("abcdef12-3456-7890", at))
}

func TestFeeServiceListPaymentsScopesParents(t *testing.T) {
	f := newFeeFixture(t)
	f.pay(t, "s1", 100, models.TermFirst)
	f.pay(t, "s2", 200, models.TermFirst)
	f.pay(t, "s3", 300, models.TermFirst)

	payments, err := f.svc.ListPayments(context.Background(), parentCaller("p1"), models.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.Equal(t, "s3", payments[0].StudentID)
}

func TestFeeServiceAllBalances(t *testing.T) {
	f := newFeeFixture(t)
	f.pay(t, "s1", 50000, models.TermFirst)
	f.pay(t, "s2", 1000, models.TermFirst)

	rows, err := f.svc.AllBalances(context.Background(), adminCaller(), "c1", "", "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	statuses := map[string]string{}
	for _, row := range rows {
		statuses[row.StudentID] = row.Status
	}
	assert.Equal(t, models.BalancePaid, statuses["s1"])
	assert.Equal(t, models.BalancePartial, statuses["s2"])

	assert.Equal(t, models.BalanceUnpaid, BalanceStatus(100, 0))
}

func TestFeeServiceExportBalances(t *testing.T) {
	f := newFeeFixture(t)
	f.pay(t, "s1", 1000, models.TermFirst)
	ctx := context.Background()

	data, contentType, name, err := f.svc.ExportBalances(ctx, adminCaller(), "", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "fee-balances-first.csv", name)
	assert.Contains(t, string(data), "QRL/2025/0001")

	data, _, name, err = f.svc.ExportBalances(ctx, adminCaller(), "", "", "", "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "fee-balances-first.xlsx", name)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))

	data, contentType, _, err = f.svc.ExportBalances(ctx, adminCaller(), "", "", "", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, _, _, err = f.svc.ExportBalances(ctx, adminCaller(), "", "", "", "doc")
	assert.True(t, appErrors.Is(err, appErrors.ErrBadRequest))
}

func TestFeeServiceReceiptJobAndSignedDownload(t *testing.T) {
	f := newFeeFixture(t)
	ctx := context.Background()
	payment := f.pay(t, "s1", 2500, models.TermFirst)

	require.NoError(t, f.svc.HandleReceiptJob(ctx, f.queue.jobs[0]))
	stored, err := f.repo.FindPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReceiptPath)

	link, err := f.svc.ReceiptLink(ctx, parentCaller("p1"), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ReceiptNumber, link.ReceiptNumber)
	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	require.NotEmpty(t, token)

	data, filename, err := f.svc.DownloadReceipt(ctx, token)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, "receipt-"+payment.ID+".pdf", filename)

	_, _, err = f.svc.DownloadReceipt(ctx, token+"x")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.ReceiptLink(ctx, parentCaller("p2"), payment.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestFeeServiceReceiptLinkRendersMissingReceipt(t *testing.T) {
	f := newFeeFixture(t)
	payment := f.pay(t, "s2", 100, models.TermFirst)

	link, err := f.svc.ReceiptLink(context.Background(), adminCaller(), payment.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "http://api.test/api/v1/fees/receipts/download?token="))
	stored, _ := f.repo.FindPayment(context.Background(), payment.ID)
	assert.NotNil(t, stored.ReceiptPath)
}

func TestFeeServiceHandleReceiptJobIgnoresBadPayload(t *testing.T) {
	f := newFeeFixture(t)
	assert.NoError(t, f.svc.HandleReceiptJob(context.Background(), jobs.Job{Type: JobTypeRenderReceipt, Payload: "nope"}))
	assert.NoError(t, f.svc.HandleReceiptJob(context.Background(), jobs.Job{Type: JobTypeRenderReceipt, Payload: ReceiptJobPayload{PaymentID: "missing"}}))
}

func TestFeeServiceCleanupReceipts(t *testing.T) {
	f := newFeeFixture(t)
	now := time.Now()
	f.svc.now = func() time.Time { return now }

	require.NoError(t, f.svc.CleanupReceipts(context.Background()))
	assert.Equal(t, now.Add(-90*24*time.Hour), f.repo.cleared)
}
