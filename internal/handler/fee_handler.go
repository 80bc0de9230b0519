package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qirllo/school-api/internal/models"
	appErrors "github.com/qirllo/school-api/pkg/errors"
	"github.com/qirllo/school-api/pkg/response"
)

type feeService interface {
	SetStructure(ctx context.Context, caller *models.JWTClaims, req models.FeeStructureRequest) (*models.FeeStructure, error)
	ListStructures(ctx context.Context, filter models.FeeStructureFilter) ([]models.FeeStructure, error)
	RecordPayment(ctx context.Context, caller *models.JWTClaims, req models.RecordPaymentRequest) (*models.FeePayment, error)
	ListPayments(ctx context.Context, caller *models.JWTClaims, filter models.PaymentFilter) ([]models.FeePayment, error)
	Balance(ctx context.Context, caller *models.JWTClaims, studentID, term, year string) (*models.FeeBalance, error)
	AllBalances(ctx context.Context, caller *models.JWTClaims, classID, term, year string) ([]models.BalanceRow, error)
	ExportBalances(ctx context.Context, caller *models.JWTClaims, classID, term, year, format string) ([]byte, string, string, error)
	ReceiptLink(ctx context.Context, caller *models.JWTClaims, paymentID string) (*models.ReceiptLink, error)
	DownloadReceipt(ctx context.Context, token string) ([]byte, string, error)
}

// FeeHandler exposes fee structure, payment and balance endpoints.
type FeeHandler struct {
	service feeService
}

// NewFeeHandler constructs a fee handler.
func NewFeeHandler(svc feeService) *FeeHandler {
	return &FeeHandler{service: svc}
}

// SetStructure godoc
// @Summary Set fee structure
// @Description Creates or replaces the structure for a class level, term and academic year
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body models.FeeStructureRequest true "Fee structure"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/structure [post]
func (h *FeeHandler) SetStructure(c *gin.Context) {
	var req models.FeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid fee structure payload"))
		return
	}
	structure, err := h.service.SetStructure(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}

// ListStructures godoc
// @Summary List fee structures
// @Tags Fees
// @Produce json
// @Param class_level query string false "Class level"
// @Param term query string false "Term"
// @Param academic_year query string false "Academic year"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/structure [get]
func (h *FeeHandler) ListStructures(c *gin.Context) {
	filter := models.FeeStructureFilter{
		ClassLevel:   c.Query("class_level"),
		Term:         c.Query("term"),
		AcademicYear: c.Query("academic_year"),
	}
	items, err := h.service.ListStructures(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// RecordPayment godoc
// @Summary Record payment
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body models.RecordPaymentRequest true "Payment"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/payment [post]
func (h *FeeHandler) RecordPayment(c *gin.Context) {
	var req models.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payment payload"))
		return
	}
	payment, err := h.service.RecordPayment(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// ListPayments godoc
// @Summary List payments
// @Tags Fees
// @Produce json
// @Param student_id query string false "Student ID"
// @Param term query string false "Term"
// @Param academic_year query string false "Academic year"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/payments [get]
func (h *FeeHandler) ListPayments(c *gin.Context) {
	filter := models.PaymentFilter{
		StudentIDs:   queryList(c, "student_id"),
		Term:         c.Query("term"),
		AcademicYear: c.Query("academic_year"),
	}
	payments, err := h.service.ListPayments(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Balance godoc
// @Summary Student balance
// @Tags Fees
// @Produce json
// @Param student_id path string true "Student ID"
// @Param term query string false "Term"
// @Param academic_year query string false "Academic year"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/balance/{student_id} [get]
func (h *FeeHandler) Balance(c *gin.Context) {
	balance, err := h.service.Balance(c.Request.Context(), claimsFromContext(c), c.Param("student_id"), c.Query("term"), c.Query("academic_year"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// AllBalances godoc
// @Summary All balances
// @Tags Fees
// @Produce json
// @Param class_id query string false "Class ID"
// @Param term query string false "Term"
// @Param academic_year query string false "Academic year"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/balances [get]
func (h *FeeHandler) AllBalances(c *gin.Context) {
	rows, err := h.service.AllBalances(c.Request.Context(), claimsFromContext(c), c.Query("class_id"), c.Query("term"), c.Query("academic_year"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// ExportBalances godoc
// @Summary Export balances
// @Tags Fees
// @Produce text/csv
// @Param class_id query string false "Class ID"
// @Param term query string false "Term"
// @Param academic_year query string false "Academic year"
// @Param format query string false "csv or xlsx"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /fees/balances/export [get]
func (h *FeeHandler) ExportBalances(c *gin.Context) {
	body, contentType, filename, err := h.service.ExportBalances(c.Request.Context(), claimsFromContext(c),
		c.Query("class_id"), c.Query("term"), c.Query("academic_year"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, contentType, body)
}

// ReceiptLink godoc
// @Summary Receipt download link
// @Description Returns a signed, time-limited URL for the payment receipt PDF
// @Tags Fees
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/payments/{id}/receipt [get]
func (h *FeeHandler) ReceiptLink(c *gin.Context) {
	link, err := h.service.ReceiptLink(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadReceipt godoc
// @Summary Download receipt
// @Tags Fees
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /fees/receipts/download [get]
func (h *FeeHandler) DownloadReceipt(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "token is required"))
		return
	}
	body, filename, err := h.service.DownloadReceipt(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", body)
}
