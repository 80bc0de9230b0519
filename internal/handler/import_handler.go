package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/service"
	appErrors "github.com/qirllo/school-api/pkg/errors"
	"github.com/qirllo/school-api/pkg/response"
)

type importService interface {
	Import(ctx context.Context, caller *models.JWTClaims, kind, filename string, src io.Reader) (*models.ImportResult, error)
	Template(kind string) (*models.CSVTemplate, error)
	ImportWorkbook(ctx context.Context, caller *models.JWTClaims, filename string, src io.Reader) (*models.WorkbookImportResult, error)
	WorkbookTemplate() ([]byte, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ImportHandler accepts CSV and XLSX uploads and serves their templates.
type ImportHandler struct {
	service  importService
	maxBytes int64
}

// NewImportHandler constructs an import handler. Uploads larger than maxBytes
// are rejected.
func NewImportHandler(svc importService, maxBytes int64) *ImportHandler {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &ImportHandler{service: svc, maxBytes: maxBytes}
}

// Students godoc
// @Summary Import students
// @Description Columns: full_name, admission_number, gender, class_name, date_of_birth, parent_email, address
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /students/upload-csv [post]
func (h *ImportHandler) Students(c *gin.Context) {
	h.upload(c, service.ImportStudents)
}

// Parents godoc
// @Summary Import parents
// @Description Columns: full_name, email, phone, password, student_admission_numbers
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /users/upload-parents-csv [post]
func (h *ImportHandler) Parents(c *gin.Context) {
	h.upload(c, service.ImportParents)
}

// Payments godoc
// @Summary Import payments
// @Description Columns: admission_number, amount, payment_method, term, notes
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/upload-payments-csv [post]
func (h *ImportHandler) Payments(c *gin.Context) {
	h.upload(c, service.ImportPayments)
}

// Workbook godoc
// @Summary Import classes and fee structures
// @Description XLSX with a "Classes" sheet (name, level, section, academic_year) and a "Fees" sheet (class_level, term, academic_year, tuition, books, uniform, other_fees)
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "XLSX file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/upload-xlsx [post]
func (h *ImportHandler) Workbook(c *gin.Context) {
	file, filename, ok := h.openUpload(c)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.service.ImportWorkbook(c.Request.Context(), claimsFromContext(c), filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *ImportHandler) upload(c *gin.Context, kind string) {
	file, filename, ok := h.openUpload(c)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.service.Import(c.Request.Context(), claimsFromContext(c), kind, filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *ImportHandler) openUpload(c *gin.Context) (multipart.File, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, http.StatusBadRequest, "file is required"))
		return nil, "", false
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, http.StatusBadRequest, "unable to read file"))
		return nil, "", false
	}
	return file, header.Filename, true
}

// StudentsTemplate godoc
// @Summary Student CSV template
// @Tags Import
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/csv-template [get]
func (h *ImportHandler) StudentsTemplate(c *gin.Context) {
	h.template(c, service.ImportStudents)
}

// ParentsTemplate godoc
// @Summary Parent CSV template
// @Tags Import
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/parents-csv-template [get]
func (h *ImportHandler) ParentsTemplate(c *gin.Context) {
	h.template(c, service.ImportParents)
}

// PaymentsTemplate godoc
// @Summary Payment CSV template
// @Tags Import
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fees/payments-csv-template [get]
func (h *ImportHandler) PaymentsTemplate(c *gin.Context) {
	h.template(c, service.ImportPayments)
}

func (h *ImportHandler) template(c *gin.Context, kind string) {
	tpl, err := h.service.Template(kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// WorkbookTemplate godoc
// @Summary Class and fee XLSX template
// @Tags Import
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /classes/xlsx-template [get]
func (h *ImportHandler) WorkbookTemplate(c *gin.Context) {
	body, err := h.service.WorkbookTemplate()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "classes_fees_template.xlsx", xlsxContentType, body)
}
