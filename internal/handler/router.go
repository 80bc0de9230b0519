package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	internalmiddleware "github.com/qirllo/school-api/internal/middleware"
	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/service"
	"github.com/qirllo/school-api/pkg/logger"
	corsmiddleware "github.com/qirllo/school-api/pkg/middleware/cors"
	reqidmiddleware "github.com/qirllo/school-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Students      *StudentHandler
	Classes       *ClassHandler
	Subjects      *SubjectHandler
	Grades        *GradeHandler
	Attendance    *AttendanceHandler
	Fees          *FeeHandler
	Messages      *MessageHandler
	Announcements *AnnouncementHandler
	Imports       *ImportHandler
	Settings      *SettingsHandler
	Dashboard     *DashboardHandler
	Seed          *SeedHandler
	System        *MetricsHandler
}

// RouterConfig carries the cross-cutting collaborators of the router.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Authenticator  internalmiddleware.TokenAuthenticator
	Audit          internalmiddleware.AuditRecorder
}

// NewRouter builds the gin engine with every route of the API.
func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(cfg.Metrics))

	r.GET("/health", h.System.Health)
	r.GET("/ready", h.System.Ready)
	r.GET("/metrics", h.System.Prometheus)
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	staff := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	audit := func(action, resource string) gin.HandlerFunc {
		return internalmiddleware.Audit(cfg.Audit, action, resource)
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/", h.System.Root)
	api.POST("/seed", h.Seed.Seed)
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.GET("/students/csv-template", h.Imports.StudentsTemplate)
	api.GET("/users/parents-csv-template", h.Imports.ParentsTemplate)
	api.GET("/fees/payments-csv-template", h.Imports.PaymentsTemplate)
	api.GET("/classes/xlsx-template", h.Imports.WorkbookTemplate)
	api.GET("/school/onboarding-status", h.Settings.OnboardingStatus)
	api.POST("/school/setup", h.Settings.Setup)
	api.GET("/fees/receipts/download", h.Fees.DownloadReceipt)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(cfg.Authenticator))

	secured.GET("/auth/me", h.Auth.Me)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)

	secured.GET("/users", admin, h.Users.List)
	secured.POST("/users/invite", admin, audit(models.AuditActionCreate, "users"), h.Users.Invite)
	secured.POST("/users/upload-parents-csv", admin, audit(models.AuditActionImport, "parents"), h.Imports.Parents)
	secured.GET("/users/:id", internalmiddleware.RBAC(string(models.RoleAdmin), "SELF"), h.Users.Get)
	secured.PUT("/users/:id", internalmiddleware.RBAC(string(models.RoleAdmin), "SELF"), audit(models.AuditActionUpdate, "users"), h.Users.Update)
	secured.DELETE("/users/:id", admin, h.Users.Delete)
	secured.GET("/teachers", h.Users.Teachers)
	secured.GET("/parents", staff, h.Users.Parents)

	students := secured.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", admin, audit(models.AuditActionCreate, "students"), h.Students.Create)
	students.POST("/upload-csv", admin, audit(models.AuditActionImport, "students"), h.Imports.Students)
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", admin, audit(models.AuditActionUpdate, "students"), h.Students.Update)
	students.DELETE("/:id", admin, audit(models.AuditActionDelete, "students"), h.Students.Delete)

	classes := secured.Group("/classes")
	classes.GET("", h.Classes.List)
	classes.POST("", admin, audit(models.AuditActionCreate, "classes"), h.Classes.Create)
	classes.POST("/upload-xlsx", admin, audit(models.AuditActionImport, "classes"), h.Imports.Workbook)
	classes.GET("/:id", h.Classes.Get)
	classes.PUT("/:id", admin, audit(models.AuditActionUpdate, "classes"), h.Classes.Update)
	classes.PUT("/:id/teacher", admin, audit(models.AuditActionUpdate, "classes"), h.Classes.AssignTeacher)
	classes.DELETE("/:id", admin, audit(models.AuditActionDelete, "classes"), h.Classes.Delete)

	subjects := secured.Group("/subjects")
	subjects.GET("", h.Subjects.List)
	subjects.POST("", admin, audit(models.AuditActionCreate, "subjects"), h.Subjects.Create)
	subjects.GET("/:id", h.Subjects.Get)
	subjects.PUT("/:id", admin, audit(models.AuditActionUpdate, "subjects"), h.Subjects.Update)
	subjects.DELETE("/:id", admin, audit(models.AuditActionDelete, "subjects"), h.Subjects.Delete)

	grades := secured.Group("/grades")
	grades.GET("", h.Grades.List)
	grades.POST("", staff, h.Grades.Upsert)
	grades.POST("/bulk", staff, h.Grades.BulkUpsert)
	grades.GET("/report-card/:student_id", h.Grades.ReportCard)
	grades.PUT("/submit-bulk", staff, h.Grades.BulkSubmit)
	grades.PUT("/approve-bulk", admin, audit(models.AuditActionApprove, "grades"), h.Grades.BulkApprove)
	grades.PUT("/reject-bulk", admin, h.Grades.BulkReject)
	grades.PUT("/:id/submit", staff, h.Grades.Submit)
	grades.PUT("/:id/approve", admin, audit(models.AuditActionApprove, "grades"), h.Grades.Approve)
	grades.PUT("/:id/reject", admin, h.Grades.Reject)

	attendance := secured.Group("/attendance")
	attendance.GET("", h.Attendance.List)
	attendance.POST("", staff, h.Attendance.Mark)
	attendance.POST("/bulk", staff, h.Attendance.BulkMark)
	attendance.GET("/summary/:student_id", h.Attendance.Summary)

	fees := secured.Group("/fees")
	fees.GET("/structure", h.Fees.ListStructures)
	fees.POST("/structure", admin, audit(models.AuditActionUpdate, "fee_structures"), h.Fees.SetStructure)
	fees.POST("/payment", admin, audit(models.AuditActionCreate, "fee_payments"), h.Fees.RecordPayment)
	fees.POST("/upload-payments-csv", admin, audit(models.AuditActionImport, "fee_payments"), h.Imports.Payments)
	fees.GET("/payments", h.Fees.ListPayments)
	fees.GET("/payments/:id/receipt", h.Fees.ReceiptLink)
	fees.GET("/balance/:student_id", h.Fees.Balance)
	fees.GET("/balances", admin, h.Fees.AllBalances)
	fees.GET("/balances/export", admin, h.Fees.ExportBalances)

	messages := secured.Group("/messages")
	messages.GET("", h.Messages.List)
	messages.POST("", h.Messages.Send)
	messages.GET("/unread/count", h.Messages.UnreadCount)
	messages.GET("/:id", h.Messages.Get)

	announcements := secured.Group("/announcements")
	announcements.GET("", h.Announcements.List)
	announcements.POST("", admin, audit(models.AuditActionCreate, "announcements"), h.Announcements.Create)
	announcements.DELETE("/:id", admin, audit(models.AuditActionDelete, "announcements"), h.Announcements.Delete)

	secured.GET("/settings", h.Settings.Get)
	secured.PUT("/settings", admin, audit(models.AuditActionUpdate, "settings"), h.Settings.Update)
	secured.GET("/dashboard/stats", h.Dashboard.Stats)

	return r
}
