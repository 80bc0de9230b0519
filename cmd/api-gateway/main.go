package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	_ "github.com/qirllo/school-api/api/swagger"
	"github.com/qirllo/school-api/internal/handler"
	"github.com/qirllo/school-api/internal/policy"
	"github.com/qirllo/school-api/internal/repository"
	"github.com/qirllo/school-api/internal/service"
	"github.com/qirllo/school-api/pkg/cache"
	"github.com/qirllo/school-api/pkg/config"
	"github.com/qirllo/school-api/pkg/database"
	"github.com/qirllo/school-api/pkg/export"
	"github.com/qirllo/school-api/pkg/jobs"
	"github.com/qirllo/school-api/pkg/logger"
	"github.com/qirllo/school-api/pkg/mailer"
	"github.com/qirllo/school-api/pkg/storage"
)

// @title QIRLLO School Management API
// @version 1.0.0
// @description School management backend: records, grades, attendance, fees and messaging
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	authz := policy.New()
	defaults := service.SchoolDefaults{
		AcademicYear: cfg.School.DefaultAcademicYear,
		Term:         cfg.School.DefaultTerm,
		FeeTotal:     cfg.School.DefaultFeeTotal,
	}

	receiptStore, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare receipt storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)
	pdf := export.NewPDFExporter()

	queue := jobs.NewQueue("background", jobs.QueueConfig{
		Workers:    cfg.Receipts.Workers,
		MaxRetries: cfg.Receipts.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ListTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, authz, queue, auditRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, classRepo, cacheSvc, authz, validate, logr)
	classSvc := service.NewClassService(classRepo, userRepo, cacheSvc, cfg.Cache.ListTTL, authz, defaults, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, classRepo, userRepo, cacheSvc, authz, validate, logr)
	gradeSvc := service.NewGradeService(service.GradeServiceDeps{
		Repo:       gradeRepo,
		Students:   studentRepo,
		Subjects:   subjectRepo,
		PDF:        pdf,
		Metrics:    metrics,
		Audit:      auditRepo,
		Authz:      authz,
		Defaults:   defaults,
		SchoolName: cfg.School.Name,
		Validator:  validate,
		Logger:     logr,
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, classRepo, subjectRepo, authz, validate, logr)
	feeSvc := service.NewFeeService(service.FeeServiceDeps{
		Repo:        feeRepo,
		Students:    studentRepo,
		Classes:     classRepo,
		Storage:     receiptStore,
		Signer:      signer,
		Queue:       queue,
		PDF:         pdf,
		Metrics:     metrics,
		Audit:       auditRepo,
		Authz:       authz,
		Defaults:    defaults,
		SchoolName:  cfg.School.Name,
		DownloadURL: cfg.PublicURL + cfg.APIPrefix + "/fees/receipts/download",
		Retention:   cfg.Receipts.Retention,
		Validator:   validate,
		Logger:      logr,
	})
	messageSvc := service.NewMessageService(messageRepo, userRepo, authz, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, cacheSvc, cfg.Cache.ListTTL, authz, validate, logr)
	importSvc := service.NewImportService(service.ImportServiceDeps{
		Students:   studentRepo,
		Classes:    classRepo,
		Users:      userRepo,
		Payments:   feeSvc,
		ClassSetup: classSvc,
		Structures: feeSvc,
		Cache:      cacheSvc,
		Metrics:    metrics,
		Audit:      auditRepo,
		Authz:      authz,
		Defaults:   defaults,
		Logger:     logr,
	})
	settingsSvc := service.NewSettingsService(settingsRepo, userRepo, cfg.School.Name, defaults, authz, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, studentRepo, messageRepo, announcementRepo, feeRepo, cacheSvc, cfg.Cache.DashboardTTL, defaults, logr)
	seedSvc := service.NewSeedService(service.SeedRepositories{
		Users:         userRepo,
		Classes:       classRepo,
		Subjects:      subjectRepo,
		Students:      studentRepo,
		Grades:        gradeRepo,
		Announcements: announcementRepo,
	}, cfg.School.SeedAdminEmail, cfg.School.SeedAdminPassword, defaults, cacheSvc, logr)
	notificationSvc := service.NewNotificationService(mailer.New(cfg.Mail, logr), cfg.School.Name, cfg.Mail.LoginURL, logr)

	queue.Register(service.JobTypeInviteEmail, notificationSvc.HandleInvite)
	queue.Register(service.JobTypeRenderReceipt, feeSvc.HandleReceiptJob)
	queue.Start(ctx)
	defer queue.Stop()

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.Receipts.CleanupSchedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := feeSvc.CleanupReceipts(jobCtx); err != nil {
			logr.Error("receipt cleanup failed", zap.Error(err))
		}
	}); err != nil {
		logr.Fatal("invalid receipt cleanup schedule", zap.String("schedule", cfg.Receipts.CleanupSchedule), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metrics,
		Authenticator:  authSvc,
		Audit:          auditRepo,
	}, handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Students:      handler.NewStudentHandler(studentSvc),
		Classes:       handler.NewClassHandler(classSvc),
		Subjects:      handler.NewSubjectHandler(subjectSvc),
		Grades:        handler.NewGradeHandler(gradeSvc),
		Attendance:    handler.NewAttendanceHandler(attendanceSvc),
		Fees:          handler.NewFeeHandler(feeSvc),
		Messages:      handler.NewMessageHandler(messageSvc),
		Announcements: handler.NewAnnouncementHandler(announcementSvc),
		Imports:       handler.NewImportHandler(importSvc, cfg.Import.MaxUploadBytes),
		Settings:      handler.NewSettingsHandler(settingsSvc),
		Dashboard:     handler.NewDashboardHandler(dashboardSvc),
		Seed:          handler.NewSeedHandler(seedSvc),
		System:        handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		_ = srv.Close()
	}
}
