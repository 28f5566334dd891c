package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Aar2284/University-Management-Sys/api/swagger"
	"github.com/Aar2284/University-Management-Sys/internal/handler"
	"github.com/Aar2284/University-Management-Sys/internal/middleware"
	"github.com/Aar2284/University-Management-Sys/internal/models"
	"github.com/Aar2284/University-Management-Sys/internal/repository"
	"github.com/Aar2284/University-Management-Sys/internal/service"
	"github.com/Aar2284/University-Management-Sys/pkg/cache"
	"github.com/Aar2284/University-Management-Sys/pkg/config"
	"github.com/Aar2284/University-Management-Sys/pkg/database"
	"github.com/Aar2284/University-Management-Sys/pkg/jobs"
	"github.com/Aar2284/University-Management-Sys/pkg/logger"
	corsmiddleware "github.com/Aar2284/University-Management-Sys/pkg/middleware/cors"
	reqidmiddleware "github.com/Aar2284/University-Management-Sys/pkg/middleware/requestid"
	"github.com/Aar2284/University-Management-Sys/pkg/storage"
)

// @title University Management API
// @version 1.0.0
// @description Attendance, curved grading and reporting service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	// cache is optional; dashboards fall back to direct reads without it
	var cacheSvc *service.CacheService
	if cfg.Dashboard.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	reportRepo := repository.NewReportRepository(db)

	uploadStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("upload storage init failed", "error", err)
	}

	authSvc := service.NewAuthService(userRepo, studentRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "university-management",
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, subjectRepo, teacherRepo, nil, logr, cfg.Attendance.DedupeDaily)
	gradeSvc := service.NewGradeService(gradeRepo, teacherRepo, nil, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, teacherRepo, nil, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, teacherRepo, uploadStorage, nil, logr, cfg.Uploads.MaxFileSizeBytes)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Students:    studentRepo,
		Teachers:    teacherRepo,
		Users:       userRepo,
		Attendance:  attendanceSvc,
		Grades:      gradeSvc,
		Assignments: assignmentRepo,
		Subjects:    subjectRepo,
		Cache:       cacheSvc,
		Logger:      logr,
		CacheTTL:    cfg.Dashboard.CacheTTL,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, subjectSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	protected := api.Group("", middleware.JWT(authSvc))

	dashboards := protected.Group("/dashboard")
	{
		dashboards.GET("/student", middleware.RequireRoles(models.RoleStudent), dashboardHandler.Student)
		dashboards.GET("/teacher", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), dashboardHandler.Teacher)
	}

	attendance := protected.Group("/attendance")
	{
		attendance.POST("/sheet", middleware.RequireRoles(models.RoleTeacher), attendanceHandler.RecordSheet)
		attendance.POST("/check-in", middleware.RequireRoles(models.RoleStudent), attendanceHandler.CheckIn)
		attendance.GET("", attendanceHandler.List)
		attendance.GET("/summary/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), "SELF"), attendanceHandler.Summary)
	}

	grades := protected.Group("/grades")
	{
		grades.PUT("", middleware.RequireRoles(models.RoleTeacher), gradeHandler.Upsert)
		grades.GET("/students/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), "SELF"), gradeHandler.StudentGrades)
		grades.GET("/subjects/:id", middleware.RequireRoles(models.RoleTeacher), gradeHandler.SubjectResults)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("", middleware.RequireRoles(models.RoleAdmin), subjectHandler.Create)
		subjects.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), subjectHandler.Update)
		subjects.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), subjectHandler.Delete)
	}

	assignments := protected.Group("/assignments")
	{
		assignments.POST("", middleware.RequireRoles(models.RoleTeacher), assignmentHandler.Create)
		assignments.GET("", assignmentHandler.List)
		assignments.POST("/:id/submissions", middleware.RequireRoles(models.RoleStudent), assignmentHandler.Submit)
		assignments.GET("/:id/submissions", middleware.RequireRoles(models.RoleTeacher), assignmentHandler.Submissions)
		assignments.GET("/:id/submissions/:studentId", assignmentHandler.DownloadSubmission)
	}

	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("report storage init failed", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exporter := service.NewExportService(gradeRepo, subjectRepo, studentRepo, attendanceRepo, reportStorage, signer, service.ExportConfig{
			APIPrefix:   cfg.APIPrefix,
			ResultTTL:   cfg.Reports.SignedURLTTL,
			DedupeDaily: cfg.Attendance.DedupeDaily,
		}, logr, nil, nil)

		worker := service.NewReportWorker(reportRepo, exporter, metrics, logr, cfg.Reports.WorkerRetries)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)

		reportSvc := service.NewReportService(reportRepo, teacherRepo, exporter, reportQueue, metrics, nil, logr, service.ReportConfig{
			MaxRetries:      cfg.Reports.WorkerRetries,
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		})
		reportSvc.StartCleanup(ctx)
		if _, err := reportSvc.RecoverPendingJobs(ctx, 100); err != nil {
			logr.Sugar().Warnw("report job recovery failed", "error", err)
		}

		reportHandler := handler.NewReportHandler(reportSvc)
		reports := api.Group("/reports")
		{
			reports.GET("/download/:token", reportHandler.Download)

			authed := reports.Group("", middleware.JWT(authSvc))
			authed.POST("", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), reportHandler.Create)
			authed.GET("/:id", reportHandler.Status)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
	logr.Sugar().Infow("server stopped")
}
