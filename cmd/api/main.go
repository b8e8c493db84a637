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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sigep-hr/sigep-api/api/swagger"
	"github.com/sigep-hr/sigep-api/internal/handler"
	"github.com/sigep-hr/sigep-api/internal/middleware"
	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/internal/repository"
	"github.com/sigep-hr/sigep-api/internal/service"
	"github.com/sigep-hr/sigep-api/pkg/cache"
	"github.com/sigep-hr/sigep-api/pkg/config"
	"github.com/sigep-hr/sigep-api/pkg/database"
	"github.com/sigep-hr/sigep-api/pkg/logger"
	corsmiddleware "github.com/sigep-hr/sigep-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sigep-hr/sigep-api/pkg/middleware/requestid"
	"github.com/sigep-hr/sigep-api/pkg/storage"
)

// @title SIGEP API
// @version 1.0.0
// @description Leave and permission management for employees: vacation balances, request workflows and approvals
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if !cfg.Permissions.CacheDisabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, permission type cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare document storage", "error", err)
	}
	documentSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	balanceRepo := repository.NewVacationBalanceRepository(db)
	vacationRepo := repository.NewVacationRequestRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	metricsSvc := service.NewMetricsService()
	dispatcher := service.NewSideEffectDispatcher(auditRepo, notificationRepo, metricsSvc, cfg.SideEffects, logr)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	authSvc := service.NewAuthService(userRepo, dispatcher, cfg.JWT, logr)
	employeeSvc := service.NewEmployeeService(employeeRepo, logr)
	vacationSvc := service.NewVacationService(db, balanceRepo, vacationRepo, employeeRepo, userRepo, dispatcher, metricsSvc, cfg.Vacations, logr)
	permissionSvc := service.NewPermissionService(db, permissionRepo, employeeRepo, userRepo, dispatcher, metricsSvc, redisClient, cfg.Permissions, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	reportSvc := service.NewReportService(vacationSvc, permissionSvc, logr)
	documentSvc := service.NewDocumentService(documentStore, documentSigner, cfg.Documents, logr)
	auditSvc := service.NewAuditService(auditRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	employeeHandler := handler.NewEmployeeHandler(employeeSvc)
	vacationHandler := handler.NewVacationHandler(vacationSvc)
	permissionHandler := handler.NewPermissionHandler(permissionSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		protected := auth.Group("")
		protected.Use(middleware.JWT(authSvc))
		protected.POST("/logout", authHandler.Logout)
		protected.POST("/change-password", authHandler.ChangePassword)
		protected.GET("/me", authHandler.Me)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	employees := secured.Group("/employees")
	{
		employees.GET("/me", employeeHandler.Me)
		employees.GET("", employeeHandler.List)
		employees.GET("/:id", middleware.RBAC("ADMIN", "RRHH", "SUPERVISOR", "SELF"), employeeHandler.Get)
	}

	vacations := secured.Group("/vacations")
	{
		vacations.POST("", vacationHandler.Create)
		vacations.GET("", vacationHandler.List)
		vacations.GET("/pending", middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleSupervisor), vacationHandler.Pending)
		vacations.GET("/:id", vacationHandler.Get)
		vacations.PUT("/:id", vacationHandler.Update)
		vacations.POST("/:id/review", middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleSupervisor), vacationHandler.StartReview)
		vacations.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleSupervisor), vacationHandler.Approve)
		vacations.POST("/:id/reject", middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleSupervisor), vacationHandler.Reject)
		vacations.POST("/:id/cancel", vacationHandler.Cancel)
		vacations.GET("/:id/history", vacationHandler.History)
		vacations.GET("/balance/:id", vacationHandler.Balance)
		vacations.GET("/balance/:id/history", vacationHandler.BalanceHistory)
		vacations.POST("/balance/:id/initialize", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), vacationHandler.InitializeBalance)
	}

	permissions := secured.Group("/permissions")
	{
		permissions.GET("/types", permissionHandler.ListTypes)
		permissions.POST("", permissionHandler.Create)
		permissions.GET("", permissionHandler.List)
		permissions.GET("/pending", middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleSupervisor), permissionHandler.Pending)
		permissions.GET("/:id", permissionHandler.Get)
		permissions.POST("/:id/review", middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleSupervisor), permissionHandler.StartReview)
		permissions.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleSupervisor), permissionHandler.Approve)
		permissions.POST("/:id/reject", middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleSupervisor), permissionHandler.Reject)
		permissions.POST("/:id/cancel", permissionHandler.Cancel)
		permissions.GET("/usage/:id", permissionHandler.Usage)
	}

	documents := secured.Group("/documents")
	{
		documents.POST("", documentHandler.Upload)
		documents.GET("/download", documentHandler.Download)
		documents.POST("/resign", documentHandler.Resign)
	}

	notifications := secured.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
	}

	secured.GET("/audit", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), auditHandler.List)

	reports := secured.Group("/reports")
	reports.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleHR))
	{
		reports.GET("/vacations", reportHandler.VacationReport)
		reports.GET("/permissions", reportHandler.PermissionReport)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
