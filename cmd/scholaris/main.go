package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/scholaris-sms/scholaris/internal/academics"
	"github.com/scholaris-sms/scholaris/internal/accounts"
	"github.com/scholaris-sms/scholaris/internal/announcements"
	"github.com/scholaris-sms/scholaris/internal/app"
	"github.com/scholaris-sms/scholaris/internal/attendance"
	"github.com/scholaris-sms/scholaris/internal/audit"
	"github.com/scholaris-sms/scholaris/internal/auth"
	"github.com/scholaris-sms/scholaris/internal/exams"
	"github.com/scholaris-sms/scholaris/internal/finance"
	"github.com/scholaris-sms/scholaris/internal/observability"
	platformdb "github.com/scholaris-sms/scholaris/internal/platform/db"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/roles"
	"github.com/scholaris-sms/scholaris/internal/school"
	"github.com/scholaris-sms/scholaris/internal/students"
	"github.com/scholaris-sms/scholaris/jobs"
	"github.com/scholaris-sms/scholaris/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := platformdb.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var bootstrapAdmin *rbac.BootstrapAdmin
	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		bootstrapAdmin = &rbac.BootstrapAdmin{
			Email:    cfg.BootstrapAdminEmail,
			Password: cfg.BootstrapAdminPassword,
		}
	}
	seeder := rbac.NewSeeder(rbac.NewPGSeedStore(pool), logger)
	if err := seeder.Run(ctx, bootstrapAdmin); err != nil {
		logger.Error("seed rbac catalog", slog.Any("error", err))
		os.Exit(1)
	}

	permissionCache := rbac.NewPermissionCache(redisClient, cfg.PermissionCacheTTL)
	rbacService := rbac.NewService(pool, permissionCache, logger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	metrics := observability.NewMetrics()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	gate := auth.NewGate(tokens, cfg.CookieName, cfg.IsProduction(), logger)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, tokens, gate).WithMetrics(metrics)

	auditService := audit.NewService(audit.NewRepository(pool), logger)
	auditHandler := audit.NewHandler(logger, auditService)

	accountsService := accounts.NewService(accounts.NewPGRepository(pool), rbacService, rbacService, logger)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	rolesService := roles.NewService(roles.NewPGRepository(pool), rbacService, logger)
	rolesHandler := roles.NewHandler(logger, rolesService)

	schoolService := school.NewService(school.NewRepository(pool))
	schoolHandler := school.NewHandler(logger, schoolService, rbacMiddleware)

	academicsService := academics.NewService(academics.NewRepository(pool))
	academicsHandler := academics.NewHandler(logger, academicsService, rbacMiddleware)

	studentsService := students.NewService(students.NewRepository(pool), logger)
	studentsHandler := students.NewHandler(logger, studentsService, rbacMiddleware)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}
	financeService := finance.NewService(finance.NewPGRepository(pool), logger)
	financeHandler := finance.NewHandler(logger, financeService, rbacMiddleware, pdfClient,
		func(ctx context.Context) string {
			profile, err := schoolService.Get(ctx)
			if err != nil || profile.Name == "" {
				return "School"
			}
			return profile.Name
		})

	attendanceService := attendance.NewService(attendance.NewRepository(pool), logger)
	attendanceHandler := attendance.NewHandler(logger, attendanceService, rbacMiddleware)

	examsService := exams.NewService(exams.NewRepository(pool), logger)
	examsHandler := exams.NewHandler(logger, examsService, rbacMiddleware)

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	announcementsService := announcements.NewService(announcements.NewRepository(pool), queueClient, logger)
	announcementsHandler := announcements.NewHandler(logger, announcementsService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Gate:                 gate,
		AuthHandler:          authHandler,
		SchoolHandler:        schoolHandler,
		AcademicsHandler:     academicsHandler,
		StudentsHandler:      studentsHandler,
		FinanceHandler:       financeHandler,
		AttendanceHandler:    attendanceHandler,
		ExamsHandler:         examsHandler,
		AnnouncementsHandler: announcementsHandler,
		AccountsHandler:      accountsHandler,
		RolesHandler:         rolesHandler,
		AuditHandler:         auditHandler,
		JobHandler:           jobHandler,
		RBACMiddleware:       rbacMiddleware,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
