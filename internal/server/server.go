package server

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/config"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/handler"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/middleware"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/notification"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/repository"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/service"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

const idempotencyTTL = 24 * time.Hour

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	Store       domain.LedgerStore
	Members     domain.MemberRepository
	RedisClient *redis.Client              // Optional: report cache + idempotency
	Sink        domain.NotificationSink    // Defaults to notification.LogSink
	PushTokens  domain.PushTokenRepository // Optional: enables token registration
	Metrics     *telemetry.LedgerMetrics
	Now         func() time.Time // Overrides the clock in tests
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	cfg := deps.Config

	store := deps.Store
	if deps.RedisClient != nil {
		store = repository.NewCachedLedgerStore(store, repository.NewRedisReportCache(deps.RedisClient))
	}

	sink := deps.Sink
	if sink == nil {
		sink = notification.LogSink{}
	}

	// Initialize services
	attendanceService := service.NewAttendanceService(store, sink, deps.Metrics, service.AttendanceConfig{
		Location:   cfg.Ledger.Location,
		AppBaseURL: cfg.Server.AppBaseURL,
		Now:        deps.Now,
	})
	reportService := service.NewWeeklyReportService(store, deps.Members, deps.Metrics, service.WeeklyReportConfig{
		Concurrency:   cfg.Reports.Concurrency,
		MemberTimeout: cfg.Reports.MemberTimeout,
		RunTimeout:    cfg.Reports.RunTimeout,
		Location:      cfg.Ledger.Location,
		Now:           deps.Now,
	})

	// Initialize handlers
	ledgerHandler := handler.NewLedgerHandler(attendanceService)
	reportHandler := handler.NewReportHandler(reportService)

	app := fiber.New(fiber.Config{
		AppName:      "Lesson Ledger API",
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(telemetry.FiberMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID, " + handler.RequestedByHeader,
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "lesson-ledger",
			"backend": cfg.Ledger.Backend,
		})
	})

	v1 := app.Group("/v1")

	// ===========================================
	// PACKAGES & LESSONS
	// ===========================================
	recordLesson := []fiber.Handler{ledgerHandler.RecordLesson}
	if deps.RedisClient != nil {
		recordLesson = append([]fiber.Handler{middleware.IdempotencyMiddleware(deps.RedisClient, idempotencyTTL)}, recordLesson...)
	}

	packages := v1.Group("/packages")
	packages.Post("/", ledgerHandler.CreatePackage)
	packages.Get("/:id", ledgerHandler.GetPackage)
	packages.Post("/:id/lessons", recordLesson...)
	packages.Delete("/:id/lessons/:lessonId", ledgerHandler.UndoPackageLesson)

	v1.Delete("/lessons/:id", ledgerHandler.UndoLesson)

	// ===========================================
	// MEMBER VIEWS
	// ===========================================
	members := v1.Group("/members")
	members.Get("/:id/lessons", ledgerHandler.ListMemberLessons)
	members.Get("/:id/weekly-reports", reportHandler.ListMemberReports)
	if deps.PushTokens != nil {
		members.Post("/:id/push-tokens", handler.NewPushTokenHandler(deps.PushTokens).Register)
	}

	// ===========================================
	// SCHEDULED TRIGGERS - shared secret
	// ===========================================
	cron := v1.Group("/cron", middleware.CronSecret(cfg.Cron.Secret))
	cron.Post("/weekly-reports", reportHandler.TriggerWeeklyReports)
	// Some schedulers can only issue GET
	cron.Get("/weekly-reports", reportHandler.TriggerWeeklyReports)

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("Error: %v", err)
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
