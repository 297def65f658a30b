package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/config"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/server"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/service"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/telemetry"
)

// Runs one weekly report batch outside the HTTP server, for hosts where the
// scheduler can start a process but cannot call the cron endpoint.
func main() {
	asOf := flag.String("as-of", "", "Any day of the target week, YYYY-MM-DD (default: today in TIMEZONE)")
	concurrency := flag.Int("concurrency", 0, "Members processed in parallel (default: REPORT_CONCURRENCY)")
	memberTimeout := flag.Duration("member-timeout", 0, "Time limit per member (default: REPORT_MEMBER_TIMEOUT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *concurrency > 0 {
		cfg.Reports.Concurrency = *concurrency
	}
	if *memberTimeout > 0 {
		cfg.Reports.MemberTimeout = *memberTimeout
	}

	var day time.Time
	if *asOf != "" {
		day, err = domain.ParseDay(*asOf)
		if err != nil {
			fmt.Println("Usage: weekly_reports [-as-of YYYY-MM-DD] [-concurrency N] [-member-timeout 30s]")
			os.Exit(1)
		}
	}

	os.Exit(run(cfg, day))
}

// run generates one batch for the week containing day (today when zero) and
// returns the process exit code. Deferred cleanup, the telemetry flush
// included, completes before it returns.
func run(cfg *config.Config, day time.Time) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName + "-reports",
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.OTEL.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
		PathPrefix:     "/otlp",
		OTLPHeaders:    telemetry.BasicAuthHeaders(cfg.OTEL.InstanceID, cfg.OTEL.Token),
		Enabled:        cfg.OTEL.Enabled,
	})
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	}
	if otelProvider != nil {
		// Flush before exit; the batch is the whole process lifetime.
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelProvider.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error shutting down OpenTelemetry: %v", err)
			}
		}()
	}

	backend, err := server.OpenBackend(ctx, cfg)
	if err != nil {
		log.Printf("❌ Failed to open %s ledger: %v", cfg.Ledger.Backend, err)
		return 1
	}
	defer backend.Close()

	reports := service.NewWeeklyReportService(backend.Store, backend.Members, telemetry.NewLedgerMetrics(), service.WeeklyReportConfig{
		Concurrency:   cfg.Reports.Concurrency,
		MemberTimeout: cfg.Reports.MemberTimeout,
		RunTimeout:    cfg.Reports.RunTimeout,
		Location:      cfg.Ledger.Location,
	})

	var result *domain.BatchResult
	if day.IsZero() {
		result, err = reports.GenerateWeeklyReports(ctx, time.Time{})
	} else {
		result, err = reports.GenerateWeeklyReportsForDay(ctx, day)
	}
	if err != nil {
		log.Printf("❌ Weekly report run failed: %v", err)
		return 1
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("✅ Summary (run %s):\n", result.RunID)
	fmt.Printf("   Week: %s to %s\n", result.WeekStart.Format(domain.DateLayout), result.WeekEnd.Format(domain.DateLayout))
	fmt.Printf("   Reports generated: %d/%d\n", result.Succeeded, result.Total)
	if len(result.Failed) > 0 {
		fmt.Printf("   ⚠️  Failed members: %v\n", result.Failed)
		return 1
	}
	return 0
}
