package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"schoolsync-backend/lib/browser"
	"schoolsync-backend/lib/configutil"
	"schoolsync-backend/lib/serviceutil"
	"schoolsync-backend/lib/telemetry"
	"schoolsync-backend/scrapers/diario"
	linkerdb "schoolsync-backend/services/linker/db"
	resolverdb "schoolsync-backend/services/resolver/db"
	scheduledb "schoolsync-backend/services/schedule/db"
	syncsvc "schoolsync-backend/services/sync"
)

type lastReport struct {
	mu     sync.RWMutex
	report *syncsvc.RunReport
}

func (l *lastReport) set(report syncsvc.RunReport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.report = &report
}

func (l *lastReport) get() *syncsvc.RunReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.report
}

func runOnce(ctx context.Context, config SyncdConfig, service syncsvc.Service, last *lastReport) {
	driver, err := browser.NewChrome(ctx, browser.ChromeOptions{
		Headless: config.Portal.Headless,
		ExecPath: config.Portal.ChromePath,
	})
	if err != nil {
		slog.Error("failed to start browser", "err", err)
		return
	}
	defer driver.Close(context.WithoutCancel(ctx))

	controller := diario.NewSessionController(driver, diario.SessionOptions{
		LoginUrl: config.Portal.LoginUrl,
	})
	err = controller.Login(ctx, config.Portal.Username, config.Portal.Password)
	if err != nil {
		slog.Error("login failed", "err", err)
		return
	}

	nav, err := diario.NewNavigator(controller, diario.NavigatorOptions{
		PageUrl: config.Portal.ScheduleUrl,
	})
	if err != nil {
		slog.Error("failed to create navigator", "err", err)
		return
	}

	report, err := service.RunImport(ctx, nav, nil, nil)
	if err != nil {
		slog.Error("import run failed", "run_id", report.RunID, "err", err)
		return
	}

	last.set(report)
	slog.Info("import run finished",
		"run_id", report.RunID,
		"rows_extracted", report.RowsExtracted,
		"rows_persisted", report.RowsPersisted,
		"unresolved", len(report.Unresolved),
	)
}

func main() {
	config, err := configutil.ReadConfig[SyncdConfig]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	telemetry.InitSlog(config.Verbose)

	ctx := serviceutil.SignalContext()

	otel, err := telemetry.SetupFromEnv(ctx, "schoolsync.syncd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer otel.Shutdown(context.WithoutCancel(ctx))
	telemetry.InstrumentPerfStats(ctx)

	schema := resolverdb.Schema + "\n" + scheduledb.Schema + "\n" + linkerdb.Schema
	database, err := config.Database.OpenDB(schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	service := syncsvc.NewService(database, syncsvc.Options{
		Threshold:     config.Threshold,
		ExportBaseUrl: config.Portal.ExportUrl,
		Smtp: syncsvc.SmtpConfig{
			Server:       config.Smtp.Server,
			Port:         config.Smtp.Port,
			EmailAddress: config.Smtp.EmailAddress,
			Password:     config.Smtp.Password,
			Recipients:   config.Smtp.Recipients,
		},
	})

	last := &lastReport{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		report := last.get()
		if report == nil {
			http.Error(w, "no run has completed yet", http.StatusNotFound)
			return
		}
		w.Header().Set("content-type", "application/json")
		json.NewEncoder(w).Encode(report)
	})

	port := config.Port
	if port == 0 {
		port = 8211
	}
	go serviceutil.StartHttpServer(port, mux)

	interval := time.Duration(config.IntervalHours) * time.Hour
	if interval == 0 {
		interval = time.Hour * 24
	}

	slog.Info("starting scheduled sync", "interval", interval, "port", port)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// runs execute off the ticker goroutine so the loop (and shutdown)
	// never waits on a browser session
	go runOnce(ctx, config, service, last)
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return
		case <-ticker.C:
			go runOnce(ctx, config, service, last)
		}
	}
}
