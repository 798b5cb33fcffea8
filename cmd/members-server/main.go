package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"github.com/ESN-MoRe/members-manager/internal/application"
	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	"github.com/ESN-MoRe/members-manager/internal/server"
	"github.com/ESN-MoRe/members-manager/lib/serviceutil"
	libtelemetry "github.com/ESN-MoRe/members-manager/lib/telemetry"
)

func initTelemetry(ctx context.Context, cfg libtelemetry.Config, verbose bool) {
	telemetry.InitSlog(verbose)
	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	otel, err := libtelemetry.Setup(ctx, "members-server", cfg)
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otel.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("shutdown telemetry", "err", err)
		}
	}()
	libtelemetry.InstrumentPerfStats(ctx)
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging.")
	configPath := flag.String("config", "config.json5", "Path to the json5 config file.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	cfg, err := application.LoadConfig(*configPath)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	initTelemetry(ctx, cfg.Telemetry, *verbose)

	app, err := application.New(ctx, cfg, nil)
	if err != nil {
		serviceutil.Fatal("init application", err)
	}
	defer app.Close()

	srv := server.New(app.Content, app.Members, app.Images, server.Options{
		UploadDir:  cfg.Server.UploadDir,
		StagingDir: cfg.Server.StagingDir,
	})
	err = serviceutil.StartHttpServer(ctx, cfg.Server.Port, srv.Router())
	if err != nil {
		app.Close()
		serviceutil.Fatal("serve http", err)
	}
}
