// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/previewbox/internal/api/connect"
	"github.com/osa030/previewbox/internal/app/session"
	"github.com/osa030/previewbox/internal/infra/config"
	"github.com/osa030/previewbox/internal/infra/logger"
	"github.com/osa030/previewbox/internal/infra/manifestapi"
	"github.com/osa030/previewbox/internal/infra/manifestcache"
	"github.com/osa030/previewbox/internal/infra/output"
)

var (
	app        = kingpin.New("previewbox-server", "previewbox album preview server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: from config)").String()

	// list-outputs command
	listOutputsCmd = app.Command("list-outputs", "List available media outputs and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listOutputsCmd.FullCommand() {
		printOutputs()
		return
	}

	// Bootstrap logging so config errors are reported
	if err := logger.Init(logger.Config{Output: "stdout", Level: levelFor("info")}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	loggerConfig := logger.Config{
		Output:     cfg.Log.Output,
		Level:      levelFor(cfg.Log.Level),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

func levelFor(level string) string {
	if *verbose {
		return "debug"
	}
	return level
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	manifests, err := manifestapi.New(manifestapi.Config{
		BaseURL: cfg.Manifest.BaseURL,
		Timeout: cfg.ManifestTimeout(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create manifest client")
	}

	var cache session.ManifestCache
	if cfg.CacheEnabled() {
		redisCache, err := manifestcache.NewRedis(ctx, manifestcache.Config{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      cfg.CacheTTL(),
		})
		if err != nil {
			zlog.Warn().Msgf("Manifest cache disabled: %v", err)
		} else {
			defer redisCache.Close()
			cache = redisCache
			zlog.Info().Msgf("Manifest cache enabled: addr=%s ttl=%s", cfg.Cache.Redis.Addr, cfg.CacheTTL())
		}
	}

	newOutput, err := output.NewFactory(cfg.Output.Type, cfg.Output.Settings)
	if err != nil {
		return errors.Wrap(err, "invalid output config")
	}

	sessionMgr := session.NewManager(
		session.Config{
			Cap:          cfg.Cap(),
			PollInterval: cfg.PollInterval(),
			IdleTimeout:  cfg.SessionIdleTimeout(),
		},
		session.NewLoader(manifests, cache),
		session.OutputFactory(newOutput),
	)

	previewPath, previewHandler := apiconnect.NewPreviewServiceHandler(
		apiconnect.NewPreviewService(sessionMgr),
		connect.WithInterceptors(apiconnect.NewAPITokenInterceptor(cfg.Server.APIToken)),
	)
	if cfg.Server.APIToken == "" {
		zlog.Warn().Msg("API token not configured, requests are not authenticated")
	}

	mux := http.NewServeMux()
	mux.Handle(previewPath, previewHandler)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s output=%s cap=%s", cfg.Server.Addr, cfg.Output.Type, cfg.Cap())
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		sessionMgr.Shutdown()
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close sessions first to end watch streams
	sessionMgr.Shutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// printOutputs prints available media outputs.
func printOutputs() {
	fmt.Println("Available Outputs:")
	fmt.Printf("  %-10s - %s\n", output.TypeVirtual, "simulated clock, no audio device")
	fmt.Printf("  %-10s - %s\n", output.TypeSpeaker, "decodes MP3 previews to the local sound card")
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
