// Package main is the entry point for the tabserve server.
//
// tabserve serves CSV and JSON files from a data directory as paginated,
// filterable tables, imports uploads into SQLite and proxies chat completions
// to an OpenAI-compatible endpoint. Configuration is read from CLI flags, a
// .env file and server_config.yaml in the data directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/maruel/tabserve/internal/ingest"
	"github.com/maruel/tabserve/internal/llm"
	"github.com/maruel/tabserve/internal/logging"
	"github.com/maruel/tabserve/internal/server"
	"github.com/maruel/tabserve/internal/server/handlers"
	"github.com/maruel/tabserve/internal/server/ipgeo"
	"github.com/maruel/tabserve/internal/server/metrics"
	"github.com/maruel/tabserve/internal/server/ratelimit"
	"github.com/maruel/tabserve/internal/storage"
	"github.com/maruel/tabserve/internal/tabular"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "tabserve: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080). Use 0.0.0.0:port to listen on all interfaces.")
	dataDir := flag.String("data-dir", "./data", "Data directory holding the served files, server_config.yaml and the SQLite database")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	seqURL := flag.String("seq-url", "", "Seq server URL to also ship logs to (optional)")
	geoDB := flag.String("geo-db", "", "Path to MaxMind MMDB file for IP geolocation (optional)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	console := tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:       ll,
		TimeFormat:  "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:     !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: replaceAttr(underSystemd),
	})
	slog.SetDefault(slog.New(console))

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	absDataDir, err := filepath.Abs(*dataDir)
	if err != nil {
		return err
	}

	env, err := loadDotEnv(absDataDir)
	if err != nil {
		return err
	}

	// Load server_config.yaml (creates with defaults if missing)
	serverCfg, err := storage.LoadServerConfig(absDataDir)
	if err != nil {
		return fmt.Errorf("failed to load server_config.yaml: %w", err)
	}

	// Override with .env file values if not explicitly set via flags
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	for name, p := range map[string]*string{
		"http":      httpAddr,
		"log-level": logLevel,
		"seq-url":   seqURL,
		"geo-db":    geoDB,
	} {
		if set[name] {
			continue
		}
		if v := env[strings.ToUpper(strings.ReplaceAll(name, "-", "_"))]; v != "" {
			*p = v
		}
	}
	if v := env["LLM_API_KEY"]; v != "" && serverCfg.LLM.APIKey == "" {
		serverCfg.LLM.APIKey = v
	}

	// Normalize addr: ":8080" becomes "localhost:8080"
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	if *seqURL != "" {
		seq, closeSeq := logging.NewSeqHandler(*seqURL, ll)
		defer closeSeq()
		if seq == nil {
			slog.WarnContext(ctx, "Seq logging unavailable", "url", *seqURL)
		} else {
			slog.SetDefault(slog.New(logging.NewMultiHandler(console, seq)))
		}
	}

	store, err := storage.Open(ctx, serverCfg.ResolveDatabasePath(absDataDir))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.ErrorContext(ctx, "Failed to close database", "err", err)
		}
	}()

	ingester, err := ingest.New(store, serverCfg.ResolveImportRoot(absDataDir), serverCfg.IngestWorkers)
	if err != nil {
		return fmt.Errorf("failed to initialize ingester: %w", err)
	}
	defer func() {
		if err := ingester.Close(10 * time.Second); err != nil {
			slog.WarnContext(ctx, "Ingest workers did not stop", "err", err)
		}
	}()

	engine := tabular.NewEngine(tabular.NewCache(tabular.StatModTime, tabular.LoadFile), serverCfg.MaxPageSize)

	var llmClient *llm.Client
	if l := serverCfg.LLM; l.BaseURL != "" {
		llmClient = llm.NewClient(l.BaseURL, l.APIKey, llm.Defaults{
			Model:       l.DefaultModel,
			MaxTokens:   l.MaxTokens,
			Temperature: l.Temperature,
			TopP:        l.TopP,
			TopK:        l.TopK,
		}, l.Timeout)
		slog.InfoContext(ctx, "LLM proxy enabled", "url", l.BaseURL, "model", l.DefaultModel)
	}

	rl := serverCfg.RateLimits
	limiters := ratelimit.NewConfig(rl.ReadPerMin, rl.WritePerMin, rl.LLMPerMin)
	defer limiters.Close()

	// Open IP geolocation database if configured
	var geoChecker *ipgeo.Checker
	if *geoDB != "" {
		geoChecker, err = ipgeo.Open(*geoDB)
		if err != nil {
			return fmt.Errorf("failed to open geo database: %w", err)
		}
		defer func() { _ = geoChecker.Close() }()
		slog.InfoContext(ctx, "IP geolocation enabled", "db", *geoDB)
	}

	m := metrics.New()
	m.GaugeFunc("tabserve_dataset_cache_entries", "Number of parsed datasets held in memory.", func() float64 {
		return float64(engine.Cache().Len())
	})

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	svc := &handlers.Services{
		Engine: engine,
		Store:  store,
		Ingest: ingester,
		LLM:    llmClient,
	}
	buildVersion, _, _, _ := getBuildInfo()
	cfg := &handlers.Config{
		ServerConfig: *serverCfg,
		DataDir:      absDataDir,
		Version:      buildVersion,
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(svc, cfg, limiters, geoChecker, m),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "dataDir", absDataDir, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	// Wait for either context cancellation or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		// Graceful shutdown
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// replaceAttr trims noise from console logs.
func replaceAttr(underSystemd bool) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		// Drop time when running under systemd.
		if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
			return slog.Attr{}
		}
		// Drop localhost IPs (not useful in logs).
		if a.Key == "ip" {
			if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
				return slog.Attr{}
			}
		}
		skip := false
		switch t := a.Value.Any().(type) {
		case string:
			skip = t == ""
		case bool:
			skip = !t
		case uint64:
			skip = t == 0
		case int64:
			skip = t == 0
		case float64:
			skip = t == 0
		case time.Time:
			skip = t.IsZero()
		case time.Duration:
			skip = t == 0
		case nil:
			skip = true
		}
		if skip {
			return slog.Attr{}
		}
		return a
	}
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("tabserve %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// loadDotEnv reads KEY=value pairs from dataDir/.env. A missing file is not an
// error.
func loadDotEnv(dataDir string) (map[string]string, error) {
	env := make(map[string]string)
	path := filepath.Join(dataDir, ".env")
	envContent, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir flag, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return env, nil
		}
		return nil, err
	}

	for line := range strings.SplitSeq(string(envContent), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		if strings.HasPrefix(val, "'") || strings.HasSuffix(val, "'") {
			if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
				return nil, fmt.Errorf("single quotes are not supported for wrapping in .env: %s", line)
			}
			return nil, fmt.Errorf("unbalanced single quotes in .env: %s", line)
		}

		if strings.HasPrefix(val, "\"") {
			unquoted, err := strconv.Unquote(val)
			if err != nil {
				return nil, fmt.Errorf("failed to unquote %s: %w", key, err)
			}
			val = unquoted
		}

		env[key] = val
	}
	return env, nil
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected. This enables seamless
// restarts during development.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
