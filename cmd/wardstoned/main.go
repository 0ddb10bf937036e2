package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"wardstone.gg/internal/catalog"
	"wardstone.gg/internal/config"
	"wardstone.gg/internal/keeper"
	"wardstone.gg/internal/persistence/eventlog"
	"wardstone.gg/internal/persistence/warddb"
	"wardstone.gg/internal/transport/observer"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/wardstone.yaml", "config path")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		addr       = flag.String("addr", "", "admin http listen address (overrides config)")
		watch      = flag.Bool("watch", false, "watch config and catalog files, hot-reload on change")
		noEventlog = flag.Bool("no-eventlog", false, "disable the compressed event log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[wardstoned] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
		cfg.EventLogDir = filepath.Join(*dataDir, "events")
	}
	if *addr != "" {
		cfg.AdminAddr = *addr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	cat, err := catalog.LoadValidated(cfg.CatalogPath, cfg.CatalogSchemaPath)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	logger.Printf("catalog: %d block types digest=%s", len(cat.Keys), cat.Digest)

	db, err := warddb.Open(cfg.DBPath())
	if err != nil {
		logger.Fatalf("open ward db: %v", err)
	}
	defer db.Close()
	if err := db.EnsureWorlds(ctx, cfg.EnabledWorlds()); err != nil {
		logger.Fatalf("ensure worlds: %v", err)
	}

	mirrorRT, err := buildMirrorRuntime(cfg.EventLogDir, logger)
	if err != nil {
		logger.Fatalf("event log mirror: %v", err)
	}
	defer mirrorRT.Close()
	if mirrorRT.enabled {
		logger.Printf("event log mirror enabled")
	}

	var audit *eventlog.AuditLogger
	var miglog *eventlog.MigrationLogger
	if !*noEventlog {
		logOpts := eventlog.LoggerOptions{OnClose: mirrorRT.Enqueue}
		audit = eventlog.NewAuditLoggerWithOptions(cfg.EventLogDir, logOpts)
		miglog = eventlog.NewMigrationLoggerWithOptions(cfg.EventLogDir, logOpts)
		if cfg.EventLogRetainDays > 0 {
			go sweepEventLogs(ctx, cfg.EventLogDir, time.Duration(cfg.EventLogRetainDays)*24*time.Hour, logger)
		}
	}
	defer audit.Close()
	defer miglog.Close()

	hub := observer.NewHub(logger)

	kpr, err := keeper.New(keeper.Options{
		Log:            logger,
		Store:          db,
		Directory:      db,
		Catalog:        cat,
		Grants:         cfg.GrantTable(),
		Audit:          audit,
		Migration:      miglog,
		Events:         hub,
		StatePath:      cfg.StatePath(),
		Worlds:         cfg.EnabledWorlds(),
		AsyncDirectory: cfg.AsyncDirectoryLoad,
	})
	if err != nil {
		logger.Fatalf("keeper: %v", err)
	}
	if err := kpr.Build(ctx); err != nil {
		logger.Fatalf("build caches: %v", err)
	}
	if _, _, err := kpr.RunMigrationIfPending(ctx, false); err != nil {
		logger.Fatalf("owner migration: %v", err)
	}

	if *watch {
		w, err := config.NewWatcher(logger, cfg.CatalogPath)
		if err != nil {
			logger.Fatalf("catalog watcher: %v", err)
		}
		defer w.Close()
		w.Start()
		go watchCatalog(ctx, w, cfg, kpr, logger)
		logger.Printf("watching %s", cfg.CatalogPath)
	}

	// Observer feed on its own loopback listener.
	obsSrv := observer.NewServer(kpr, hub, logger)
	obsMux := http.NewServeMux()
	obsMux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	obsMux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())
	observerHTTP := &http.Server{
		Addr:              cfg.ObserverAddr,
		Handler:           obsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = observerHTTP.Shutdown(ctx2)
	}()
	go func() {
		logger.Printf("observer listening on %s", cfg.ObserverAddr)
		if err := observerHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("observer ListenAndServe: %v", err)
		}
	}()

	api := &adminAPI{keeper: kpr, mirror: mirrorRT, log: logger}
	mux := api.routes()
	if envBool("WARDSTONE_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (WARDSTONE_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("admin listening on %s", cfg.AdminAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// sweepEventLogs deletes expired event log files once at startup and then
// daily until ctx is cancelled.
func sweepEventLogs(ctx context.Context, dir string, retain time.Duration, logger *log.Logger) {
	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		n, err := eventlog.Sweep(dir, retain)
		if err != nil {
			logger.Printf("event log sweep: %v", err)
		} else if n > 0 {
			logger.Printf("event log sweep: removed %d expired files", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// watchCatalog reloads the catalog on file change. A broken edit keeps the
// previous catalog active.
func watchCatalog(ctx context.Context, w *config.Watcher, cfg config.Config, kpr *keeper.Keeper, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Change():
			cat, err := catalog.LoadValidated(cfg.CatalogPath, cfg.CatalogSchemaPath)
			if err != nil {
				logger.Printf("catalog reload rejected: %v", err)
				continue
			}
			kpr.ReplaceCatalog(cat)
		case path := <-w.Remove():
			logger.Printf("watched file removed: %s", path)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
