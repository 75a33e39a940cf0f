package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xtream-bridge/work/cache"
	"xtream-bridge/work/client"
	"xtream-bridge/work/config"
	"xtream-bridge/work/fetcher"
	"xtream-bridge/work/handlers"
	"xtream-bridge/work/logger"
	"xtream-bridge/work/proxy"
	"xtream-bridge/work/store"
	"xtream-bridge/work/utils"
)

var Version = "v0.1.0"

func main() {
	configPath := flag.String("config", "/settings/config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("opening user store: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Seed(cfg.UsersSeedPath); err != nil {
		logger.Error("seeding users: %v", err)
		os.Exit(1)
	}

	if n, err := db.CountUsers(); err == nil && n == 0 {
		logger.Warn("no user accounts configured, every request will be rejected")
	}
	if cfg.M3UURL == "" {
		logger.Warn("no default m3uUrl configured, only accounts with their own playlist URL will work")
	}

	httpClient := client.New(cfg)
	fetch := fetcher.New(httpClient, cfg)
	snapshots := cache.NewSnapshots(fetch, cfg)
	epgCache := cache.NewEPG(fetch, cfg)
	auth := store.NewAuthenticator(db)
	resolver := proxy.New(httpClient, cfg)

	workerPool, err := ants.NewPool(cfg.WorkerThreads, ants.WithPreAlloc(true))
	if err != nil {
		logger.Error("creating worker pool: %v", err)
		os.Exit(1)
	}
	defer workerPool.Release()

	refresher := newRefresher(cfg, db, snapshots, workerPool)
	refresher.warm()
	stopRefresh := refresher.start()
	defer stopRefresh()

	router := mux.NewRouter()
	handlers.New(cfg, snapshots, epgCache, auth, resolver).Register(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	logger.Info("starting xtream-bridge %s", Version)
	logger.Info("  - listen address: %s", cfg.ListenAddr)
	logger.Info("  - base URL: %s", cfg.BaseURL)
	logger.Info("  - playlist: %s", utils.LogURL(cfg, cfg.M3UURL))
	logger.Info("  - playlist TTL: %s, EPG TTL: %s", cfg.PlaylistTTL, cfg.EPGTTL)
	logger.Info("  - refresh interval: %s", cfg.RefreshInterval)
	logger.Info("  - worker threads: %d", cfg.WorkerThreads)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed: %v", err)
		os.Exit(1)
	}
}
