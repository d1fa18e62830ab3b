package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sigmapips/chart-capture/pkg/api"
	"github.com/sigmapips/chart-capture/pkg/cache"
	"github.com/sigmapips/chart-capture/pkg/capture"
	"github.com/sigmapips/chart-capture/pkg/config"
	"github.com/sigmapips/chart-capture/pkg/notify"
	"github.com/sigmapips/chart-capture/pkg/sched"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] chart-capture starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init browser driver and capturer
	driver, err := capture.NewDriver(cfg.Renderer)
	if err != nil {
		log.Fatalf("[FATAL] init renderer: %v", err)
	}
	log.Printf("[INFO] renderer backend: %s", driver.Name())

	var backend capture.Backend = capture.NewCapturer(driver, cfg.Chart.BaseURL, cfg.Chart.DefaultExchange)
	defer func() {
		if err := backend.Close(); err != nil {
			log.Printf("[WARN] close capture backend: %v", err)
		}
	}()

	// Optional Redis cache
	var cached *cache.CachingBackend
	if cfg.Cache.RedisAddr != "" {
		ttl := time.Duration(cfg.Cache.TTL)
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("[WARN] Redis unreachable at %s, caching disabled: %v", cfg.Cache.RedisAddr, err)
			rdb = nil
		} else {
			log.Printf("[INFO] Redis cache enabled at %s (TTL %v)", cfg.Cache.RedisAddr, ttl)
		}
		pingCancel()
		cached = cache.New(rdb, ttl, backend, "chart")
		backend = cached
	}

	// Optional Telegram delivery
	var notifier api.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier = notify.NewTelegramNotifier(cfg.Telegram.BotToken)
		log.Println("[INFO] Telegram delivery enabled")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional cache warmup scheduler
	if cached != nil && len(cfg.Warmup.Pairs) > 0 {
		warmer := sched.NewWarmer(cached, cfg.Warmup.Pairs, cfg.Warmup.MaxConcurrent)
		warmer.SetContext(ctx)
		if err := warmer.Start(cfg.Warmup.Cron); err != nil {
			log.Fatalf("[FATAL] start warmup scheduler: %v", err)
		}
		defer warmer.Stop()

		if os.Getenv("WARMUP_ON_START") == "true" {
			log.Println("[INFO] WARMUP_ON_START enabled, warming cache now")
			go warmer.RunOnce()
		}
	}

	// HTTP server
	router := api.NewRouter(api.NewHandler(backend, notifier))
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		log.Printf("[INFO] listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] http shutdown: %v", err)
	}
	log.Println("[INFO] chart-capture stopped")
}
