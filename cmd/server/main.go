package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/google/logger"

	"cocktail-voucher/internal/config"
	"cocktail-voucher/internal/db"
	"cocktail-voucher/internal/handlers"
	"cocktail-voucher/internal/lock"
	"cocktail-voucher/internal/services"
	"cocktail-voucher/internal/session"
)

func main() {
	defer logger.Init("cocktail-voucher", true, false, io.Discard).Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 0. Load Config (.env + environment)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// 1. Init Database
	conn, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, cfg.DatabaseAuthToken)
	if err != nil {
		logger.Fatalf("Failed to init DB: %v", err)
	}
	defer conn.Close()

	if cfg.AutoMigrate {
		if err := db.CreateTables(ctx, conn); err != nil {
			logger.Fatalf("Failed to create tables: %v", err)
		}
	}
	logger.Infof("Database initialized (%s)", cfg.DatabaseDriver)

	repo := db.NewRepository(conn, cfg.DatabaseDriver)

	// 2. Per-participant lock
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		rl, err := lock.NewRedisLocker(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.LockTTL)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rl.Close()
		locker = rl
		logger.Infof("Using redis locks at %s", cfg.RedisAddr)
	}

	// 3. Init Telegram Bot
	var notifier services.Notifier = services.NopNotifier{}
	if cfg.TelegramToken != "" {
		tn, err := services.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warningf("Failed to init Telegram bot: %v", err)
		} else {
			notifier = tn
			go tn.Listen(ctx)
		}
	} else {
		logger.Info("TELEGRAM_TOKEN not set. Staff notifications disabled.")
	}

	vouchers := services.NewVoucherService(repo, locker, notifier)

	// 4. Sessions
	sessions := session.NewStore()
	go janitor(ctx, sessions, cfg.SessionTTL)

	// 5. Setup Router
	h, err := handlers.New(vouchers, sessions, cfg.CookieSecure)
	if err != nil {
		logger.Fatalf("Failed to load templates: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	// 6. Start
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server running on http://localhost:%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}
}

// janitor drops sessions that have been idle for longer than ttl.
func janitor(ctx context.Context, sessions *session.Store, ttl time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.CleanUpInactive(ttl)
		}
	}
}
