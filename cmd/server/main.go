package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/auth"
	"attendance-backend/internal/config"
	"attendance-backend/internal/database"
	"attendance-backend/internal/logger"
	"attendance-backend/internal/server"
	"attendance-backend/internal/session"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "[FATAL]", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[FATAL]", err)
		os.Exit(1)
	}
	defer log.Sync()

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	app := server.New(server.Deps{
		Store:          auth.NewStore(db),
		Issuer:         session.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Ledger:         attendance.NewLedger(db),
		Logger:         log,
		CORSOrigins:    cfg.AllowedOrigins(),
		LoginRateLimit: cfg.LoginRateLimit,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	log.Info("server running", zap.String("port", cfg.HTTPPort))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal("listen failed", zap.Error(err))
	}
}
