// Package main is the entry point: read configuration from the
// environment, build the logger, hand both to the server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sakif/appdeck/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	port := envInt(logger, "PORT", 8080)

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data/appdeck.db"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// JWT_SECRET is mandatory — every authenticated surface depends on it.
	// Generate one with: openssl rand -hex 32
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}

	cfg := server.Config{
		Port:                port,
		DBPath:              dbPath,
		JWTSecret:           jwtSecret,
		GitHubClientID:      os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret:  os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:   githubCallbackURL,
		TrendingWindow:      time.Duration(envInt(logger, "TRENDING_WINDOW_HOURS", 0)) * time.Hour,
		TrendingMinInstalls: envInt(logger, "TRENDING_MIN_INSTALLS", 0),
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// envInt reads an integer environment variable; a malformed value is fatal
// rather than silently defaulted.
func envInt(logger *slog.Logger, name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logger.Error("invalid integer environment variable",
			slog.String("name", name),
			slog.String("value", raw),
		)
		os.Exit(1)
	}
	return value
}
