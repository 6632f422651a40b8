package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"decor-inventory-api/internal"
	"decor-inventory-api/internal/config"
)

func main() {
	// Missing .env is fine, real deployments set the environment directly.
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "decor-inventory-api").Logger()
	if os.Getenv("ENVIRONMENT") != "production" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}

	cfg, err := config.LoadAndValidate()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration error")
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		logger.Fatal().Msg("DB_DSN environment variable is required")
	}

	srv := internal.NewServer(dsn, cfg)
	srv.Log = logger
	defer srv.Close(context.Background())

	addr := ":" + getEnv("PORT", "8080")
	logger.Info().
		Str("addr", addr).
		Str("jwt_issuer", cfg.JWTIssuer).
		Dur("jwt_expiry", cfg.JWTExpiry).
		Msg("starting decor inventory server")

	if err := http.ListenAndServe(addr, srv.Router); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
