package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"zoolanding/quickstats/internal/config"
	"zoolanding/quickstats/internal/server"
	"zoolanding/quickstats/internal/stats"
	"zoolanding/quickstats/internal/store"
	"zoolanding/quickstats/internal/tls"
)

func main() {
	// Local development reads STATS_BUCKET_NAME etc. from a .env file.
	_ = godotenv.Load()

	// Parse command line flags and get configuration
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal().Err(err).Msg("error parsing configuration")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	// Set up the TLS certificate if needed
	if cfg.TLS.Enabled && cfg.TLS.GenerateCert {
		if err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil {
			log.Fatal().Err(err).Msg("failed to set up TLS certificate")
		}
	}

	// Create the document store
	st, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create document store")
	}
	defer closeStore()

	// Create the update service and HTTP server
	service := stats.NewService(st, cfg.MaxRetries, cfg.DryRun)
	statsServer := server.NewStatsServer(cfg, service, st)
	router := statsServer.SetupRoutes()

	// Start server with or without TLS
	addr := fmt.Sprintf(":%d", cfg.Port)
	if cfg.TLS.Enabled {
		log.Info().Str("addr", fmt.Sprintf("https://localhost%s", addr)).
			Str("backend", cfg.Store.Backend).
			Str("bucket", st.Bucket()).
			Msg("stats server running")
		log.Fatal().Err(http.ListenAndServeTLS(addr, cfg.TLS.CertFile, cfg.TLS.KeyFile, router)).Msg("server stopped")
	} else {
		log.Info().Str("addr", fmt.Sprintf("http://localhost%s", addr)).
			Str("backend", cfg.Store.Backend).
			Str("bucket", st.Bucket()).
			Msg("stats server running")
		log.Fatal().Err(http.ListenAndServe(addr, router)).Msg("server stopped")
	}
}

// buildStore constructs the configured store backend. The returned func
// releases backend resources (the local store's filesystem watcher).
func buildStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "s3":
		s, err := store.NewS3Store(context.Background(), cfg.Store.Bucket, cfg.Store.Region)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "local":
		s, err := store.NewLocalStore(cfg.Store.RootDir)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory":
		return store.NewMemoryStore(cfg.Store.Bucket), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
