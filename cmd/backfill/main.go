package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"findmyroom/internal/adapters/nominatim"
	"findmyroom/internal/adapters/observability"
	redisad "findmyroom/internal/adapters/redis"
	"findmyroom/internal/app"
	"findmyroom/internal/shared"
	mysqlrepo "findmyroom/internal/storage/mysql"
)

// backfill resolves coordinates for listings saved while the geocoder was
// unavailable, one batch per run.
func main() {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("geocoder", cfg.GeocoderBase).
		Int("workers", cfg.BackfillWorkers).
		Int("batch", cfg.BackfillBatch).
		Msg("backfill starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	geo, err := nominatim.New(cfg.GeocoderBase, cfg.GeocoderUA, cfg.GeocoderRPS,
		nominatim.WithCountryCodes(cfg.GeocoderCountries),
		nominatim.WithLimit(cfg.GeocoderLimit),
		// a tier never outlives its own deadline; the client bound matches it
		nominatim.WithHTTPClient(&http.Client{Timeout: cfg.TierTimeout}))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize geocoder client")
	}
	resolver := app.NewLocationResolver(geo,
		app.WithTierTimeout(cfg.TierTimeout),
		app.WithCountry(cfg.Country))

	// evict cached views of the listings we touch, when redis is around
	repo := mysqlrepo.New(db)
	svc := app.NewListingService(repo, nil, resolver, cfg.CacheTTL, cfg.Scatter)
	if cfg.RedisAddr != "" {
		cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer cache.Close()
		if err := cache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; cached listings expire on their own")
		} else {
			svc = app.NewListingService(repo, cache, resolver, cfg.CacheTTL, cfg.Scatter)
		}
	}

	rep, err := svc.Backfill(ctx, cfg.BackfillWorkers, cfg.BackfillBatch)
	if err != nil {
		log.Error().Err(err).Msg("backfill interrupted")
	}
	log.Info().
		Int("scanned", rep.Scanned).
		Int("located", rep.Located).
		Int("unresolved", rep.Unresolved).
		Int("failed", rep.Failed).
		Msg("backfill completed")
}
