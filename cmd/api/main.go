package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "findmyroom/internal/adapters/http_server"
	"findmyroom/internal/adapters/nominatim"
	"findmyroom/internal/adapters/observability"
	redisad "findmyroom/internal/adapters/redis"
	"findmyroom/internal/app"
	"findmyroom/internal/shared"
	mysqlrepo "findmyroom/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// cache is optional: listings are served straight from the db without it
	var cache *redisad.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := cache.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; continuing without cache")
			_ = cache.Close()
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// deps
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
	repo := mysqlrepo.New(db)
	var svc *app.ListingService
	if cache != nil {
		svc = app.NewListingService(repo, cache, resolver, cfg.CacheTTL, cfg.Scatter)
	} else {
		svc = app.NewListingService(repo, nil, resolver, cfg.CacheTTL, cfg.Scatter)
	}

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(observability.InitRegistry()))
	srv.MountHandlers(&server.Handlers{L: svc, R: resolver, Scatter: cfg.Scatter})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("geocoder", cfg.GeocoderBase).Bool("scatter", cfg.Scatter).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
