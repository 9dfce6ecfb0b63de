package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	GeocoderBase      string
	GeocoderUA        string
	GeocoderRPS       float64
	GeocoderCountries string // ISO codes passed to the provider, e.g. "in"
	GeocoderLimit     int    // candidates requested per tier
	TierTimeout       time.Duration
	Country           string // appended to every tier query
	Scatter           bool

	BackfillWorkers int
	BackfillBatch   int
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Real environment variables win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env present but unreadable")
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/findmyroom?parseTime=true&charset=utf8mb4&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		GeocoderBase:      env("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUA:        env("GEOCODER_USER_AGENT", "findmyroom/1.0"),
		GeocoderRPS:       atof("GEOCODER_RPS", 1),
		GeocoderCountries: env("GEOCODER_COUNTRY_CODES", "in"),
		GeocoderLimit:     atoi("GEOCODER_LIMIT", 5),
		TierTimeout:       time.Duration(atoi("GEOCODER_TIER_TIMEOUT_MS", 5000)) * time.Millisecond,
		Country:           env("GEOCODER_COUNTRY", "India"),
		Scatter:           boolean("LOCATION_SCATTER", true),

		BackfillWorkers: atoi("BACKFILL_WORKERS", 2),
		BackfillBatch:   atoi("BACKFILL_BATCH", 200),
	}
	if !c.Scatter {
		log.Warn().Msg("LOCATION_SCATTER is off; exact geocoded positions will be stored")
	}
	if c.GeocoderRPS > 1 && strings.Contains(c.GeocoderBase, "nominatim.openstreetmap.org") {
		log.Warn().Float64("rps", c.GeocoderRPS).Msg("public Nominatim allows at most 1 request per second")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer; using default")
	}
	return def
}

func atof(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not a number; using default")
	}
	return def
}

func boolean(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not a boolean; using default")
	}
	return def
}
