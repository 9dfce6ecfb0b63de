package app

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"findmyroom/internal/adapters/observability"
	"findmyroom/internal/domain"
)

const (
	// ScatterDegrees bounds the random offset applied on each axis (~300 m).
	ScatterDegrees = 0.003

	DefaultTierTimeout = 5 * time.Second
	DefaultCountry     = "India"
)

// tier builds one progressively coarser query; an empty string skips it.
type tier struct {
	name  string
	query func(q domain.GeoQuery, country string) string
}

var tiers = []tier{
	{"locality", func(q domain.GeoQuery, country string) string {
		if q.Locality == "" {
			return ""
		}
		return strings.Join([]string{q.Locality, q.District, q.State, country}, ", ")
	}},
	{"district", func(q domain.GeoQuery, country string) string {
		return strings.Join([]string{q.District, q.State, country}, ", ")
	}},
	{"state", func(q domain.GeoQuery, country string) string {
		return strings.Join([]string{q.State, country}, ", ")
	}},
}

// LocationResolver turns a coarse administrative address into an approximate,
// deliberately imprecise map coordinate.
type LocationResolver struct {
	provider    domain.GeocodingProvider
	country     string
	tierTimeout time.Duration
	seq         *Sequencer

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand // nil: package-level source
}

type ResolverOption func(*LocationResolver)

// WithRand injects the scatter source; tests use a seeded one to assert exact output.
func WithRand(r *rand.Rand) ResolverOption { return func(lr *LocationResolver) { lr.rnd = r } }

func WithTierTimeout(d time.Duration) ResolverOption {
	return func(lr *LocationResolver) {
		if d > 0 {
			lr.tierTimeout = d
		}
	}
}

func WithCountry(c string) ResolverOption {
	return func(lr *LocationResolver) {
		if c = strings.TrimSpace(c); c != "" {
			lr.country = c
		}
	}
}

func NewLocationResolver(p domain.GeocodingProvider, opts ...ResolverOption) *LocationResolver {
	lr := &LocationResolver{
		provider:    p,
		country:     DefaultCountry,
		tierTimeout: DefaultTierTimeout,
		seq:         NewSequencer(),
	}
	for _, o := range opts {
		o(lr)
	}
	return lr
}

// Resolve walks the tiers from most to least specific and returns the first
// candidate of the first tier that has one, scattered when scatter is set.
// It returns nil when no tier produced a candidate; provider failures are
// logged and count as an empty tier.
func (r *LocationResolver) Resolve(ctx context.Context, q domain.GeoQuery, scatter bool) *domain.GeoResult {
	q = q.Normalize()
	if q.State == "" || q.District == "" {
		observability.ObserveResolution("unresolved")
		return nil
	}

	res := r.lookup(ctx, q)
	if res == nil {
		observability.ObserveResolution("unresolved")
		log.Info().Str("state", q.State).Str("district", q.District).Str("locality", q.Locality).
			Msg("location unresolved after all tiers")
		return nil
	}
	observability.ObserveResolution("resolved")
	if scatter {
		r.scatter(res)
	}
	return res
}

// ResolveLatest is Resolve tagged with a request token for key. current is
// false when another ResolveLatest for the same key began after this one; the
// caller must then drop the result.
func (r *LocationResolver) ResolveLatest(ctx context.Context, key string, q domain.GeoQuery, scatter bool) (res *domain.GeoResult, current bool) {
	tok := r.seq.Begin(key)
	res = r.Resolve(ctx, q, scatter)
	if !r.seq.End(key, tok) {
		observability.ObserveResolution("superseded")
		log.Debug().Str("key", key).Uint64("token", tok).Msg("dropping superseded resolution")
		return nil, false
	}
	return res, true
}

func (r *LocationResolver) lookup(ctx context.Context, q domain.GeoQuery) *domain.GeoResult {
	for _, t := range tiers {
		query := t.query(q, r.country)
		if query == "" {
			observability.ObserveGeocodeTier(t.name, "skipped")
			continue
		}
		if ctx.Err() != nil {
			// caller gave up; remaining tiers can't be delivered anyway
			return nil
		}

		tctx, cancel := context.WithTimeout(ctx, r.tierTimeout)
		cands, err := r.provider.Search(tctx, query)
		cancel()

		switch {
		case err != nil:
			observability.ObserveGeocodeTier(t.name, "error")
			log.Warn().Err(err).Str("kind", observability.LabelErr(err)).Str("tier", t.name).Str("query", query).
				Msg("geocoding tier failed")
		case len(cands) == 0:
			observability.ObserveGeocodeTier(t.name, "empty")
			log.Debug().Str("tier", t.name).Str("query", query).Msg("geocoding tier returned no match")
		default:
			observability.ObserveGeocodeTier(t.name, "hit")
			return &domain.GeoResult{Latitude: cands[0].Lat, Longitude: cands[0].Lon}
		}
	}
	return nil
}

func (r *LocationResolver) scatter(res *domain.GeoResult) {
	r.mu.Lock()
	u1, u2 := r.uniform(), r.uniform()
	r.mu.Unlock()
	res.Latitude = jitter(res.Latitude, u1)
	res.Longitude = jitter(res.Longitude, u2)
}

func (r *LocationResolver) uniform() float64 {
	if r.rnd == nil {
		return rand.Float64()
	}
	return r.rnd.Float64()
}

// maxOffset leaves room for the final rounding, which moves a value by up to
// half a micro-degree.
const maxOffset = ScatterDegrees - 5e-7

// jitter maps u in [0,1) to an offset in [-ScatterDegrees, ScatterDegrees)
// and rounds the shifted value to 6 decimal places. The result stays within
// ScatterDegrees of v whatever v's precision.
func jitter(v, u float64) float64 {
	off := math.Max(-maxOffset, math.Min(maxOffset, (u*2-1)*ScatterDegrees))
	return round6(v + off)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
