package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"findmyroom/internal/domain"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListingService runs the listing flows that depend on location resolution.
type ListingService struct {
	repo     domain.ListingRepository
	cache    domain.Cache // optional
	cacheTTL time.Duration
	loc      *LocationResolver
	scatter  bool

	now   func() time.Time
	newID func() string
}

func NewListingService(r domain.ListingRepository, c domain.Cache, loc *LocationResolver, ttl time.Duration, scatter bool) *ListingService {
	return &ListingService{
		repo:     r,
		cache:    c,
		cacheTTL: ttl,
		loc:      loc,
		scatter:  scatter,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create stores a new listing. An address that can't be resolved is not an
// error: the listing is saved without coordinates.
func (s *ListingService) Create(ctx context.Context, ownerID string, in domain.NewListing) (domain.Listing, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.Listing{}, fmt.Errorf("%w: owner is required", domain.ErrInvalid)
	}
	if err := in.Validate(); err != nil {
		return domain.Listing{}, err
	}

	l := in.Listing(s.newID(), ownerID, s.now().UTC())
	l.SetCoords(s.loc.Resolve(ctx, l.GeoQuery(), s.scatter))

	if err := s.repo.InsertListing(ctx, l); err != nil {
		return domain.Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	log.Info().Str("id", l.ID).Str("owner", ownerID).Bool("located", l.Located()).Msg("listing created")
	return l, nil
}

// Update applies p to the listing owned by ownerID. The location is resolved
// again only when state, district or locality changed, so saving an unchanged
// address keeps the stored pin. A failed resolution keeps the previous pin.
func (s *ListingService) Update(ctx context.Context, id, ownerID string, p domain.ListingPatch) (domain.Listing, error) {
	if err := p.Validate(); err != nil {
		return domain.Listing{}, err
	}
	cur, err := s.owned(ctx, id, ownerID)
	if err != nil {
		return domain.Listing{}, err
	}

	next := p.Apply(cur)
	next.UpdatedAt = s.now().UTC()

	if domain.LocationChanged(cur, next) {
		res, current := s.loc.ResolveLatest(ctx, listingKey(id), next.GeoQuery(), s.scatter)
		if !current {
			return domain.Listing{}, fmt.Errorf("listing %s: %w", id, domain.ErrSuperseded)
		}
		if res != nil {
			next.SetCoords(res)
		} else {
			log.Info().Str("id", id).Msg("new address unresolved; keeping previous coordinates")
		}
	}

	if err := s.repo.UpdateListing(ctx, next); err != nil {
		return domain.Listing{}, fmt.Errorf("update listing %s: %w", id, err)
	}
	s.invalidate(ctx, id)
	return next, nil
}

// Relocate resolves coordinates for a listing stored without them. It reports
// whether coordinates were written. Only the pin is written, and only while the
// listing still has no pin and the address it was resolved from, so edits
// landing during the lookup are kept.
func (s *ListingService) Relocate(ctx context.Context, id string) (bool, error) {
	l, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return false, err
	}
	if l.Located() {
		return false, nil
	}
	at := l.GeoQuery()
	res, current := s.loc.ResolveLatest(ctx, listingKey(id), at, s.scatter)
	if !current || res == nil {
		return false, nil
	}
	ok, err := s.repo.SetCoords(ctx, id, at, *res, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("set coords of listing %s: %w", id, err)
	}
	if !ok {
		log.Info().Str("id", id).Msg("listing changed during lookup; pin not written")
		return false, nil
	}
	s.invalidate(ctx, id)
	return true, nil
}

func (s *ListingService) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := s.owned(ctx, id, ownerID); err != nil {
		return err
	}
	if err := s.repo.DeleteListing(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	log.Info().Str("id", id).Str("owner", ownerID).Msg("listing deleted")
	return nil
}

func (s *ListingService) Get(ctx context.Context, id string) (domain.Listing, error) {
	key := listingKey(id)
	var l domain.Listing
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &l); ok {
			return l, nil
		}
	}
	l, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, l, int(s.cacheTTL.Seconds()))
	}
	return l, nil
}

// List returns listings newest first, optionally narrowed to an owner, a state
// and a district.
func (s *ListingService) List(ctx context.Context, q domain.ListingsQuery) (domain.ListingsPage, error) {
	q.OwnerID = strings.TrimSpace(q.OwnerID)
	q.State = strings.TrimSpace(q.State)
	q.District = strings.TrimSpace(q.District)
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultListLimit
	case q.Limit > MaxListLimit:
		q.Limit = MaxListLimit
	}
	return s.repo.ListListings(ctx, q)
}

// Mine returns the listings owned by ownerID, newest first.
func (s *ListingService) Mine(ctx context.Context, ownerID string, limit int) (domain.ListingsPage, error) {
	if strings.TrimSpace(ownerID) == "" {
		return domain.ListingsPage{}, fmt.Errorf("%w: owner is required", domain.ErrInvalid)
	}
	return s.List(ctx, domain.ListingsQuery{OwnerID: ownerID, Limit: limit})
}

// Recent returns the newest listings regardless of location.
func (s *ListingService) Recent(ctx context.Context, limit int) (domain.ListingsPage, error) {
	return s.List(ctx, domain.ListingsQuery{Limit: limit})
}

func (s *ListingService) owned(ctx context.Context, id, ownerID string) (domain.Listing, error) {
	l, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if ownerID == "" || l.OwnerID != ownerID {
		return domain.Listing{}, fmt.Errorf("listing %s: %w", id, domain.ErrForbidden)
	}
	return l, nil
}

func (s *ListingService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, listingKey(id)); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("id", id).Msg("cache invalidation failed")
	}
}

func listingKey(id string) string { return "listing:" + id }
