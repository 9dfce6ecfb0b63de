package domain

import (
	"context"
	"time"
)

type ListingRepository interface {
	// Write paths
	InsertListing(ctx context.Context, l Listing) error
	UpdateListing(ctx context.Context, l Listing) error
	DeleteListing(ctx context.Context, id string) error
	// SetCoords stores res on a listing that is still unlocated and still
	// carries the address in at. It reports false when either no longer holds.
	SetCoords(ctx context.Context, id string, at GeoQuery, res GeoResult, updatedAt time.Time) (bool, error)

	// Read paths
	GetListing(ctx context.Context, id string) (Listing, error)
	ListListings(ctx context.Context, q ListingsQuery) (ListingsPage, error)
	ListUnlocated(ctx context.Context, limit int) ([]Listing, error)
}

// GeocodingProvider answers a free-text query with candidates ranked by the provider.
// An empty slice with a nil error means "no match".
type GeocodingProvider interface {
	Search(ctx context.Context, q string) ([]GeoCandidate, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type ListingsQuery struct {
	OwnerID  string
	State    string
	District string
	Limit    int
}

type ListingsPage struct {
	Items []Listing `json:"items"`
}
