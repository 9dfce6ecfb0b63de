package domain

import "strings"

// GeoQuery is a coarse, user-entered administrative address.
type GeoQuery struct {
	State    string
	District string
	Locality string // optional
}

// Normalize trims surrounding whitespace from every field.
func (q GeoQuery) Normalize() GeoQuery {
	return GeoQuery{
		State:    strings.TrimSpace(q.State),
		District: strings.TrimSpace(q.District),
		Locality: strings.TrimSpace(q.Locality),
	}
}

// Resolvable reports whether the query carries the fields every lookup needs.
func (q GeoQuery) Resolvable() bool {
	n := q.Normalize()
	return n.State != "" && n.District != ""
}

// GeoResult is a WGS84 coordinate in decimal degrees.
type GeoResult struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// GeoCandidate is one entry of a provider's ranked answer to a free-text query.
type GeoCandidate struct {
	Lat, Lon    float64
	DisplayName string
}
