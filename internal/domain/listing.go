package domain

import (
	"fmt"
	"strings"
	"time"
)

// BHKTypes are the unit sizes a listing may advertise.
var BHKTypes = []string{"1RK", "1BHK", "2BHK", "3BHK", "4BHK", "5BHK+"}

type Listing struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	BHKType     string    `json:"bhk_type"`
	Price       float64   `json:"price"`
	State       string    `json:"state"`
	District    string    `json:"district"`
	Locality    string    `json:"locality,omitempty"`
	Address     string    `json:"address,omitempty"`
	Lat         *float64  `json:"latitude"`  // nil together with Lon when unresolved
	Lon         *float64  `json:"longitude"` // nil together with Lat when unresolved
	ImageURLs   []string  `json:"image_urls"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (l Listing) GeoQuery() GeoQuery {
	return GeoQuery{State: l.State, District: l.District, Locality: l.Locality}
}

// Located reports whether both coordinates are set.
func (l Listing) Located() bool { return l.Lat != nil && l.Lon != nil }

// SetCoords stores r on the listing; a nil r clears both coordinates.
func (l *Listing) SetCoords(r *GeoResult) {
	if r == nil {
		l.Lat, l.Lon = nil, nil
		return
	}
	lat, lon := r.Latitude, r.Longitude
	l.Lat, l.Lon = &lat, &lon
}

// NewListing is the payload of a listing creation.
type NewListing struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	BHKType     string   `json:"bhk_type"`
	Price       float64  `json:"price"`
	State       string   `json:"state"`
	District    string   `json:"district"`
	Locality    string   `json:"locality"`
	Address     string   `json:"address"`
	ImageURLs   []string `json:"image_urls"`
}

// Listing builds the stored record for n; coordinates are left unset.
func (n NewListing) Listing(id, ownerID string, now time.Time) Listing {
	return Listing{
		ID:          id,
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(n.Title),
		Description: strings.TrimSpace(n.Description),
		BHKType:     canonicalBHK(n.BHKType),
		Price:       n.Price,
		State:       strings.TrimSpace(n.State),
		District:    strings.TrimSpace(n.District),
		Locality:    strings.TrimSpace(n.Locality),
		Address:     strings.TrimSpace(n.Address),
		ImageURLs:   nonEmpty(n.ImageURLs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (n NewListing) Validate() error {
	var problems []string
	if strings.TrimSpace(n.State) == "" {
		problems = append(problems, "state is required")
	}
	if strings.TrimSpace(n.District) == "" {
		problems = append(problems, "district is required")
	}
	if strings.TrimSpace(n.Locality) == "" {
		problems = append(problems, "locality is required")
	}
	if canonicalBHK(n.BHKType) == "" {
		problems = append(problems, "bhk_type must be one of "+strings.Join(BHKTypes, ", "))
	}
	if n.Price <= 0 {
		problems = append(problems, "price must be greater than zero")
	}
	if len(nonEmpty(n.ImageURLs)) == 0 {
		problems = append(problems, "at least one image is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ListingPatch carries the fields of an edit; nil fields are left unchanged.
type ListingPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	BHKType     *string   `json:"bhk_type"`
	Price       *float64  `json:"price"`
	State       *string   `json:"state"`
	District    *string   `json:"district"`
	Locality    *string   `json:"locality"`
	Address     *string   `json:"address"`
	ImageURLs   *[]string `json:"image_urls"`
}

func (p ListingPatch) Validate() error {
	var problems []string
	blank := func(s *string) bool { return s != nil && strings.TrimSpace(*s) == "" }
	if blank(p.State) {
		problems = append(problems, "state cannot be empty")
	}
	if blank(p.District) {
		problems = append(problems, "district cannot be empty")
	}
	if blank(p.Locality) {
		problems = append(problems, "locality cannot be empty")
	}
	if p.BHKType != nil && canonicalBHK(*p.BHKType) == "" {
		problems = append(problems, "bhk_type must be one of "+strings.Join(BHKTypes, ", "))
	}
	if p.Price != nil && *p.Price <= 0 {
		problems = append(problems, "price must be greater than zero")
	}
	if p.ImageURLs != nil && len(nonEmpty(*p.ImageURLs)) == 0 {
		problems = append(problems, "at least one image is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Apply returns a copy of l with the patch applied.
func (p ListingPatch) Apply(l Listing) Listing {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&l.Title, p.Title)
	set(&l.Description, p.Description)
	if p.BHKType != nil {
		l.BHKType = canonicalBHK(*p.BHKType)
	}
	set(&l.State, p.State)
	set(&l.District, p.District)
	set(&l.Locality, p.Locality)
	set(&l.Address, p.Address)
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.ImageURLs != nil {
		l.ImageURLs = nonEmpty(*p.ImageURLs)
	}
	return l
}

// LocationChanged reports whether a and b differ in any geocoded field.
func LocationChanged(a, b Listing) bool {
	return a.GeoQuery().Normalize() != b.GeoQuery().Normalize()
}

// canonicalBHK returns the BHKTypes entry matching s case-insensitively, or "".
func canonicalBHK(s string) string {
	for _, t := range BHKTypes {
		if strings.EqualFold(strings.TrimSpace(s), t) {
			return t
		}
	}
	return ""
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
