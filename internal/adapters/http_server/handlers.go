// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"findmyroom/internal/app"
	"findmyroom/internal/domain"
)

// maxBody caps JSON request bodies; listings carry URLs, not images.
const maxBody = 64 << 10

type Handlers struct {
	L       *app.ListingService
	R       *app.LocationResolver
	Scatter bool // default for /v1/geocode when the query doesn't say
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/geocode", h.geocode)

	s.mux.Route("/v1/listings", func(r chi.Router) {
		r.Get("/", h.listListings)
		r.Get("/{id}", h.getListing)
		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Post("/", h.createListing)
			r.Patch("/{id}", h.updateListing)
			r.Delete("/{id}", h.deleteListing)
		})
	})

	s.mux.With(RequireUser).Get("/v1/me/listings", h.myListings)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeErr maps service errors onto problem responses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalid):
		writeProblem(w, http.StatusBadRequest, "Invalid input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "listing not found")
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", "you can only change your own listings")
	case errors.Is(err, domain.ErrSuperseded):
		writeProblem(w, http.StatusConflict, "Superseded", "a newer edit of this listing is in progress")
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return false
	}
	return true
}

// GET /v1/geocode?state=&district=&locality=&scatter=&key=
//
// key is an optional client-chosen id (a form session, say). When a later
// request with the same key starts before this one finishes, this one answers
// 409 so the client never applies a stale pin.
func (h *Handlers) geocode(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := domain.GeoQuery{State: qs.Get("state"), District: qs.Get("district"), Locality: qs.Get("locality")}
	if !q.Resolvable() {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "state and district are required")
		return
	}
	scatter := h.Scatter
	if s := qs.Get("scatter"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid query", "scatter must be a boolean")
			return
		}
		scatter = b
	}

	var res *domain.GeoResult
	if key := strings.TrimSpace(qs.Get("key")); key != "" {
		var current bool
		res, current = h.R.ResolveLatest(r.Context(), "geocode:"+key, q, scatter)
		if !current {
			writeProblem(w, http.StatusConflict, "Superseded", "a newer lookup with the same key was issued")
			return
		}
	} else {
		res = h.R.Resolve(r.Context(), q, scatter)
	}

	if res == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "location unresolved")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) listListings(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := domain.ListingsQuery{State: qs.Get("state"), District: qs.Get("district")}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	q.Limit = limit
	if q.District != "" && strings.TrimSpace(q.State) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "district filter requires state")
		return
	}

	out, err := h.L.List(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /v1/me/listings: the caller's own listings, for the owner dashboard.
func (h *Handlers) myListings(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	out, err := h.L.Mine(r.Context(), userFrom(r.Context()), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// parseLimit reads ?limit=; absent means the service default (0).
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return 0, true
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > app.MaxListLimit {
		writeProblem(w, http.StatusBadRequest, "Invalid limit",
			"limit must be an integer between 1 and "+strconv.Itoa(app.MaxListLimit))
		return 0, false
	}
	return l, true
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.L.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	etag, body := calcETagAndBody(l)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getListing body")
	}
}

func (h *Handlers) createListing(w http.ResponseWriter, r *http.Request) {
	var in domain.NewListing
	if !decodeBody(w, r, &in) {
		return
	}
	l, err := h.L.Create(r.Context(), userFrom(r.Context()), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Location", "/v1/listings/"+l.ID)
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handlers) updateListing(w http.ResponseWriter, r *http.Request) {
	var p domain.ListingPatch
	if !decodeBody(w, r, &p) {
		return
	}
	l, err := h.L.Update(r.Context(), chi.URLParam(r, "id"), userFrom(r.Context()), p)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) deleteListing(w http.ResponseWriter, r *http.Request) {
	if err := h.L.Delete(r.Context(), chi.URLParam(r, "id"), userFrom(r.Context())); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "listing deleted"})
}
