package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"findmyroom/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) InsertListing(ctx context.Context, l domain.Listing) error {
	imgs, err := encodeImages(l.ImageURLs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertListingSQL,
		l.ID,
		l.OwnerID,
		valStr(l.Title),
		valStr(l.Description),
		l.BHKType,
		l.Price,
		l.State,
		l.District,
		valStr(l.Locality),
		valStr(l.Address),
		valF64(l.Lat),
		valF64(l.Lon),
		imgs,
		l.CreatedAt.UTC(),
		l.UpdatedAt.UTC(),
	)
	return err
}

func (r *Repo) UpdateListing(ctx context.Context, l domain.Listing) error {
	imgs, err := encodeImages(l.ImageURLs)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, updateListingSQL,
		valStr(l.Title),
		valStr(l.Description),
		l.BHKType,
		l.Price,
		l.State,
		l.District,
		valStr(l.Locality),
		valStr(l.Address),
		valF64(l.Lat),
		valF64(l.Lon),
		imgs,
		l.UpdatedAt.UTC(),
		l.ID,
	)
	if err != nil {
		return err
	}
	return r.exists(ctx, res, l.ID)
}

func (r *Repo) SetCoords(ctx context.Context, id string, at domain.GeoQuery, res domain.GeoResult, updatedAt time.Time) (bool, error) {
	out, err := r.db.ExecContext(ctx, setCoordsSQL,
		res.Latitude,
		res.Longitude,
		updatedAt.UTC(),
		id,
		at.State,
		at.District,
		valStr(at.Locality),
	)
	if err != nil {
		return false, err
	}
	n, err := out.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) DeleteListing(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteListingSQL, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, getListingSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, err
}

func (r *Repo) ListListings(ctx context.Context, q domain.ListingsQuery) (domain.ListingsPage, error) {
	rows, err := r.db.QueryContext(ctx, listListingsSQL,
		q.OwnerID, q.OwnerID, q.State, q.State, q.District, q.District, q.Limit)
	if err != nil {
		return domain.ListingsPage{}, err
	}
	out, err := collect(rows)
	if err != nil {
		return domain.ListingsPage{}, err
	}
	return domain.ListingsPage{Items: out}, nil
}

func (r *Repo) ListUnlocated(ctx context.Context, limit int) ([]domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx, listUnlocatedSQL, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// exists turns a zero-row UPDATE into ErrNotFound. MySQL reports zero affected
// rows when nothing changed too, so a follow-up lookup settles it.
func (r *Repo) exists(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM listings WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(row scanner) (domain.Listing, error) {
	var l domain.Listing
	var title, desc, locality, address sql.NullString
	var lat, lon sql.NullFloat64
	var imgs []byte

	if err := row.Scan(
		&l.ID,
		&l.OwnerID,
		&title, &desc,
		&l.BHKType,
		&l.Price,
		&l.State, &l.District,
		&locality, &address,
		&lat, &lon,
		&imgs,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return domain.Listing{}, err
	}

	l.Title, l.Description = title.String, desc.String
	l.Locality, l.Address = locality.String, address.String
	// a half-set pair is treated as unresolved
	if lat.Valid && lon.Valid {
		la, lo := lat.Float64, lon.Float64
		l.Lat, l.Lon = &la, &lo
	}
	if len(imgs) > 0 {
		if err := json.Unmarshal(imgs, &l.ImageURLs); err != nil {
			return domain.Listing{}, fmt.Errorf("decode image_urls of %s: %w", l.ID, err)
		}
	}
	if l.ImageURLs == nil {
		l.ImageURLs = []string{}
	}
	l.CreatedAt, l.UpdatedAt = l.CreatedAt.UTC(), l.UpdatedAt.UTC()
	return l, nil
}

func collect(rows *sql.Rows) ([]domain.Listing, error) {
	defer rows.Close()
	out := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeImages(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("encode image_urls: %w", err)
	}
	return string(b), nil
}
