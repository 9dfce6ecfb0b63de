package mysql

const listingColumns = `
  id, owner_id, title, description, bhk_type, price,
  state, district, locality, address, lat, lon,
  image_urls, created_at, updated_at`

const insertListingSQL = `
INSERT INTO listings (` + listingColumns + `)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// owner_id and created_at never change after insert.
const updateListingSQL = `
UPDATE listings SET
  title       = ?,
  description = ?,
  bhk_type    = ?,
  price       = ?,
  state       = ?,
  district    = ?,
  locality    = ?,
  address     = ?,
  lat         = ?,
  lon         = ?,
  image_urls  = ?,
  updated_at  = ?
WHERE id = ?
`

// Only fills a pin that is still missing, for the address it was resolved from;
// a concurrent edit of the address or the pin makes it a no-op.
const setCoordsSQL = `
UPDATE listings SET
  lat        = ?,
  lon        = ?,
  updated_at = ?
WHERE id = ?
  AND lat IS NULL
  AND state = ?
  AND district = ?
  AND locality <=> ?
`

const deleteListingSQL = `DELETE FROM listings WHERE id = ?`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getListingSQL = `SELECT` + listingColumns + `
FROM listings
WHERE id = ?
`

// Empty filter values match every row; aligns with idx_listings_owner and
// idx_listings_location.
const listListingsSQL = `SELECT` + listingColumns + `
FROM listings
WHERE (? = '' OR owner_id = ?)
  AND (? = '' OR state = ?)
  AND (? = '' OR district = ?)
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// Both coordinates are written together, so checking lat is enough.
const listUnlocatedSQL = `SELECT` + listingColumns + `
FROM listings
WHERE lat IS NULL
ORDER BY created_at ASC, id ASC
LIMIT ?
`
