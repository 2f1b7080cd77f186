package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"olx-scout/models"
	"olx-scout/utils"
)

const listingsTable = "listings"

// PostgresStore persists listings to PostgreSQL. It exclusively owns the
// persisted lifecycle state; the pipeline only holds transient id/url
// batches between stages.
type PostgresStore struct {
	db       *sql.DB
	registry *ColumnRegistry
	log      zerolog.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and primes the column registry from the catalog.
func NewPostgresStore(dsn string, log zerolog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 10, BaseDelay: 2 * time.Second, Logger: log}
	if err := retry.Do("postgres-ping", db.Ping); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := &PostgresStore{
		db:       db,
		registry: NewColumnRegistry(db, listingsTable),
		log:      log.With().Str("component", "storage").Logger(),
	}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	if err := ps.registry.Refresh(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return ps, nil
}

// migrate creates the fixed part of the wide listings table. The prediction
// and validity columns are written by downstream ML jobs; creating them here
// lets those collaborators read and write without their own migration step.
func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id                        SERIAL PRIMARY KEY,
			url                       TEXT UNIQUE,
			created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			sold_at                   TIMESTAMPTZ,
			price                     BIGINT,
			price_new                 DOUBLE PRECISION,
			raw_data                  JSONB,
			embeddings                TEXT,
			price_predicted           DOUBLE PRECISION,
			discount_ratio_predicted  DOUBLE PRECISION,
			median_survival_days      DOUBLE PRECISION,
			is_illiquid               BOOLEAN NOT NULL DEFAULT FALSE,
			is_invalid                BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE INDEX IF NOT EXISTS idx_listings_sold_at    ON listings(sold_at);
		CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at);
		CREATE INDEX IF NOT EXISTS idx_listings_price_new  ON listings(price_new);
	`)
	return err
}

// Exists reports whether a listing with the given url is already stored.
func (ps *PostgresStore) Exists(url string) (bool, error) {
	var one int
	err := ps.db.QueryRow(`SELECT 1 FROM listings WHERE url = $1 LIMIT 1`, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: exists: %w", err)
	}
	return true, nil
}

// Upsert inserts a new row for an unknown url or refreshes the raw and
// flattened fields of an existing one. Previously-unseen attribute names are
// absorbed by creating nullable TEXT columns on the fly. Lifecycle fields
// (sold_at, price_new) are never written here.
func (ps *PostgresStore) Upsert(rec *models.ListingRecord) error {
	payload := rec.Payload()
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("postgres: encode payload: %w", err)
	}

	sanitized := make(map[string]any)
	for key, val := range Flatten(payload) {
		sanitized[SanitizeColumn(key)] = columnValue(val)
	}

	columns := make([]string, 0, len(sanitized))
	for col := range sanitized {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	// DDL cannot run inside the upsert transaction: ALTER TABLE commits are
	// kept separate so a failed write never rolls back a created column.
	for _, col := range columns {
		if err := ps.registry.Ensure(col); err != nil {
			return err
		}
	}

	tx, err := ps.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(`SELECT id FROM listings WHERE url = $1`, rec.URL).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = ps.insert(tx, rec, raw, columns, sanitized)
	case err != nil:
		return fmt.Errorf("postgres: lookup %s: %w", rec.URL, err)
	default:
		err = ps.update(tx, id, raw, columns, sanitized)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit upsert: %w", err)
	}
	return nil
}

func (ps *PostgresStore) insert(tx *sql.Tx, rec *models.ListingRecord, raw []byte, columns []string, values map[string]any) error {
	names := []string{"raw_data", "created_at"}
	args := []any{raw, rec.CrawledAt}
	for _, col := range columns {
		names = append(names, fmt.Sprintf("%q", col))
		args = append(args, values[col])
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`INSERT INTO listings (%s) VALUES (%s)`,
		strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("postgres: insert %s: %w", rec.URL, err)
	}
	return nil
}

func (ps *PostgresStore) update(tx *sql.Tx, id int64, raw []byte, columns []string, values map[string]any) error {
	assignments := []string{"raw_data = $1"}
	args := []any{raw}
	for i, col := range columns {
		assignments = append(assignments, fmt.Sprintf("%q = $%d", col, i+2))
		args = append(args, values[col])
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE listings SET %s WHERE id = $%d`,
		strings.Join(assignments, ", "), len(args))
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("postgres: update id %d: %w", id, err)
	}
	return nil
}

// ListUnsold returns up to limit listings not yet marked sold, oldest first.
func (ps *PostgresStore) ListUnsold(limit int) ([]models.ListingRef, error) {
	rows, err := ps.db.Query(`
		SELECT id, url
		FROM listings
		WHERE sold_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unsold: %w", err)
	}
	defer rows.Close()

	var refs []models.ListingRef
	for rows.Next() {
		var ref models.ListingRef
		if err := rows.Scan(&ref.ID, &ref.URL); err != nil {
			return nil, fmt.Errorf("postgres: scan unsold row: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ListMissingCompetitorPrice returns up to limit listings whose competitor
// price is unset or was previously not found. Not-found rows are retried on
// every pass: reference prices can appear later. excludeIDs holds the ids the
// current pass already handled; without the exclusion, a backlog of old
// not-found rows at the head of the created_at order would fill every batch
// and younger rows would never be reached.
func (ps *PostgresStore) ListMissingCompetitorPrice(limit int, excludeIDs []int64) ([]models.EnrichmentCandidate, error) {
	rows, err := ps.db.Query(`
		SELECT id, raw_data
		FROM listings
		WHERE (price_new IS NULL OR price_new = -1)
		  AND NOT (id = ANY($2))
		ORDER BY created_at ASC
		LIMIT $1
	`, limit, pq.Array(excludeIDs))
	if err != nil {
		return nil, fmt.Errorf("postgres: list missing competitor price: %w", err)
	}
	defer rows.Close()

	var candidates []models.EnrichmentCandidate
	for rows.Next() {
		var (
			id  int64
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("postgres: scan candidate row: %w", err)
		}
		candidates = append(candidates, decodeCandidate(id, raw))
	}
	return candidates, rows.Err()
}

func decodeCandidate(id int64, raw []byte) models.EnrichmentCandidate {
	c := models.EnrichmentCandidate{ID: id}
	var payload struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		c.Name = payload.Name
		c.Price = payload.Price
	}
	return c
}

// MarkSold stamps sold_at, conditioned on the current value being null so a
// confirmed sale is never overwritten.
func (ps *PostgresStore) MarkSold(id int64) error {
	_, err := ps.db.Exec(`
		UPDATE listings
		SET sold_at = NOW()
		WHERE id = $1 AND sold_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark sold id %d: %w", id, err)
	}
	return nil
}

// SetCompetitorPrice records a found competitor price.
func (ps *PostgresStore) SetCompetitorPrice(id int64, price float64) error {
	if _, err := ps.db.Exec(`UPDATE listings SET price_new = $2 WHERE id = $1`, id, price); err != nil {
		return fmt.Errorf("postgres: set competitor price id %d: %w", id, err)
	}
	return nil
}

// MarkCompetitorPriceNotFound records a probe that found no comparable
// price. The -1 marker keeps the row distinguishable from unprobed rows. The
// condition guards the invariant in SQL: a found price is never downgraded
// back to the not-found marker.
func (ps *PostgresStore) MarkCompetitorPriceNotFound(id int64) error {
	if _, err := ps.db.Exec(`
		UPDATE listings
		SET price_new = -1
		WHERE id = $1 AND (price_new IS NULL OR price_new = -1)
	`, id); err != nil {
		return fmt.Errorf("postgres: mark price not found id %d: %w", id, err)
	}
	return nil
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// columnValue converts a flattened payload value into a form storable in a
// dynamically created TEXT column. Composite leftovers are kept as JSON.
func columnValue(v any) any {
	switch val := v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return val
	}
}
