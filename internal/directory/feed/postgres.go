package feed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/pkg/postgres"
)

// Schema creates the directory tables PostgresSource reads. Rows load in
// position order.
const Schema = `
CREATE TABLE IF NOT EXISTS directory_cities (
    slug                 TEXT PRIMARY KEY,
    name                 TEXT NOT NULL,
    state                TEXT NOT NULL,
    state_abbr           TEXT,
    population           INTEGER,
    latitude             DOUBLE PRECISION,
    longitude            DOUBLE PRECISION,
    assisted_living_cost INTEGER,
    memory_care_cost     INTEGER,
    facility_count       INTEGER,
    search_tokens        TEXT[],
    url                  TEXT,
    position             INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS directory_facilities (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    city        TEXT,
    state       TEXT,
    city_slug   TEXT,
    address     TEXT,
    latitude    DOUBLE PRECISION,
    longitude   DOUBLE PRECISION,
    rating      DOUBLE PRECISION,
    care_types  TEXT[],
    amenities   TEXT[],
    monthly_avg INTEGER,
    url         TEXT,
    position    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS directory_facilities_city_slug_idx ON directory_facilities (city_slug);`

const (
	selectCities = `
SELECT slug, name, state, COALESCE(state_abbr, ''), COALESCE(population, 0),
       latitude, longitude,
       COALESCE(assisted_living_cost, 0), COALESCE(memory_care_cost, 0),
       COALESCE(facility_count, 0), COALESCE(search_tokens, '{}'), COALESCE(url, '')
FROM directory_cities
ORDER BY position, slug`

	selectFacilities = `
SELECT id, name, COALESCE(city, ''), COALESCE(state, ''), COALESCE(city_slug, ''),
       COALESCE(address, ''), latitude, longitude, COALESCE(rating, 0),
       COALESCE(care_types, '{}'), COALESCE(amenities, '{}'),
       COALESCE(monthly_avg, 0), COALESCE(url, '')
FROM directory_facilities
ORDER BY position, id`
)

// PostgresSource reads the directory_cities and directory_facilities tables
// in one read-only transaction.
type PostgresSource struct {
	client *postgres.Client
}

func NewPostgresSource(client *postgres.Client) *PostgresSource {
	return &PostgresSource{client: client}
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Load(ctx context.Context) (*directory.Snapshot, error) {
	var recs Records
	err := s.client.ReadSnapshot(ctx, func(tx *sql.Tx) error {
		var err error
		if recs.Cities, err = queryCities(ctx, tx); err != nil {
			return err
		}
		recs.Facilities, err = queryFacilities(ctx, tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres feed: %w", err)
	}
	if len(recs.Cities) == 0 && len(recs.Facilities) == 0 {
		return nil, fmt.Errorf("postgres feed: %w", ErrEmptyFeed)
	}
	return directory.NewSnapshot(recs.Cities, recs.Facilities, directory.Meta{
		Source:   s.Name(),
		LoadedAt: time.Now().UTC(),
	}), nil
}

func queryCities(ctx context.Context, tx *sql.Tx) ([]directory.City, error) {
	rows, err := tx.QueryContext(ctx, selectCities)
	if err != nil {
		return nil, fmt.Errorf("querying cities: %w", err)
	}
	defer rows.Close()

	var cities []directory.City
	for rows.Next() {
		var (
			c        directory.City
			lat, lng sql.NullFloat64
			tokens   []string
		)
		if err := rows.Scan(&c.Slug, &c.Name, &c.State, &c.StateAbbr, &c.Population,
			&lat, &lng, &c.AssistedLivingCost, &c.MemoryCareCost,
			&c.FacilityCount, pq.Array(&tokens), &c.URL); err != nil {
			return nil, fmt.Errorf("scanning city: %w", err)
		}
		c.Coordinates = latLng(lat, lng)
		c.SearchTokens = tokens
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func queryFacilities(ctx context.Context, tx *sql.Tx) ([]directory.Facility, error) {
	rows, err := tx.QueryContext(ctx, selectFacilities)
	if err != nil {
		return nil, fmt.Errorf("querying facilities: %w", err)
	}
	defer rows.Close()

	var facilities []directory.Facility
	for rows.Next() {
		var (
			f        directory.Facility
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.City, &f.State, &f.CitySlug,
			&f.Address, &lat, &lng, &f.Rating,
			pq.Array(&f.CareTypes), pq.Array(&f.Amenities),
			&f.MonthlyAvg, &f.URL); err != nil {
			return nil, fmt.Errorf("scanning facility: %w", err)
		}
		f.Coordinates = latLng(lat, lng)
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

func latLng(lat, lng sql.NullFloat64) *directory.LatLng {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &directory.LatLng{Lat: lat.Float64, Lng: lng.Float64}
}
