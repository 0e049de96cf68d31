package wine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// --------------------------------------------------
// UPSERT (ON CONFLICT = LAST WRITE WINS)
// --------------------------------------------------
// The unique index on cache_key is the real dedup guarantee;
// a prior SELECT would race with concurrent ingestion runs.
func (r *PostgresRepository) Upsert(
	ctx context.Context,
	record *WineRecord,
) (int, error) {

	if record == nil || record.Name == "" {
		return 0, ErrEmptyName
	}

	var attrs []byte
	if len(record.Attributes) > 0 {
		data, err := json.Marshal(record.Attributes)
		if err != nil {
			return 0, err
		}
		attrs = data
	}

	var id int
	err := r.db.QueryRow(ctx, `
		INSERT INTO wines (
			name,
			vintage,
			producer,
			region,
			country,
			varietals,
			cache_key,
			attributes,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (cache_key) DO UPDATE
		SET name       = EXCLUDED.name,
		    vintage    = EXCLUDED.vintage,
		    producer   = EXCLUDED.producer,
		    region     = EXCLUDED.region,
		    country    = EXCLUDED.country,
		    varietals  = EXCLUDED.varietals,
		    attributes = EXCLUDED.attributes,
		    updated_at = now()
		RETURNING id
	`,
		record.Name,
		record.Vintage,
		record.Producer,
		record.Region,
		record.Country,
		record.Varietals,
		record.CacheKey(),
		attrs,
	).Scan(&id)

	return id, err
}

// --------------------------------------------------
// GET BY ID
// --------------------------------------------------
func (r *PostgresRepository) GetByID(
	ctx context.Context,
	id int,
) (*StoredWine, error) {

	var w StoredWine
	var attrs []byte

	err := r.db.QueryRow(ctx, `
		SELECT
			id,
			name,
			vintage,
			producer,
			region,
			country,
			varietals,
			cache_key,
			attributes,
			created_at,
			updated_at
		FROM wines
		WHERE id = $1
	`, id).Scan(
		&w.ID,
		&w.Name,
		&w.Vintage,
		&w.Producer,
		&w.Region,
		&w.Country,
		&w.Varietals,
		&w.CacheKey,
		&attrs,
		&w.CreatedAt,
		&w.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &w.Attributes); err != nil {
			return nil, err
		}
	}

	return &w, nil
}

// --------------------------------------------------
// LIST + SEARCH (PAGINATED)
// --------------------------------------------------
func (r *PostgresRepository) List(
	ctx context.Context,
	page, pageSize int,
	search string,
) (*WinePage, error) {

	page, pageSize = clampPage(page, pageSize)

	const selectCols = `
		SELECT
			id,
			name,
			vintage,
			producer,
			region,
			country,
			varietals,
			cache_key,
			attributes,
			created_at,
			updated_at
		FROM wines`

	const searchWhere = `
		WHERE name      ILIKE '%' || $1 || '%'
		   OR producer  ILIKE '%' || $1 || '%'
		   OR region    ILIKE '%' || $1 || '%'
		   OR country   ILIKE '%' || $1 || '%'
		   OR varietals ILIKE '%' || $1 || '%'`

	var (
		total int
		rows  pgx.Rows
		err   error
	)

	if search != "" {
		err = r.db.QueryRow(
			ctx, `SELECT COUNT(*) FROM wines`+searchWhere, search,
		).Scan(&total)
		if err != nil {
			return nil, err
		}

		rows, err = r.db.Query(ctx,
			selectCols+searchWhere+`
		ORDER BY name ASC, vintage ASC
		LIMIT $2 OFFSET $3`,
			search, pageSize, (page-1)*pageSize,
		)
	} else {
		err = r.db.QueryRow(
			ctx, `SELECT COUNT(*) FROM wines`,
		).Scan(&total)
		if err != nil {
			return nil, err
		}

		rows, err = r.db.Query(ctx,
			selectCols+`
		ORDER BY name ASC, vintage ASC
		LIMIT $1 OFFSET $2`,
			pageSize, (page-1)*pageSize,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wines := []StoredWine{}
	for rows.Next() {
		var w StoredWine
		var attrs []byte
		if err := rows.Scan(
			&w.ID,
			&w.Name,
			&w.Vintage,
			&w.Producer,
			&w.Region,
			&w.Country,
			&w.Varietals,
			&w.CacheKey,
			&attrs,
			&w.CreatedAt,
			&w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &w.Attributes); err != nil {
				return nil, err
			}
		}
		wines = append(wines, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize

	return &WinePage{
		Wines:      wines,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// --------------------------------------------------
// COUNT
// --------------------------------------------------
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM wines`).Scan(&n)
	return n, err
}
