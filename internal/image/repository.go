package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres-backed MetadataStore.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert writes one metadata row and fills in the generated row ID and
// creation timestamp. Returns ErrConflict when the image id is already taken.
func (r *Repository) Insert(ctx context.Context, a *Asset) error {
	variants, err := json.Marshal(a.Variants)
	if err != nil {
		return fmt.Errorf("encode variants: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO images (image_id, filename, storage_key, url, variants, file_size, content_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		a.ImageID, a.Filename, a.StorageKey, a.URL, variants, a.FileSize, a.ContentType,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// GetByImageID fetches a metadata row by its logical identifier.
func (r *Repository) GetByImageID(ctx context.Context, imageID string) (*Asset, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, image_id, filename, storage_key, url, variants, file_size, content_type, created_at
		 FROM images WHERE image_id = $1`,
		imageID,
	)
	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image by id: %w", err)
	}
	return a, nil
}

// DeleteByImageID removes the metadata row for imageID.
func (r *Repository) DeleteByImageID(ctx context.Context, imageID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM images WHERE image_id = $1`, imageID)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns metadata rows newest first.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]Asset, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, image_id, filename, storage_key, url, variants, file_size, content_type, created_at
		 FROM images ORDER BY created_at DESC OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return out, nil
}

func scanAsset(row pgx.Row) (*Asset, error) {
	a := &Asset{}
	var variants []byte
	err := row.Scan(&a.ID, &a.ImageID, &a.Filename, &a.StorageKey, &a.URL, &variants, &a.FileSize, &a.ContentType, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &a.Variants); err != nil {
			return nil, fmt.Errorf("decode variants: %w", err)
		}
	}
	return a, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
