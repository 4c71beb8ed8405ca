package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// CollectionRepository handles database operations for published collections
type CollectionRepository struct {
	db *sql.DB
}

// NewCollectionRepository creates a new collection repository
func NewCollectionRepository(db *sql.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// Upsert inserts c or updates the existing entry of the same name, keeping
// its creation time.
func (r *CollectionRepository) Upsert(ctx context.Context, c models.Collection) error {
	schema, err := encodeJSON(c.Schema)
	if err != nil {
		return err
	}
	now := toMillis(time.Now())

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO collections (
			name, title, description, analyzer, campaign,
			min_lon, min_lat, max_lon, max_lat, schema, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			analyzer = excluded.analyzer,
			campaign = excluded.campaign,
			min_lon = excluded.min_lon,
			min_lat = excluded.min_lat,
			max_lon = excluded.max_lon,
			max_lat = excluded.max_lat,
			schema = excluded.schema,
			updated_at = excluded.updated_at
	`,
		c.Name, c.Title, c.Description, c.Analyzer, c.Campaign,
		c.BBox.Min[0], c.BBox.Min[1], c.BBox.Max[0], c.BBox.Max[1],
		schema, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert collection %s: %w", c.Name, err)
	}
	return nil
}

const collectionColumns = `
	name, title, description, analyzer, campaign,
	min_lon, min_lat, max_lon, max_lat, schema, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (models.Collection, error) {
	var (
		c                    models.Collection
		schema               string
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&c.Name, &c.Title, &c.Description, &c.Analyzer, &c.Campaign,
		&c.BBox.Min[0], &c.BBox.Min[1], &c.BBox.Max[0], &c.BBox.Max[1],
		&schema, &createdAt, &updatedAt,
	); err != nil {
		return c, err
	}
	if err := decodeJSON(schema, &c.Schema); err != nil {
		return c, err
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

// Get returns the collection called name or ErrNotFound.
func (r *CollectionRepository) Get(ctx context.Context, name string) (*models.Collection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE name = ?`, name)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &c, nil
}

// List returns every collection ordered by name.
func (r *CollectionRepository) List(ctx context.Context) ([]models.Collection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	collections := []models.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// Delete removes the collection called name or returns ErrNotFound.
func (r *CollectionRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}
	return nil
}
