package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// FeatureRepository stores the point outputs of per-record analyzers
type FeatureRepository struct {
	db *sql.DB
}

// NewFeatureRepository creates a new feature repository
func NewFeatureRepository(db *sql.DB) *FeatureRepository {
	return &FeatureRepository{db: db}
}

// ReplaceFeatures drops the features of (campaign, layer) and writes
// features in their place inside one transaction.
func (r *FeatureRepository) ReplaceFeatures(ctx context.Context, campaign, layer string, features []models.PointFeature) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM point_features WHERE campaign = ? AND layer = ?`, campaign, layer,
	); err != nil {
		return fmt.Errorf("failed to clear features: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO point_features (campaign, layer, box_id, geometry, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := toMillis(time.Now())
	for _, f := range features {
		geom, err := encodeGeometry(f.Position)
		if err != nil {
			return err
		}
		props, err := encodeJSON(f.Properties)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, campaign, layer, f.BoxID, geom, props, now); err != nil {
			return fmt.Errorf("failed to insert feature: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListFeatures returns the features of one layer in insertion order.
func (r *FeatureRepository) ListFeatures(ctx context.Context, filter models.FeatureFilter) ([]models.PointFeature, error) {
	query := `
		SELECT id, campaign, layer, box_id, geometry, properties, created_at
		FROM point_features
		WHERE layer = ?
	`
	args := []any{filter.Layer}
	if filter.Campaign != "" {
		query += " AND campaign = ?"
		args = append(args, filter.Campaign)
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	features := []models.PointFeature{}
	for rows.Next() {
		var (
			f         models.PointFeature
			geom      []byte
			props     string
			createdAt int64
		)
		if err := rows.Scan(&f.ID, &f.Campaign, &f.Layer, &f.BoxID, &geom, &props, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		g, err := wkb.Unmarshal(geom)
		if err != nil {
			return nil, fmt.Errorf("failed to decode geometry: %w", err)
		}
		p, ok := g.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("failed to decode geometry: expected Point, got %s", g.GeoJSONType())
		}
		f.Position = p
		if err := decodeJSON(props, &f.Properties); err != nil {
			return nil, err
		}
		f.CreatedAt = fromMillis(createdAt)
		features = append(features, f)
	}
	return features, rows.Err()
}
