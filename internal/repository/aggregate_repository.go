package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// AggregateRepository stores the per segment output of road analyzers
type AggregateRepository struct {
	db *sql.DB
}

// NewAggregateRepository creates a new aggregate repository
func NewAggregateRepository(db *sql.DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

// ReplaceAggregates drops the rows of (campaign, analyzer) and writes rows
// in their place inside one transaction, so readers see either the old or
// the new output.
func (r *AggregateRepository) ReplaceAggregates(ctx context.Context, campaign, analyzer string, rows []models.MatchedAggregate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM segment_aggregates WHERE campaign = ? AND analyzer = ?`, campaign, analyzer,
	); err != nil {
		return fmt.Errorf("failed to clear aggregates: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segment_aggregates (
			campaign, analyzer, segment_id, geometry, attributes, averages,
			average_distance_to_road, number_of_points, number_of_boxes,
			histogram, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := toMillis(time.Now())
	for _, row := range rows {
		geom, err := encodeGeometry(row.Geometry)
		if err != nil {
			return err
		}
		attrs, err := encodeJSON(row.Attributes)
		if err != nil {
			return err
		}
		averages, err := encodeJSON(row.Averages)
		if err != nil {
			return err
		}
		var histogram sql.NullString
		if row.Histogram != nil {
			histogram = sql.NullString{String: *row.Histogram, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			campaign, analyzer, row.SegmentID, geom, attrs, averages,
			row.AverageDistanceToRoad, row.NumberOfPoints, row.NumberOfBoxes,
			histogram, now,
		); err != nil {
			return fmt.Errorf("failed to insert aggregate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListAggregates returns the rows of one analyzer ordered by segment id.
func (r *AggregateRepository) ListAggregates(ctx context.Context, filter models.AggregateFilter) ([]models.MatchedAggregate, error) {
	query := `
		SELECT id, campaign, analyzer, segment_id, geometry, attributes, averages,
			   average_distance_to_road, number_of_points, number_of_boxes,
			   histogram, created_at
		FROM segment_aggregates
		WHERE analyzer = ?
	`
	args := []any{filter.Analyzer}
	if filter.Campaign != "" {
		query += " AND campaign = ?"
		args = append(args, filter.Campaign)
	}
	query += " ORDER BY campaign, segment_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer rows.Close()

	var out []models.MatchedAggregate
	for rows.Next() {
		var (
			a               models.MatchedAggregate
			geom            []byte
			attrs, averages string
			histogram       sql.NullString
			createdAt       int64
		)
		if err := rows.Scan(
			&a.ID, &a.Campaign, &a.Analyzer, &a.SegmentID, &geom, &attrs, &averages,
			&a.AverageDistanceToRoad, &a.NumberOfPoints, &a.NumberOfBoxes,
			&histogram, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		if a.Geometry, err = decodeLine(geom); err != nil {
			return nil, err
		}
		if err := decodeJSON(attrs, &a.Attributes); err != nil {
			return nil, err
		}
		if err := decodeJSON(averages, &a.Averages); err != nil {
			return nil, err
		}
		if histogram.Valid {
			h := histogram.String
			a.Histogram = &h
		}
		a.CreatedAt = fromMillis(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}
