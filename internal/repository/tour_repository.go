package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// TourRepository handles database operations for tours
type TourRepository struct {
	db *sql.DB
}

// NewTourRepository creates a new tour repository
func NewTourRepository(db *sql.DB) *TourRepository {
	return &TourRepository{db: db}
}

// replaceToursTx swaps every tour of campaign for tours. Tours are only
// written together with their statistics row, see StoreStatistics.
func replaceToursTx(ctx context.Context, tx *sql.Tx, campaign string, tours []models.Tour) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tours WHERE campaign = ?`, campaign); err != nil {
		return fmt.Errorf("failed to clear tours: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tours (
			campaign, box_id, tour_index, geometry, start_time, end_time,
			duration_s, distance_m, average_speed_kmh, kcal, point_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range tours {
		geom, err := encodeGeometry(t.Geometry)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			campaign, t.BoxID, t.TourIndex, geom, toMillis(t.StartTime), toMillis(t.EndTime),
			t.DurationSeconds, t.DistanceMeters, nullFloat(t.AverageSpeedKmh), t.Kcal, t.PointCount,
		); err != nil {
			return fmt.Errorf("failed to insert tour %s/%s: %w", t.BoxID, t.Name(), err)
		}
	}
	return nil
}

// ListTours returns one page of tours and the total number matching filter.
func (r *TourRepository) ListTours(ctx context.Context, filter models.TourFilter) ([]models.Tour, int64, error) {
	where := " WHERE 1=1"
	args := []any{}
	if filter.Campaign != "" {
		where += " AND campaign = ?"
		args = append(args, filter.Campaign)
	}
	if filter.BoxID != "" {
		where += " AND box_id = ?"
		args = append(args, filter.BoxID)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tours"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tours: %w", err)
	}

	query := `
		SELECT id, campaign, box_id, tour_index, geometry, start_time, end_time,
			   duration_s, distance_m, average_speed_kmh, kcal, point_count
		FROM tours` + where + `
		ORDER BY campaign, box_id, tour_index`
	if filter.PageSize > 0 {
		page := max(filter.Page, 1)
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.PageSize, (page-1)*filter.PageSize)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tours: %w", err)
	}
	defer rows.Close()

	tours := []models.Tour{}
	for rows.Next() {
		var (
			t          models.Tour
			geom       []byte
			start, end int64
			speed      sql.NullFloat64
		)
		if err := rows.Scan(
			&t.ID, &t.Campaign, &t.BoxID, &t.TourIndex, &geom, &start, &end,
			&t.DurationSeconds, &t.DistanceMeters, &speed, &t.Kcal, &t.PointCount,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan tour: %w", err)
		}
		if t.Geometry, err = decodeLine(geom); err != nil {
			return nil, 0, err
		}
		t.StartTime = fromMillis(start)
		t.EndTime = fromMillis(end)
		t.AverageSpeedKmh = floatPtr(speed)
		tours = append(tours, t)
	}
	return tours, total, rows.Err()
}
