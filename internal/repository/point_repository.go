package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// PointRepository handles database operations for point records
type PointRepository struct {
	db *sql.DB
}

// NewPointRepository creates a new point repository
func NewPointRepository(db *sql.DB) *PointRepository {
	return &PointRepository{db: db}
}

// ListPoints returns the records selected by filter ordered by box and time.
// Box ids win over the campaign when both are set.
func (r *PointRepository) ListPoints(ctx context.Context, filter models.PointFilter) ([]models.PointRecord, error) {
	query := `
		SELECT id, campaign, box_id, created_at, lon, lat, readings
		FROM point_records
		WHERE 1=1
	`
	args := []any{}

	switch {
	case len(filter.BoxIDs) > 0:
		query += " AND box_id IN (?" + strings.Repeat(", ?", len(filter.BoxIDs)-1) + ")"
		for _, id := range filter.BoxIDs {
			args = append(args, id)
		}
	case filter.Campaign != "":
		query += " AND campaign = ?"
		args = append(args, filter.Campaign)
	}
	if filter.Start != nil {
		query += " AND created_at >= ?"
		args = append(args, toMillis(*filter.Start))
	}
	if filter.End != nil {
		query += " AND created_at <= ?"
		args = append(args, toMillis(*filter.End))
	}
	query += " ORDER BY box_id, created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	var points []models.PointRecord
	for rows.Next() {
		var (
			p         models.PointRecord
			createdAt int64
			lon, lat  sql.NullFloat64
			readings  string
		)
		if err := rows.Scan(&p.ID, &p.Campaign, &p.BoxID, &createdAt, &lon, &lat, &readings); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		p.CreatedAt = fromMillis(createdAt)
		if lon.Valid && lat.Valid {
			p.Position = &orb.Point{lon.Float64, lat.Float64}
		}
		if err := decodeJSON(readings, &p.Readings); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// InsertPoints stores records in one transaction and returns how many were
// written.
func (r *PointRepository) InsertPoints(ctx context.Context, records []models.PointRecord) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO point_records (campaign, box_id, created_at, lon, lat, readings)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range records {
		var lon, lat sql.NullFloat64
		if p.Position != nil {
			lon = sql.NullFloat64{Float64: p.Position.Lon(), Valid: true}
			lat = sql.NullFloat64{Float64: p.Position.Lat(), Valid: true}
		}
		readings, err := encodeReadings(p.Readings)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, p.Campaign, p.BoxID, toMillis(p.CreatedAt), lon, lat, readings); err != nil {
			return 0, fmt.Errorf("failed to insert point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(records), nil
}

// Campaigns lists the distinct campaigns with their point counts.
func (r *PointRepository) Campaigns(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT campaign, COUNT(*) FROM point_records GROUP BY campaign`)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		counts[name] = n
	}
	return counts, rows.Err()
}
