package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// RoadRepository handles database operations for the road network
type RoadRepository struct {
	db *sql.DB
}

// NewRoadRepository creates a new road repository
func NewRoadRepository(db *sql.DB) *RoadRepository {
	return &RoadRepository{db: db}
}

// ListRoads returns the segments of region plus those stored without a
// region, ordered by id. An empty region returns every segment.
func (r *RoadRepository) ListRoads(ctx context.Context, region string) ([]models.RoadSegment, error) {
	query := `SELECT id, region, way_id, name, surface, highway, geometry FROM road_segments`
	args := []any{}
	if region != "" {
		query += " WHERE region = ? OR region = ''"
		args = append(args, region)
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roads: %w", err)
	}
	defer rows.Close()

	var roads []models.RoadSegment
	for rows.Next() {
		var s models.RoadSegment
		var geom []byte
		if err := rows.Scan(&s.ID, &s.Region, &s.WayID, &s.Name, &s.Surface, &s.Highway, &geom); err != nil {
			return nil, fmt.Errorf("failed to scan road: %w", err)
		}
		if s.Geometry, err = decodeLine(geom); err != nil {
			return nil, fmt.Errorf("road %d: %w", s.ID, err)
		}
		roads = append(roads, s)
	}
	return roads, rows.Err()
}

// ReplaceRoads swaps the network of region for segments in one transaction.
// Segments with an id of 0 get one assigned.
func (r *RoadRepository) ReplaceRoads(ctx context.Context, region string, segments []models.RoadSegment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM road_segments WHERE region = ?`, region); err != nil {
		return fmt.Errorf("failed to clear roads: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO road_segments (id, region, way_id, name, surface, highway, geometry)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range segments {
		geom, err := encodeGeometry(s.Geometry)
		if err != nil {
			return err
		}
		var id any
		if s.ID != 0 {
			id = s.ID
		}
		if _, err := stmt.ExecContext(ctx, id, region, s.WayID, s.Name, s.Surface, s.Highway, geom); err != nil {
			return fmt.Errorf("failed to insert road: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
