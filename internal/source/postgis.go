package source

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// PostGIS reads the upstream bike data and road network tables
type PostGIS struct {
	Pool *pgxpool.Pool

	PointsTable string
	RoadsTable  string
}

// NewPostGIS connects to the upstream database
func NewPostGIS(ctx context.Context, databaseURL string) (*PostGIS, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping upstream database: %w", err)
	}

	return &PostGIS{Pool: pool, PointsTable: "osem_bike_data", RoadsTable: "bike_road_network"}, nil
}

// Close closes the connection pool
func (p *PostGIS) Close() {
	p.Pool.Close()
}

// ListPoints reads the records selected by filter. Every column besides the
// identifying ones and the geometry becomes a reading.
func (p *PostGIS) ListPoints(ctx context.Context, filter models.PointFilter) ([]models.PointRecord, error) {
	query, args := pointsQuery(p.PointsTable, filter)

	rows, err := p.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query upstream points: %w", err)
	}
	defer rows.Close()

	var records []models.PointRecord
	for rows.Next() {
		var (
			rec      models.PointRecord
			campaign *string
			lon, lat *float64
			values   map[string]any
		)
		if err := rows.Scan(&rec.BoxID, &rec.CreatedAt, &campaign, &lon, &lat, &values); err != nil {
			return nil, fmt.Errorf("failed to scan upstream point: %w", err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		if campaign != nil {
			rec.Campaign = *campaign
		}
		if filter.Campaign != "" {
			rec.Campaign = filter.Campaign
		}
		if lon != nil && lat != nil {
			rec.Position = &orb.Point{*lon, *lat}
		}
		rec.Readings = readingsFromJSON(values)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListRoads reads the road network, one segment per LineString part. The
// region is stored on the segments as given.
func (p *PostGIS) ListRoads(ctx context.Context, region string) ([]models.RoadSegment, error) {
	query := fmt.Sprintf(`
		SELECT row_number() OVER () AS id,
			   COALESCE(s.attrs->>'osm_id', ''),
			   COALESCE(s.attrs->>'name', ''),
			   COALESCE(s.attrs->>'surface', ''),
			   COALESCE(s.attrs->>'highway', ''),
			   ST_AsBinary(ST_Transform(s.part, 4326))
		FROM (
			SELECT to_jsonb(t) - 'geometry' AS attrs, (ST_Dump(t.geometry)).geom AS part
			FROM %s t
		) s
		WHERE GeometryType(s.part) = 'LINESTRING'
	`, pgx.Identifier{p.RoadsTable}.Sanitize())

	rows, err := p.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query upstream roads: %w", err)
	}
	defer rows.Close()

	var roads []models.RoadSegment
	for rows.Next() {
		var (
			seg  models.RoadSegment
			geom []byte
		)
		if err := rows.Scan(&seg.ID, &seg.WayID, &seg.Name, &seg.Surface, &seg.Highway, &geom); err != nil {
			return nil, fmt.Errorf("failed to scan upstream road: %w", err)
		}
		g, err := wkb.Unmarshal(geom)
		if err != nil {
			return nil, fmt.Errorf("failed to decode road %d: %w", seg.ID, err)
		}
		ls, ok := g.(orb.LineString)
		if !ok || len(ls) < 2 {
			continue
		}
		seg.Region = region
		seg.Geometry = ls
		roads = append(roads, seg)
	}
	return roads, rows.Err()
}

func pointsQuery(table string, filter models.PointFilter) (string, []any) {
	query := fmt.Sprintf(`
		SELECT t."boxId", t."createdAt", t.grouptag,
			   ST_X(t.geometry), ST_Y(t.geometry),
			   to_jsonb(t) - 'geometry' - 'boxId' - 'createdAt' - 'grouptag' - 'id'
		FROM %s t
		WHERE 1=1`, pgx.Identifier{table}.Sanitize())
	var args []any

	switch {
	case len(filter.BoxIDs) > 0:
		args = append(args, filter.BoxIDs)
		query += fmt.Sprintf(` AND t."boxId" = ANY($%d)`, len(args))
	case filter.Campaign != "":
		args = append(args, "%"+filter.Campaign+"%")
		query += fmt.Sprintf(` AND t.grouptag LIKE $%d`, len(args))
	}
	if filter.Start != nil {
		args = append(args, *filter.Start)
		query += fmt.Sprintf(` AND t."createdAt" >= $%d`, len(args))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		query += fmt.Sprintf(` AND t."createdAt" <= $%d`, len(args))
	}
	query += ` ORDER BY t."boxId", t."createdAt"`
	return query, args
}

// readingsFromJSON keeps the numeric members of a row object.
func readingsFromJSON(values map[string]any) map[string]float64 {
	readings := make(map[string]float64, len(values))
	for k, v := range values {
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) {
			continue
		}
		readings[k] = f
	}
	return readings
}
