package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// StatisticsRepository stores one statistics row per tag
type StatisticsRepository struct {
	db *sql.DB
}

// NewStatisticsRepository creates a new statistics repository
func NewStatisticsRepository(db *sql.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// StoreStatistics replaces the tours of rec.Tag and upserts its statistics
// row in one transaction, so readers never see tours without the matching
// statistics.
func (r *StatisticsRepository) StoreStatistics(ctx context.Context, rec models.StatisticsRecord, tours []models.Tour) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := replaceToursTx(ctx, tx, rec.Tag, tours); err != nil {
			return err
		}
		return upsertStatisticsTx(ctx, tx, rec)
	})
}

func (r *StatisticsRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func upsertStatisticsTx(ctx context.Context, tx *sql.Tx, rec models.StatisticsRecord) error {
	payload, err := encodeJSON(rec.Statistics)
	if err != nil {
		return err
	}
	var geom []byte
	if len(rec.Geometry) > 0 {
		if geom, err = encodeGeometry(rec.Geometry); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statistics (tag, statistics, geometry, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tag) DO UPDATE SET
			statistics = excluded.statistics,
			geometry = excluded.geometry,
			updated_at = excluded.updated_at
	`, rec.Tag, payload, geom, toMillis(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert statistics for %s: %w", rec.Tag, err)
	}
	return nil
}

// GetStatistics returns the row of tag or ErrNotFound.
func (r *StatisticsRepository) GetStatistics(ctx context.Context, tag string) (*models.StatisticsRecord, error) {
	var (
		rec       models.StatisticsRecord
		payload   string
		geom      []byte
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT tag, statistics, geometry, updated_at FROM statistics WHERE tag = ?`, tag,
	).Scan(&rec.Tag, &payload, &geom, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("statistics %q: %w", tag, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}

	if err := decodeJSON(payload, &rec.Statistics); err != nil {
		return nil, err
	}
	if rec.Geometry, err = decodePolygon(geom); err != nil {
		return nil, err
	}
	rec.UpdatedAt = fromMillis(updatedAt)
	return &rec, nil
}

// DeleteStatistics drops the tours and the statistics row of tag.
func (r *StatisticsRepository) DeleteStatistics(ctx context.Context, tag string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := replaceToursTx(ctx, tx, tag, nil); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM statistics WHERE tag = ?`, tag); err != nil {
			return fmt.Errorf("failed to delete statistics for %s: %w", tag, err)
		}
		return nil
	})
}
