package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/repository"
	"github.com/atrai/atrai-backend-go/internal/source"
)

// Container holds the services of one process
type Container struct {
	Tasks    *AnalysisTaskService
	Queries  *QueryService
	Registry *CollectionRegistry

	Points *repository.PointRepository
	Roads  *repository.RoadRepository

	upstream *source.PostGIS
}

// NewContainer wires repositories, sources and services over db. When
// cfg.UpstreamDatabaseURL is set, analyzers read points and roads from
// PostGIS instead of the working store.
func NewContainer(ctx context.Context, db *sql.DB, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	points := repository.NewPointRepository(db)
	roads := repository.NewRoadRepository(db)
	aggregates := repository.NewAggregateRepository(db)
	tours := repository.NewTourRepository(db)
	statistics := repository.NewStatisticsRepository(db)
	features := repository.NewFeatureRepository(db)
	collections := repository.NewCollectionRepository(db)

	c := &Container{
		Points:   points,
		Roads:    roads,
		Registry: NewCollectionRegistry(collections, DefaultTitles(), logger),
		Queries:  NewQueryService(aggregates, tours, statistics, features, collections),
	}

	deps := analysis.Deps{
		Points:      points,
		Roads:       roads,
		Aggregates:  aggregates,
		Statistics:  statistics,
		Features:    features,
		Collections: c.Registry,
		Policy:      cfg.Policy,
		Workers:     cfg.Workers,
		Logger:      logger,
	}

	if cfg.UpstreamDatabaseURL != "" {
		upstream, err := source.NewPostGIS(ctx, cfg.UpstreamDatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect upstream: %w", err)
		}
		c.upstream = upstream
		deps.Points = upstream
		deps.Roads = upstream
		logger.Info("reading points and roads from upstream PostGIS")
	}

	c.Tasks = NewAnalysisTaskService(repository.NewAnalysisTaskRepository(db), deps, logger)
	return c, nil
}

// Close waits for background tasks and releases the upstream pool.
func (c *Container) Close() {
	c.Tasks.Wait()
	if c.upstream != nil {
		c.upstream.Close()
	}
}
