package service

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/analysis/stats"
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/repository"
)

// QueryService answers the read side of the API
type QueryService struct {
	aggregates  *repository.AggregateRepository
	tours       *repository.TourRepository
	statistics  *repository.StatisticsRepository
	features    *repository.FeatureRepository
	collections *repository.CollectionRepository
}

// NewQueryService creates a new query service
func NewQueryService(
	aggregates *repository.AggregateRepository,
	tours *repository.TourRepository,
	statistics *repository.StatisticsRepository,
	features *repository.FeatureRepository,
	collections *repository.CollectionRepository,
) *QueryService {
	return &QueryService{
		aggregates:  aggregates,
		tours:       tours,
		statistics:  statistics,
		features:    features,
		collections: collections,
	}
}

// ListCollections returns every published collection
func (s *QueryService) ListCollections(ctx context.Context) ([]models.Collection, error) {
	return s.collections.List(ctx)
}

// GetCollection returns one collection by name
func (s *QueryService) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	return s.collections.Get(ctx, name)
}

// CollectionItems returns the features of a collection. campaign overrides
// the key the collection was registered with.
func (s *QueryService) CollectionItems(ctx context.Context, name, campaign string, limit int) (*geojson.FeatureCollection, error) {
	c, err := s.collections.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if campaign == "" {
		campaign = c.Campaign
	}

	fc := geojson.NewFeatureCollection()
	if analysis.IsLayer(c.Analyzer) {
		features, err := s.features.ListFeatures(ctx, models.FeatureFilter{Layer: c.Analyzer, Campaign: campaign, Limit: limit})
		if err != nil {
			return nil, err
		}
		for _, pf := range features {
			f := geojson.NewFeature(pf.Position)
			f.ID = pf.ID
			for k, v := range pf.Properties {
				f.Properties[k] = v
			}
			f.Properties["box_id"] = pf.BoxID
			fc.Append(f)
		}
		return fc, nil
	}
	if c.Analyzer == stats.AnalyzerName {
		tours, _, err := s.tours.ListTours(ctx, models.TourFilter{Campaign: campaign, PageSize: limit, Page: 1})
		if err != nil {
			return nil, err
		}
		for _, t := range tours {
			fc.Append(TourFeature(t))
		}
		return fc, nil
	}

	rows, err := s.aggregates.ListAggregates(ctx, models.AggregateFilter{Analyzer: c.Analyzer, Campaign: campaign, Limit: limit})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		f := geojson.NewFeature(row.Geometry)
		f.ID = row.SegmentID
		for k, v := range row.Properties() {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc, nil
}

// DeleteCollection removes a published collection. With purge set, the
// rows behind it are dropped as well.
func (s *QueryService) DeleteCollection(ctx context.Context, name string, purge bool) error {
	c, err := s.collections.Get(ctx, name)
	if err != nil {
		return err
	}

	if purge {
		switch {
		case analysis.IsLayer(c.Analyzer):
			err = s.features.ReplaceFeatures(ctx, c.Campaign, c.Analyzer, nil)
		case c.Analyzer == stats.AnalyzerName:
			err = s.statistics.DeleteStatistics(ctx, c.Campaign)
		default:
			err = s.aggregates.ReplaceAggregates(ctx, c.Campaign, c.Analyzer, nil)
		}
		if err != nil {
			return fmt.Errorf("failed to purge collection %s: %w", name, err)
		}
	}
	return s.collections.Delete(ctx, name)
}

// TourFeature renders a tour as a GeoJSON feature.
func TourFeature(t models.Tour) *geojson.Feature {
	f := geojson.NewFeature(t.Geometry)
	f.ID = t.ID
	f.Properties["name"] = t.Name()
	f.Properties["box_id"] = t.BoxID
	f.Properties["tour_index"] = t.TourIndex
	f.Properties["start_time"] = t.StartTime
	f.Properties["end_time"] = t.EndTime
	f.Properties["duration_s"] = t.DurationSeconds
	f.Properties["distance_m"] = t.DistanceMeters
	f.Properties["average_speed_kmh"] = t.AverageSpeedKmh
	f.Properties["kcal"] = t.Kcal
	f.Properties["point_count"] = t.PointCount
	return f
}

// ListTours returns one page of tours
func (s *QueryService) ListTours(ctx context.Context, filter models.TourFilter) (*models.ToursResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 1000 {
		filter.PageSize = 100
	}

	tours, total, err := s.tours.ListTours(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &models.ToursResponse{
		Data:       tours,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize)),
	}, nil
}

// GetStatistics returns the statistics row of tag
func (s *QueryService) GetStatistics(ctx context.Context, tag string) (*models.StatisticsRecord, error) {
	rec, err := s.statistics.GetStatistics(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to load statistics: %w", err)
	}
	return rec, nil
}
