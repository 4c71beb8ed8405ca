package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/models"
)

var (
	// ErrUnknownAnalyzer is returned for names nothing registered.
	ErrUnknownAnalyzer = errors.New("unknown analyzer")
	// ErrNoData is returned when a request selects no point records at all.
	ErrNoData = errors.New("no data found for the given selection")
)

// Analyzer is the interface every registered process implements
type Analyzer interface {
	// Analyze runs the process for one task and replaces its previous output
	Analyze(ctx context.Context, taskID int64, req Request) (*Result, error)

	// GetName returns the name of the analyzer
	GetName() string
}

// Request selects the input of one run
type Request struct {
	Filter models.PointFilter

	// CreateCollection registers the output collection when set
	CreateCollection bool

	// stop detection overrides for this run; zero keeps the policy value
	StopMaxDiameterMeters  float64
	StopMinDurationMinutes float64
}

// OutputKey identifies the output of a run: the campaign, or the sorted box
// ids when boxes were selected explicitly.
func (r Request) OutputKey() string {
	if len(r.Filter.BoxIDs) > 0 {
		ids := append([]string(nil), r.Filter.BoxIDs...)
		sort.Strings(ids)
		return "boxes:" + strings.Join(ids, ",")
	}
	return r.Filter.Campaign
}

// Result summarizes a finished run
type Result struct {
	Rows    int            // output rows written
	Summary map[string]any // stored as the task's result_summary
}

// Progress represents the progress of an analysis task
type Progress struct {
	Processed int // records that reached the last stage
	Total     int // records loaded
	Dropped   int // records filtered out on the way
}

// PointSource loads point records.
type PointSource interface {
	ListPoints(ctx context.Context, filter models.PointFilter) ([]models.PointRecord, error)
}

// RoadSource loads the road network of a region; "" loads every region.
type RoadSource interface {
	ListRoads(ctx context.Context, region string) ([]models.RoadSegment, error)
}

// AggregateSink replaces the aggregate rows of one (campaign, analyzer) pair.
type AggregateSink interface {
	ReplaceAggregates(ctx context.Context, campaign, analyzer string, rows []models.MatchedAggregate) error
}

// StatisticsSink replaces the tours of rec.Tag and upserts its statistics
// row. Both land together or not at all.
type StatisticsSink interface {
	StoreStatistics(ctx context.Context, rec models.StatisticsRecord, tours []models.Tour) error
}

// FeatureSink replaces the point features of one (campaign, layer) pair.
type FeatureSink interface {
	ReplaceFeatures(ctx context.Context, campaign, layer string, features []models.PointFeature) error
}

// CollectionRegistrar publishes an output collection. Implementations must
// be idempotent on name.
type CollectionRegistrar interface {
	Register(ctx context.Context, name string, bbox orb.Bound, schema map[string]string) error
}

// ProgressReporter records task progress.
type ProgressReporter interface {
	UpdateProgress(ctx context.Context, taskID int64, p Progress) error
}

// Deps are the collaborators handed to analyzer factories.
type Deps struct {
	Points      PointSource
	Roads       RoadSource
	Aggregates  AggregateSink
	Statistics  StatisticsSink
	Features    FeatureSink
	Collections CollectionRegistrar
	Progress    ProgressReporter

	Policy  config.Policy
	Workers int
	Logger  *zap.Logger
}

// BaseAnalyzer provides common functionality for all analyzers
type BaseAnalyzer struct {
	Deps
	Name   string
	Logger *zap.Logger
}

// NewBaseAnalyzer creates a new base analyzer
func NewBaseAnalyzer(deps Deps, name string) *BaseAnalyzer {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	return &BaseAnalyzer{
		Deps:   deps,
		Name:   name,
		Logger: logger.With(zap.String("analyzer", name)),
	}
}

// GetName returns the analyzer name
func (a *BaseAnalyzer) GetName() string {
	return a.Name
}

// LoadPoints loads the records selected by req and fails with ErrNoData when
// there are none.
func (a *BaseAnalyzer) LoadPoints(ctx context.Context, req Request) ([]models.PointRecord, error) {
	points, err := a.Points.ListPoints(ctx, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load points: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, req.OutputKey())
	}
	return points, nil
}

// ReportProgress stores progress; a nil reporter is ignored.
func (a *BaseAnalyzer) ReportProgress(ctx context.Context, taskID int64, p Progress) {
	if a.Progress == nil {
		return
	}
	if err := a.Progress.UpdateProgress(ctx, taskID, p); err != nil {
		a.Logger.Warn("failed to update progress", zap.Int64("task_id", taskID), zap.Error(err))
	}
}

// RegisterCollection publishes the output when the request asks for it.
func (a *BaseAnalyzer) RegisterCollection(ctx context.Context, req Request, bbox orb.Bound, schema map[string]string) error {
	return a.RegisterLayerCollection(ctx, req, a.Name, bbox, schema)
}

// RegisterLayerCollection publishes one point feature layer of the
// analyzer when the request asks for it.
func (a *BaseAnalyzer) RegisterLayerCollection(ctx context.Context, req Request, layer string, bbox orb.Bound, schema map[string]string) error {
	if !req.CreateCollection || a.Collections == nil {
		return nil
	}
	name := CollectionName(layer, req.OutputKey())
	if err := a.Collections.Register(ctx, name, bbox, schema); err != nil {
		return fmt.Errorf("failed to register collection %s: %w", name, err)
	}
	a.Logger.Info("registered collection", zap.String("collection", name))
	return nil
}

// CollectionName is the published name of an analyzer's output for key.
func CollectionName(analyzer, key string) string {
	if key == "" {
		return analyzer
	}
	r := strings.NewReplacer(":", "_", ",", "_", " ", "_")
	return analyzer + "_" + strings.ToLower(r.Replace(key))
}

// AnalyzerFactory is a function that creates an analyzer instance
type AnalyzerFactory func(deps Deps) Analyzer

// AnalyzerRegistry maps analyzer names to analyzer factories
var AnalyzerRegistry = make(map[string]AnalyzerFactory)

// RegisterAnalyzer registers an analyzer factory under name
func RegisterAnalyzer(name string, factory AnalyzerFactory) {
	AnalyzerRegistry[name] = factory
}

// GetAnalyzer builds the analyzer registered under name.
func GetAnalyzer(name string, deps Deps) (Analyzer, error) {
	factory, ok := AnalyzerRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAnalyzer, name)
	}
	return factory(deps), nil
}

// AnalyzerNames lists the registered names in sorted order.
func AnalyzerNames() []string {
	names := make([]string, 0, len(AnalyzerRegistry))
	for name := range AnalyzerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Layer is a point feature output published as its own collection.
type Layer struct {
	Name     string
	Analyzer string // the analyzer writing it
	Title    string
}

// LayerRegistry maps layer names to their layer
var LayerRegistry = make(map[string]Layer)

// RegisterLayer declares a point feature layer
func RegisterLayer(layer Layer) {
	LayerRegistry[layer.Name] = layer
}

// IsLayer reports whether name is a registered point feature layer.
func IsLayer(name string) bool {
	_, ok := LayerRegistry[name]
	return ok
}

// CollectionPrefixes lists the analyzer and layer names every published
// collection name starts with, in sorted order.
func CollectionPrefixes() []string {
	names := AnalyzerNames()
	for name := range LayerRegistry {
		if _, ok := AnalyzerRegistry[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
