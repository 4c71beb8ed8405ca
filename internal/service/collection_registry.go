package service

import (
	"context"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/repository"
)

// CollectionRegistry publishes analyzer outputs as collections. Registering
// the same name again updates the entry in place.
type CollectionRegistry struct {
	repo   *repository.CollectionRepository
	titles map[string]string // analyzer -> title
	logger *zap.Logger
}

// NewCollectionRegistry creates a registry; titles names the analyzers.
func NewCollectionRegistry(repo *repository.CollectionRepository, titles map[string]string, logger *zap.Logger) *CollectionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionRegistry{repo: repo, titles: titles, logger: logger}
}

// Register implements analysis.CollectionRegistrar.
func (r *CollectionRegistry) Register(ctx context.Context, name string, bbox orb.Bound, schema map[string]string) error {
	analyzer, key := SplitCollectionName(name, analysis.CollectionPrefixes())

	title := r.titles[analyzer]
	if title == "" {
		title = analyzer
	}
	if key != "" {
		title += " (" + key + ")"
	}

	c := models.Collection{
		Name:        name,
		Title:       title,
		Description: "Output of the " + producer(analyzer) + " process",
		Analyzer:    analyzer,
		Campaign:    key,
		BBox:        bbox,
		Schema:      schema,
	}
	if err := r.repo.Upsert(ctx, c); err != nil {
		return err
	}
	r.logger.Debug("collection registered", zap.String("name", name), zap.String("analyzer", analyzer))
	return nil
}

// SplitCollectionName splits name into the longest matching analyzer prefix
// and the remaining key. Unknown prefixes return name unchanged.
func SplitCollectionName(name string, analyzers []string) (analyzer, key string) {
	for _, a := range analyzers {
		if len(a) <= len(analyzer) {
			continue
		}
		if name == a {
			analyzer, key = a, ""
		} else if strings.HasPrefix(name, a+"_") {
			analyzer, key = a, strings.TrimPrefix(name, a+"_")
		}
	}
	if analyzer == "" {
		return name, ""
	}
	return analyzer, key
}

// producer names the analyzer behind a collection prefix.
func producer(prefix string) string {
	if layer, ok := analysis.LayerRegistry[prefix]; ok {
		return layer.Analyzer
	}
	return prefix
}
