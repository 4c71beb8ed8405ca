package service

// The analyzer packages register themselves on import.
import (
	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/analysis/behavior"
	"github.com/atrai/atrai-backend-go/internal/analysis/spatial"
	"github.com/atrai/atrai-backend-go/internal/analysis/stats"
)

// DefaultTitles names every built-in analyzer and point feature layer for
// collection listings.
func DefaultTitles() map[string]string {
	titles := map[string]string{
		stats.AnalyzerName:          "Tour statistics",
		behavior.DangerAnalyzerName: "Dangerous places",
	}
	for _, p := range spatial.Profiles {
		titles[p.Name] = p.Title
	}
	for name, layer := range analysis.LayerRegistry {
		titles[name] = layer.Title
	}
	return titles
}
