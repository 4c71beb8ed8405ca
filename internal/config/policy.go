package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/atrai/atrai-backend-go/internal/stats"
)

// ErrInvalidPolicy wraps every policy validation failure.
var ErrInvalidPolicy = errors.New("invalid aggregation policy")

// PolicyVersion is the version of the built-in defaults.
const PolicyVersion = "2025.2"

// Policy holds the tunable thresholds of matching, declutter, tour
// construction and statistics. One policy applies to a whole deployment.
type Policy struct {
	Version string `yaml:"version" validate:"required"`

	// MaxMatchDistance is in projected (Web Mercator) units
	MaxMatchDistance    float64 `yaml:"max_match_distance" validate:"gt=0"`
	ClusterRadiusMeters float64 `yaml:"cluster_radius_m" validate:"gte=0"`

	TourIntervalMinutes    float64 `yaml:"tour_interval_min" validate:"gt=0"`
	MinTourDurationSeconds float64 `yaml:"min_tour_duration_s" validate:"gte=0"`
	MinTourDistanceMeters  float64 `yaml:"min_tour_distance_m" validate:"gte=0"`
	MinTourPoints          int     `yaml:"min_tour_points" validate:"gte=2"`

	// MET and BodyMassKg feed a population average energy estimate
	MET        float64 `yaml:"met" validate:"gt=0"`
	BodyMassKg float64 `yaml:"body_mass_kg" validate:"gt=0"`

	HistogramScheme string `yaml:"histogram_scheme" validate:"histogram_scheme"`
	MinDevicePoints int    `yaml:"min_device_points" validate:"gte=0"`

	// a stop is a stretch of one ride that stays inside a circle of
	// StopMaxDiameterMeters for at least StopMinDurationMinutes
	StopMaxDiameterMeters  float64 `yaml:"stop_max_diameter_m" validate:"gt=0"`
	StopMinDurationMinutes float64 `yaml:"stop_min_duration_min" validate:"gt=0"`
}

var policyValidator = newPolicyValidator()

// newPolicyValidator accepts exactly the histogram schemes stats knows about.
func newPolicyValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("histogram_scheme", func(fl validator.FieldLevel) bool {
		return slices.Contains(stats.Schemes(), fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
	return v
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		Version:                PolicyVersion,
		MaxMatchDistance:       20,
		ClusterRadiusMeters:    10,
		TourIntervalMinutes:    12,
		MinTourDurationSeconds: 120,
		MinTourDistanceMeters:  500,
		MinTourPoints:          10,
		MET:                    6.5,
		BodyMassKg:             70,
		HistogramScheme:        string(stats.AbsoluteCentimeters),
		MinDevicePoints:        10,
		StopMaxDiameterMeters:  50,
		StopMinDurationMinutes: 2,
	}
}

// LoadPolicy reads a YAML policy file over the defaults and validates it.
// Keys missing from the file keep their default value.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}

	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks every field against its bounds.
func (p Policy) Validate() error {
	if err := policyValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return nil
}

// TourInterval returns the inactivity gap that splits tours.
func (p Policy) TourInterval() time.Duration {
	return time.Duration(p.TourIntervalMinutes * float64(time.Minute))
}

// StopMinDuration returns the shortest dwell that counts as a stop.
func (p Policy) StopMinDuration() time.Duration {
	return time.Duration(p.StopMinDurationMinutes * float64(time.Minute))
}

// HistogramEdges returns the bin edges of the configured scheme.
func (p Policy) HistogramEdges() ([]float64, error) {
	edges, err := stats.Edges(stats.Scheme(p.HistogramScheme))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return edges, nil
}
