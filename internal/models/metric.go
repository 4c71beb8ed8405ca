package models

// Sensor reading names as delivered by the bike boxes.
const (
	MetricSpeed               = "Speed" // m/s
	MetricStanding            = "Standing"
	MetricOvertakingDistance  = "Overtaking Distance" // cm
	MetricOvertakingManoeuvre = "Overtaking Manoeuvre"
	MetricHumidity            = "Rel. Humidity"
	MetricTemperature         = "Temperature"
	MetricPM1                 = "Finedust PM1"
	MetricPM25                = "Finedust PM2.5"
	MetricPM4                 = "Finedust PM4"
	MetricPM10                = "Finedust PM10"
	MetricSurfaceAsphalt      = "Surface Asphalt"
	MetricSurfacePaving       = "Surface Paving"
	MetricSurfaceCompacted    = "Surface Compacted"
	MetricSurfaceSett         = "Surface Sett"
	MetricSurfaceAnomaly      = "Surface Anomaly"
)

// Derived metrics computed during preprocessing.
const (
	MetricSpeedKmh                     = "Speed km/h"
	MetricNormalizedSpeed              = "Normalized_Speed"
	MetricTrafficFlow                  = "traffic_flow"
	MetricRoughness                    = "Roughness"
	MetricRoughnessNormalized          = "Roughness_Normalized"
	MetricDangerZoneTraffic            = "danger_zone_traffic"
	MetricNormalizedOvertakingDistance = "Normalized Overtaking Distance"
)

// PMMetrics lists the particulate columns in size order.
var PMMetrics = []string{MetricPM1, MetricPM25, MetricPM4, MetricPM10}

// SurfaceMetrics lists the surface classifier fractions.
var SurfaceMetrics = []string{MetricSurfaceAsphalt, MetricSurfacePaving, MetricSurfaceCompacted, MetricSurfaceSett}
