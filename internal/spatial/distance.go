package spatial

// MetersPerDegree is the fixed WGS84 equatorial approximation used for
// every degree <-> meter conversion in tour and declutter code.
const MetersPerDegree = 111139.0

// DegreesToMeters converts an angular length to meters with MetersPerDegree.
func DegreesToMeters(deg float64) float64 {
	return deg * MetersPerDegree
}

// MetersToDegrees converts meters to an angular length with MetersPerDegree.
func MetersToDegrees(m float64) float64 {
	return m / MetersPerDegree
}
