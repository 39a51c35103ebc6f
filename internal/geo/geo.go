// Package geo computes great-circle distances and proximity eligibility
// between patients and caregivers.
package geo

import (
	"math"

	"careAlert/internal/domain"
)

const (
	// EarthRadiusMiles is the mean Earth radius used by Distance.
	EarthRadiusMiles = 3959.0

	// ResponseSpeedMPH is the average emergency-response speed assumed by EstimateEtaMinutes.
	ResponseSpeedMPH = 30.0

	// DefaultRadiusMiles is the proximity radius used when none is configured.
	DefaultRadiusMiles = 1.0
)

// Distance returns the haversine distance between a and b in miles.
// Callers validate that coordinates are finite; NaN propagates.
func Distance(a, b domain.Coord) float64 {
	dLat := deg2rad(b.Lat - a.Lat)
	dLng := deg2rad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Lat))*math.Cos(deg2rad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMiles * c
}

// EstimateEtaMinutes rounds the travel time at ResponseSpeedMPH up to whole minutes.
func EstimateEtaMinutes(distanceMiles float64) int {
	if distanceMiles <= 0 {
		return 0
	}
	// multiply first: 2.5/30*60 lands a hair above 5 in float64
	return int(math.Ceil(distanceMiles * 60 / ResponseSpeedMPH))
}

func IsWithinRadius(a, b domain.Coord, radiusMiles float64) bool {
	return Distance(a, b) <= radiusMiles
}

// Matcher decides whether a caregiver is eligible for an alert.
type Matcher struct {
	RadiusMiles float64
}

func NewMatcher(radiusMiles float64) Matcher {
	if radiusMiles <= 0 {
		radiusMiles = DefaultRadiusMiles
	}
	return Matcher{RadiusMiles: radiusMiles}
}

// Eligible reports whether a caregiver with the given assignments and
// optional location should see an alert for patientID at alertLoc.
// Proximity is skipped when either side has no usable location.
func (m Matcher) Eligible(patientID string, alertLoc domain.Coord, assigned []string, caregiverLoc *domain.Coord) bool {
	for _, p := range assigned {
		if p == patientID {
			return true
		}
	}
	if caregiverLoc == nil || alertLoc.IsUnavailable() {
		return false
	}
	return IsWithinRadius(alertLoc, *caregiverLoc, m.RadiusMiles)
}

// Estimate returns the distance and ETA from a caregiver to an alert.
// Zeroes are returned when either location is unknown.
func Estimate(alertLoc domain.Coord, caregiverLoc *domain.Coord) (distanceMiles float64, etaMinutes int) {
	if caregiverLoc == nil || alertLoc.IsUnavailable() || caregiverLoc.IsUnavailable() {
		return 0, 0
	}
	d := Distance(alertLoc, *caregiverLoc)
	return d, EstimateEtaMinutes(d)
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
