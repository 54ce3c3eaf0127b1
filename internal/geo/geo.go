// Package geo provides great-circle distance math for the professional
// search. Inputs are degrees.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between two
// coordinates, via the haversine formula. Pure and total: any pair of
// float inputs yields a result.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// RoundKm rounds a distance to one decimal, the precision shown to users.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
