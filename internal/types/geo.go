package types

import "github.com/golang/geo/s2"

const earthRadiusKm = 6371.0

// Location is a geographic coordinate (latitude, longitude in degrees).
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceKm returns the great-circle distance to other in kilometers.
func (l Location) DistanceKm(other Location) float64 {
	a := s2.LatLngFromDegrees(l.Lat, l.Lon)
	b := s2.LatLngFromDegrees(other.Lat, other.Lon)
	return a.Distance(b).Radians() * earthRadiusKm
}

// Region is a coarse geographic region used for matchmaking backoff.
type Region string

const (
	RegionNorthAmerica Region = "north_america"
	RegionEurope       Region = "europe"
	RegionAsiaPacific  Region = "asia_pacific"
	RegionSouthAmerica Region = "south_america"
	RegionOther        Region = "other"
)

// AllRegions lists every region in a fixed order.
var AllRegions = []Region{
	RegionNorthAmerica,
	RegionEurope,
	RegionAsiaPacific,
	RegionSouthAmerica,
	RegionOther,
}

// AdjacentRegions returns the regions adjacent to r in the region graph:
// NA-EU, NA-SA, EU-APAC, APAC-SA, with Other adjacent to everything.
func (r Region) AdjacentRegions() []Region {
	switch r {
	case RegionNorthAmerica:
		return []Region{RegionEurope, RegionSouthAmerica}
	case RegionEurope:
		return []Region{RegionNorthAmerica, RegionAsiaPacific}
	case RegionAsiaPacific:
		return []Region{RegionEurope, RegionSouthAmerica}
	case RegionSouthAmerica:
		return []Region{RegionNorthAmerica, RegionAsiaPacific}
	default:
		return []Region{RegionNorthAmerica, RegionEurope, RegionAsiaPacific, RegionSouthAmerica}
	}
}

// RegionFromLocation classifies a coordinate into a region using fixed
// bounding boxes. Locations outside every box fall back to RegionOther.
func RegionFromLocation(loc Location) Region {
	lat, lon := loc.Lat, loc.Lon

	if lat >= 25.0 && lat <= 70.0 && lon >= -130.0 && lon <= -50.0 {
		return RegionNorthAmerica
	}
	if lat >= 35.0 && lat <= 70.0 && lon >= -10.0 && lon <= 40.0 {
		return RegionEurope
	}
	if lat >= -50.0 && lat <= 50.0 && ((lon >= 100.0 && lon <= 180.0) || (lon >= -180.0 && lon <= -120.0)) {
		return RegionAsiaPacific
	}
	if lat >= -60.0 && lat <= 15.0 && lon >= -90.0 && lon <= -30.0 {
		return RegionSouthAmerica
	}
	return RegionOther
}
