// Package geo implements the WGS-84 -> GCJ-02 coordinate obfuscation used
// by Chinese mapping authorities, applied by the position model whenever a
// device-reported fix falls inside China's rough bounding rectangle.
package geo

import "math"

const (
	earthRadius     = 6378245.0
	eccentricitySq  = 0.00669342162296594323
)

// InChina reports whether (lon,lat) falls inside the rough bounding
// rectangle used to decide whether the GCJ-02 transform applies.
func InChina(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lon >= 73.33 && lon <= 135.05 && lat >= 3.51 && lat <= 53.33
}

// TransformWgs84ToGcj02 converts a WGS-84 (lat,lon) pair to GCJ-02. Points
// outside the China bounding rectangle (or NaN/Inf) pass through unchanged.
func TransformWgs84ToGcj02(lat, lon float64) (outLat, outLon float64) {
	if !InChina(lat, lon) {
		return lat, lon
	}

	x := lon - 105.0
	y := lat - 35.0

	dLat := transformLat(x, y)
	dLon := transformLon(x, y)

	radLat := lat * math.Pi / 180.0
	magic := 1 - eccentricitySq*math.Sin(radLat)*math.Sin(radLat)
	sqrtMagic := math.Sqrt(magic)

	dLat = (dLat * 180.0) / ((earthRadius * (1 - eccentricitySq)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * 180.0) / (earthRadius / sqrtMagic * math.Cos(radLat) * math.Pi)

	return lat + dLat, lon + dLon
}

func transformLat(x, y float64) float64 {
	ret := -100.0 + 2*x + 3*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20*math.Sin(6*math.Pi*x) + 20*math.Sin(2*math.Pi*x)) * 2.0 / 3.0
	ret += (20*math.Sin(math.Pi*y) + 40*math.Sin(math.Pi*y/3.0)) * 2.0 / 3.0
	ret += (160*math.Sin(math.Pi*y/12.0) + 320*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func transformLon(x, y float64) float64 {
	ret := 300.0 + x + 2*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20*math.Sin(6*math.Pi*x) + 20*math.Sin(2*math.Pi*x)) * 2.0 / 3.0
	ret += (20*math.Sin(math.Pi*x) + 40*math.Sin(math.Pi*x/3.0)) * 2.0 / 3.0
	ret += (150*math.Sin(math.Pi*x/12.0) + 300*math.Sin(x*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}
