// README: Grid bucketing of coordinates and "lat,lng" parsing.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"taxifare/internal/types"
)

// DefaultGridSize is the bucket edge in degrees (~165 m of latitude).
const DefaultGridSize = 0.0015

var (
	ErrBadPoint     = errors.New("invalid coordinates")
	ErrBadBucketKey = errors.New("invalid bucket key")
)

// BucketKey returns "<latCell>:<lngCell>" where each cell is floor(deg / gridSize).
// Floor rounds toward negative infinity, so points just south of the equator or
// west of Greenwich land in negative cells.
func BucketKey(p types.Point, gridSize float64) string {
	latCell, lngCell := cells(p, gridSize)
	return formatKey(latCell, lngCell)
}

// NeighboringBucketKeys returns the 3x3 block of keys centred on p's bucket,
// lat offset outer, lng offset inner. The centre key is always included.
func NeighboringBucketKeys(p types.Point, gridSize float64) []string {
	latCell, lngCell := cells(p, gridSize)
	keys := make([]string, 0, 9)
	for dLat := int64(-1); dLat <= 1; dLat++ {
		for dLng := int64(-1); dLng <= 1; dLng++ {
			keys = append(keys, formatKey(latCell+dLat, lngCell+dLng))
		}
	}
	return keys
}

// ParseBucketKey splits a key produced by BucketKey back into its cells.
func ParseBucketKey(key string) (latCell, lngCell int64, err error) {
	latStr, lngStr, ok := strings.Cut(key, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadBucketKey, key)
	}
	if latCell, err = strconv.ParseInt(latStr, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadBucketKey, key)
	}
	if lngCell, err = strconv.ParseInt(lngStr, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadBucketKey, key)
	}
	return latCell, lngCell, nil
}

// ParseLatLng parses "lat,lng" (whitespace around either part is ignored).
func ParseLatLng(s string) (types.Point, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return types.Point{}, fmt.Errorf("%w: expected \"lat,lng\"", ErrBadPoint)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return types.Point{}, fmt.Errorf("%w: latitude %q", ErrBadPoint, latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return types.Point{}, fmt.Errorf("%w: longitude %q", ErrBadPoint, lngStr)
	}
	p := types.Point{Lat: lat, Lng: lng}
	if !ValidPoint(p) {
		return types.Point{}, fmt.Errorf("%w: %v,%v out of range", ErrBadPoint, lat, lng)
	}
	return p, nil
}

func cells(p types.Point, gridSize float64) (int64, int64) {
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}
	return int64(math.Floor(p.Lat / gridSize)), int64(math.Floor(p.Lng / gridSize))
}

func formatKey(latCell, lngCell int64) string {
	return strconv.FormatInt(latCell, 10) + ":" + strconv.FormatInt(lngCell, 10)
}
