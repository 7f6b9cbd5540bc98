// README: Shared value types used across modules.
package types

// ID is an opaque identifier (UUID string for submissions and clusters, auth UID for drivers).
type ID string

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
