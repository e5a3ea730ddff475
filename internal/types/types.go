// README: Common value objects shared across modules.
package types

// ID is an opaque entity identifier (UUID string form).
type ID string

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point lies inside the legal coordinate ranges.
// The zero value (0,0) is treated as unset: no unit or incident in this
// system sits in the Gulf of Guinea.
func (p Point) Valid() bool {
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
