// README: Common value objects shared across modules.
package types

type ID string

// Coordinate is a point on the integer grid the service operates on.
type Coordinate struct {
	Latitude  int `json:"latitude"`
	Longitude int `json:"longitude"`
}

// DistanceTo returns the Manhattan distance to another coordinate.
func (c Coordinate) DistanceTo(o Coordinate) int {
	return abs(c.Latitude-o.Latitude) + abs(c.Longitude-o.Longitude)
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
