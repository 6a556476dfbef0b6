package gaze

// Resolve combines pupil centers into a single gaze point.
// Exactly two centers are required; any other count yields no gaze point.
// The midpoint uses floor division on each axis.
func Resolve(centers []Point) (Point, bool) {
	if len(centers) != 2 {
		return Point{}, false
	}
	a, b := centers[0], centers[1]
	return Point{
		X: floorDiv(a.X+b.X, 2),
		Y: floorDiv(a.Y+b.Y, 2),
	}, true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
