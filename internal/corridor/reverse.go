package corridor

import (
	"math"
)

// Match is the result of a reverse lookup: the corridor and chainage of the
// nearest segment point, plus the perpendicular offset from the query
// coordinate in meters. The offset doubles as a match-quality indicator.
type Match struct {
	Corridor string
	Chainage float64
	Offset   float64
}

// Nearest projects a query coordinate onto every segment of every corridor
// and returns the globally closest chainage. The scan is linear over all
// waypoints, which is fine for corridor sets of tens to low hundreds of
// points. Ties resolve to the first corridor in iteration order (sorted by
// name); the tie-break carries no meaning.
func (s *Store) Nearest(longitude, latitude float64) (Match, error) {
	if s.Empty() {
		return Match{}, ErrDataUnavailable
	}

	px, py := s.projector.Project(longitude, latitude)

	best := Match{}
	bestSq := math.Inf(1)
	found := false

	for _, name := range s.names {
		c := s.corridors[name]
		for i := 0; i < len(c.Waypoints)-1; i++ {
			a := c.Waypoints[i]
			b := c.Waypoints[i+1]
			t, distSq := pointToSegmentSq(px, py, a.X, a.Y, b.X, b.Y)
			if distSq < bestSq {
				bestSq = distSq
				best = Match{
					Corridor: name,
					Chainage: a.Chainage + t*(b.Chainage-a.Chainage),
				}
				found = true
			}
		}
		// A single-waypoint corridor has no segments but can still be the
		// nearest feature.
		if len(c.Waypoints) == 1 {
			w := c.Waypoints[0]
			dx := px - w.X
			dy := py - w.Y
			if distSq := dx*dx + dy*dy; distSq < bestSq {
				bestSq = distSq
				best = Match{Corridor: name, Chainage: w.Chainage}
				found = true
			}
		}
	}

	if !found {
		return Match{}, ErrNoMatch
	}
	best.Offset = math.Sqrt(bestSq)
	return best, nil
}

// pointToSegmentSq returns the clamped projection parameter t in [0,1] and
// the squared planar distance from point p to segment ab. A zero-length
// segment yields t=0 and the distance to a.
func pointToSegmentSq(px, py, ax, ay, bx, by float64) (t, distSq float64) {
	abx := bx - ax
	aby := by - ay
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		dx := px - ax
		dy := py - ay
		return 0, dx*dx + dy*dy
	}

	t = ((px-ax)*abx + (py-ay)*aby) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	cx := ax + t*abx
	cy := ay + t*aby
	dx := px - cx
	dy := py - cy
	return t, dx*dx + dy*dy
}
