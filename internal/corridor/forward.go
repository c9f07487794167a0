package corridor

import (
	"fmt"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/chainage"
)

// Interpolate resolves a chainage value on a named corridor to a WGS-84
// coordinate by locating the bracketing waypoint pair and interpolating
// linearly. Values outside the corridor's chainage domain fail with
// ErrOutOfRange; there is no extrapolation.
func (s *Store) Interpolate(name string, value float64) (longitude, latitude float64, err error) {
	if s.Empty() {
		return 0, 0, ErrDataUnavailable
	}
	c, ok := s.corridors[name]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownCorridor, name)
	}

	start, end := c.Domain()
	if value < start || value > end {
		return 0, 0, fmt.Errorf("%w: %s not in [%s, %s]",
			ErrOutOfRange, chainage.Format(value), chainage.Format(start), chainage.Format(end))
	}

	for i := 0; i < len(c.Waypoints)-1; i++ {
		a := c.Waypoints[i]
		b := c.Waypoints[i+1]
		if value < a.Chainage || value > b.Chainage {
			continue
		}
		span := b.Chainage - a.Chainage
		t := 0.0
		if span > 0 {
			t = (value - a.Chainage) / span
		}
		longitude = a.Longitude + t*(b.Longitude-a.Longitude)
		latitude = a.Latitude + t*(b.Latitude-a.Latitude)
		return longitude, latitude, nil
	}

	// Single-waypoint corridor: domain collapses to one value.
	w := c.Waypoints[0]
	return w.Longitude, w.Latitude, nil
}

// ResolveMarker resolves a free-text route name plus marker text into a
// corridor name, chainage and coordinate. Used by the hazard-report flow to
// geolocate a user-entered route+mileage pair.
func (s *Store) ResolveMarker(nameText, markerText string) (name string, value, longitude, latitude float64, err error) {
	if s.Empty() {
		return "", 0, 0, 0, ErrDataUnavailable
	}
	name, ok := s.Resolve(nameText)
	if !ok {
		return "", 0, 0, 0, fmt.Errorf("%w: %s", ErrUnknownCorridor, nameText)
	}
	value, ok = chainage.ParseMarker(markerText)
	if !ok {
		return "", 0, 0, 0, ErrUnparsableInput
	}
	longitude, latitude, err = s.Interpolate(name, value)
	if err != nil {
		return "", 0, 0, 0, err
	}
	return name, value, longitude, latitude, nil
}
