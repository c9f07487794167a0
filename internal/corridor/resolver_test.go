package corridor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate_RangeEnforcement(t *testing.T) {
	store := testStore()

	// Both bounds succeed exactly.
	lon, lat, err := store.Interpolate("平溪線", 0)
	require.NoError(t, err)
	assert.InDelta(t, 121.70, lon, 1e-9)
	assert.InDelta(t, 25.02, lat, 1e-9)

	lon, lat, err = store.Interpolate("平溪線", 2000)
	require.NoError(t, err)
	assert.InDelta(t, 121.72, lon, 1e-9)
	assert.InDelta(t, 25.03, lat, 1e-9)

	// Outside the domain fails, no extrapolation.
	_, _, err = store.Interpolate("平溪線", -1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, _, err = store.Interpolate("平溪線", 2000.5)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, _, err = store.Interpolate("北迴線", 100)
	assert.ErrorIs(t, err, ErrUnknownCorridor)
}

func TestInterpolate_Midpoint(t *testing.T) {
	store := testStore()

	lon, lat, err := store.Interpolate("平溪線", 1000)
	require.NoError(t, err)
	assert.InDelta(t, 121.71, lon, 1e-9)
	assert.InDelta(t, 25.025, lat, 1e-9)
}

func TestInterpolate_ContinuousAtSegmentBoundary(t *testing.T) {
	store := testStore()

	// 深澳線 has an interior waypoint at chainage 1000; approaching it from
	// either segment must give the same coordinate.
	lon, lat, err := store.Interpolate("深澳線", 1000)
	require.NoError(t, err)
	assert.InDelta(t, 121.81, lon, 1e-9)
	assert.InDelta(t, 25.10, lat, 1e-9)
}

func TestInterpolate_ZeroLengthSegment(t *testing.T) {
	store := NewStore(map[string][]Waypoint{
		"站內線": {
			{Chainage: 0, Longitude: 121.0, Latitude: 25.0},
			{Chainage: 500, Longitude: 121.005, Latitude: 25.0},
			{Chainage: 500, Longitude: 121.005, Latitude: 25.001},
			{Chainage: 1000, Longitude: 121.01, Latitude: 25.001},
		},
	})

	// The duplicate chainage resolves via t=0 on the zero-length segment
	// without dividing by zero.
	lon, lat, err := store.Interpolate("站內線", 500)
	require.NoError(t, err)
	assert.InDelta(t, 121.005, lon, 1e-9)
	assert.InDelta(t, 25.0, lat, 1e-9)
}

func TestNearest_StraightCorridorMidpoint(t *testing.T) {
	store := NewStore(map[string][]Waypoint{
		"測試線": {
			{Chainage: 0, Longitude: 121.0, Latitude: 25.0},
			{Chainage: 1000, Longitude: 121.01, Latitude: 25.0},
		},
	})

	match, err := store.Nearest(121.005, 25.0)
	require.NoError(t, err)
	assert.Equal(t, "測試線", match.Corridor)
	assert.InDelta(t, 500, match.Chainage, 1)
	assert.InDelta(t, 0, match.Offset, 0.5)
}

func TestNearest_OffsetIsPerpendicularDistance(t *testing.T) {
	store := NewStore(map[string][]Waypoint{
		"測試線": {
			{Chainage: 0, Longitude: 121.0, Latitude: 25.0},
			{Chainage: 1000, Longitude: 121.01, Latitude: 25.0},
		},
	})

	// ~111m north of the segment midpoint.
	match, err := store.Nearest(121.005, 25.001)
	require.NoError(t, err)
	assert.InDelta(t, 500, match.Chainage, 1)
	assert.InDelta(t, 111.2, match.Offset, 2)
}

func TestNearest_ClampsToEndpoints(t *testing.T) {
	store := NewStore(map[string][]Waypoint{
		"測試線": {
			{Chainage: 0, Longitude: 121.0, Latitude: 25.0},
			{Chainage: 1000, Longitude: 121.01, Latitude: 25.0},
		},
	})

	// Query beyond the east end projects onto the last waypoint.
	match, err := store.Nearest(121.02, 25.0)
	require.NoError(t, err)
	assert.InDelta(t, 1000, match.Chainage, 1e-9)
	assert.Greater(t, match.Offset, 500.0)
}

func TestNearest_PicksClosestCorridor(t *testing.T) {
	store := testStore()

	// Right next to 深澳線's first segment, far from 平溪線.
	match, err := store.Nearest(121.805, 25.1001)
	require.NoError(t, err)
	assert.Equal(t, "深澳線", match.Corridor)
}

func TestRoundTrip(t *testing.T) {
	store := testStore()

	for _, value := range []float64{250, 777, 1000, 1500, 1999} {
		lon, lat, err := store.Interpolate("平溪線", value)
		require.NoError(t, err)

		match, err := store.Nearest(lon, lat)
		require.NoError(t, err)
		assert.Equal(t, "平溪線", match.Corridor)
		assert.InDelta(t, value, match.Chainage, 1.0, "round trip at %v", value)
		assert.InDelta(t, 0, match.Offset, 1.0)
	}
}

func TestResolveMarker(t *testing.T) {
	store := NewStore(map[string][]Waypoint{
		"平溪線": {
			{Chainage: 0, Longitude: 121.70, Latitude: 25.02},
			{Chainage: 2000, Longitude: 121.72, Latitude: 25.03},
		},
	})

	name, value, lon, lat, err := store.ResolveMarker("平溪線", "K1+000")
	require.NoError(t, err)
	assert.Equal(t, "平溪線", name)
	assert.InDelta(t, 1000, value, 1e-9)
	assert.InDelta(t, 121.71, lon, 1e-6)
	assert.InDelta(t, 25.025, lat, 1e-6)

	_, _, _, _, err = store.ResolveMarker("不存在", "K1+000")
	assert.ErrorIs(t, err, ErrUnknownCorridor)

	_, _, _, _, err = store.ResolveMarker("平溪線", "沒有數字")
	assert.ErrorIs(t, err, ErrUnparsableInput)

	_, _, _, _, err = store.ResolveMarker("平溪線", "K99+000")
	assert.ErrorIs(t, err, ErrOutOfRange)
}
