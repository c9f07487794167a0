package corridor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStore() *Store {
	return NewStore(map[string][]Waypoint{
		"平溪線": {
			{Chainage: 0, Longitude: 121.70, Latitude: 25.02, Label: "三貂嶺"},
			{Chainage: 2000, Longitude: 121.72, Latitude: 25.03},
		},
		"深澳線": {
			{Chainage: 0, Longitude: 121.80, Latitude: 25.10},
			{Chainage: 1000, Longitude: 121.81, Latitude: 25.10},
			{Chainage: 4200, Longitude: 121.84, Latitude: 25.12, Label: "八斗子"},
		},
	})
}

func TestLoad_MissingFile(t *testing.T) {
	store := Load("/nonexistent/lines.json", zap.NewNop())
	assert.True(t, store.Empty())

	_, _, err := store.Interpolate("平溪線", 100)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	_, err = store.Nearest(121.7, 25.0)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestLoad_DropsMalformedCorridor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lines.json")
	data := `{
		"lines": {
			"好線": [
				{"distance": 0, "longitude": 121.7, "latitude": 25.0},
				{"distance": 1000, "longitude": 121.71, "latitude": 25.01}
			],
			"壞線": [
				{"distance": 0, "longitude": 121.8},
				{"distance": 500, "longitude": 121.81, "latitude": 25.1}
			]
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	store := Load(path, zap.NewNop())
	assert.Equal(t, []string{"好線"}, store.Names())
}

func TestLoad_LegacyDistanceKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lines.json")
	// Production data files carry the historic misspelling "diatance".
	data := `{
		"lines": {
			"宜蘭線": [
				{"diatance": 1000, "longitude": 121.71, "latitude": 25.01},
				{"diatance": 0, "longitude": 121.7, "latitude": 25.0}
			]
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	store := Load(path, zap.NewNop())
	c, ok := store.Get("宜蘭線")
	require.True(t, ok)
	// Out-of-order input is sorted by chainage at load.
	assert.Equal(t, 0.0, c.Waypoints[0].Chainage)
	assert.Equal(t, 1000.0, c.Waypoints[1].Chainage)
}

func TestStore_Resolve(t *testing.T) {
	store := testStore()

	name, ok := store.Resolve("平溪線")
	require.True(t, ok)
	assert.Equal(t, "平溪線", name)

	// Whitespace is stripped before matching.
	name, ok = store.Resolve(" 平溪線 ")
	require.True(t, ok)
	assert.Equal(t, "平溪線", name)

	// Prefix match lets users append descriptive text.
	name, ok = store.Resolve("深澳線海科館段")
	require.True(t, ok)
	assert.Equal(t, "深澳線", name)

	_, ok = store.Resolve("北迴線")
	assert.False(t, ok)
	_, ok = store.Resolve("  ")
	assert.False(t, ok)
}

func TestStore_Bounds(t *testing.T) {
	store := testStore()

	start, end, sample := store.Bounds("平溪線")
	assert.Equal(t, "三貂嶺", start)
	assert.Equal(t, "K2+000", end)
	// 5% of 2000m is under the 100m floor, so the sample sits 100m in.
	assert.Equal(t, "K0+100", sample)

	start, end, sample = store.Bounds("深澳線")
	assert.Equal(t, "K0+000", start)
	assert.Equal(t, "八斗子", end)
	// 5% of 4200m = 210m.
	assert.Equal(t, "K0+210", sample)

	start, end, sample = store.Bounds("不存在")
	assert.Empty(t, start)
	assert.Empty(t, end)
	assert.Empty(t, sample)
}

func TestStore_ReferenceLatitude(t *testing.T) {
	store := testStore()
	// Mean latitude over all five waypoints of both corridors.
	expected := (25.02 + 25.03 + 25.10 + 25.10 + 25.12) / 5
	assert.InDelta(t, expected, store.ReferenceLatitude(), 1e-9)
}
