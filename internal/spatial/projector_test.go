package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjector_Project(t *testing.T) {
	p := NewProjector(25.0)

	// One degree of latitude is ~111.2 km regardless of reference latitude.
	_, y1 := p.Project(121.0, 25.0)
	_, y2 := p.Project(121.0, 26.0)
	assert.InDelta(t, 111195, y2-y1, 50, "one degree of latitude should span ~111.2km")

	// One degree of longitude at 25°N shrinks by cos(25°).
	x1, _ := p.Project(121.0, 25.0)
	x2, _ := p.Project(122.0, 25.0)
	expected := 111195 * math.Cos(25.0*math.Pi/180)
	assert.InDelta(t, expected, x2-x1, 50)
}

func TestProjector_Deterministic(t *testing.T) {
	p := NewProjector(24.8)
	ax, ay := p.Project(121.73, 25.01)
	bx, by := p.Project(121.73, 25.01)
	assert.Equal(t, ax, bx)
	assert.Equal(t, ay, by)
}

func TestHaversineDistance(t *testing.T) {
	// 台北車站 to 松山車站, roughly 5.9km.
	d := HaversineDistance(25.0478, 121.5170, 25.0492, 121.5777)
	assert.InDelta(t, 6120, d, 200)

	assert.InDelta(t, 0, HaversineDistance(25.0, 121.0, 25.0, 121.0), 1e-6)
}
