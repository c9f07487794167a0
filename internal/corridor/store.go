// Package corridor represents named rail routes as chainage-tagged
// polylines and converts between chainage values and WGS-84 coordinates.
package corridor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/chainage"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/spatial"
)

// Error taxonomy for corridor lookups. Callers recover these locally and
// turn them into re-prompts or explanatory replies.
var (
	ErrDataUnavailable = errors.New("corridor data unavailable")
	ErrUnknownCorridor = errors.New("unknown corridor")
	ErrUnparsableInput = errors.New("no numeric value in input")
	ErrOutOfRange      = errors.New("chainage out of corridor range")
	ErrNoMatch         = errors.New("no corridor match found")
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Waypoint is an immutable point on a corridor. X/Y are the local planar
// coordinates, computed once at load time with the store's shared projector.
type Waypoint struct {
	Chainage  float64
	Longitude float64
	Latitude  float64
	Label     string
	X         float64
	Y         float64
}

// DisplayLabel returns the human marker name, falling back to the formatted
// chainage when the waypoint is unlabeled.
func (w Waypoint) DisplayLabel() string {
	if w.Label != "" {
		return w.Label
	}
	return chainage.Format(w.Chainage)
}

// Corridor is a named route: at least one waypoint, sorted ascending by
// chainage. Equal chainage values are legal and form zero-length segments.
type Corridor struct {
	Name      string
	Waypoints []Waypoint
}

// Domain returns the valid chainage range of the corridor.
func (c *Corridor) Domain() (start, end float64) {
	return c.Waypoints[0].Chainage, c.Waypoints[len(c.Waypoints)-1].Chainage
}

// Store holds every corridor, read-only after construction. A single
// reference latitude (mean latitude over all waypoints of all corridors)
// anchors the planar projection so cross-corridor distances are comparable.
type Store struct {
	corridors map[string]*Corridor
	names     []string
	aliases   map[string]string
	aliasKeys []string
	projector *spatial.Projector
	refLat    float64
}

type waypointDoc struct {
	Chainage  *float64 `json:"chainage"`
	Distance  *float64 `json:"distance"`
	Diatance  *float64 `json:"diatance"` // misspelled key used by legacy data files
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
	Name      string   `json:"name"`
}

type corridorDoc struct {
	Lines map[string][]waypointDoc `json:"lines"`
}

// Load reads the corridor data file and builds a store. Load never fails
// hard: a missing or malformed file yields an empty store (every query then
// degrades to ErrDataUnavailable), and a corridor with unparsable waypoints
// is dropped whole rather than partially loaded.
func Load(path string, logger *zap.Logger) *Store {
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Error("corridor data file missing", zap.String("path", path), zap.Error(err))
		return NewStore(nil)
	}

	var doc corridorDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Error("failed to parse corridor data", zap.String("path", path), zap.Error(err))
		return NewStore(nil)
	}

	lines := make(map[string][]Waypoint, len(doc.Lines))
	for name, entries := range doc.Lines {
		waypoints, err := buildWaypoints(entries)
		if err != nil {
			logger.Warn("dropping corridor with invalid waypoints",
				zap.String("corridor", name), zap.Error(err))
			continue
		}
		lines[name] = waypoints
	}

	store := NewStore(lines)
	logger.Info("corridor data loaded",
		zap.Int("corridors", len(store.names)),
		zap.Float64("reference_latitude", store.refLat))
	return store
}

func buildWaypoints(entries []waypointDoc) ([]Waypoint, error) {
	if len(entries) == 0 {
		return nil, errors.New("corridor has no waypoints")
	}
	waypoints := make([]Waypoint, 0, len(entries))
	for i, entry := range entries {
		value := entry.Chainage
		if value == nil {
			value = entry.Distance
		}
		if value == nil {
			value = entry.Diatance
		}
		if value == nil || entry.Longitude == nil || entry.Latitude == nil {
			return nil, fmt.Errorf("waypoint %d missing chainage or coordinates", i)
		}
		waypoints = append(waypoints, Waypoint{
			Chainage:  *value,
			Longitude: *entry.Longitude,
			Latitude:  *entry.Latitude,
			Label:     entry.Name,
		})
	}
	sort.SliceStable(waypoints, func(i, j int) bool {
		return waypoints[i].Chainage < waypoints[j].Chainage
	})
	return waypoints, nil
}

// NewStore builds a store from already-parsed corridors. Waypoints must be
// sorted by chainage; planar coordinates are computed here.
func NewStore(lines map[string][]Waypoint) *Store {
	s := &Store{
		corridors: make(map[string]*Corridor, len(lines)),
		aliases:   make(map[string]string, len(lines)),
	}

	total := 0
	sumLat := 0.0
	for _, waypoints := range lines {
		for _, w := range waypoints {
			sumLat += w.Latitude
			total++
		}
	}
	if total > 0 {
		s.refLat = sumLat / float64(total)
	}
	s.projector = spatial.NewProjector(s.refLat)

	for name, waypoints := range lines {
		if len(waypoints) == 0 {
			continue
		}
		projected := make([]Waypoint, len(waypoints))
		for i, w := range waypoints {
			w.X, w.Y = s.projector.Project(w.Longitude, w.Latitude)
			projected[i] = w
		}
		s.corridors[name] = &Corridor{Name: name, Waypoints: projected}
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)

	for _, name := range s.names {
		key := normalizeName(name)
		if key == "" {
			continue
		}
		if _, exists := s.aliases[key]; !exists {
			s.aliases[key] = name
			s.aliasKeys = append(s.aliasKeys, key)
		}
	}
	return s
}

func normalizeName(text string) string {
	return whitespacePattern.ReplaceAllString(text, "")
}

// Empty reports whether the store holds no corridors.
func (s *Store) Empty() bool {
	return len(s.corridors) == 0
}

// Names returns corridor names in stable (sorted) order.
func (s *Store) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// ReferenceLatitude returns the shared projection latitude in degrees.
func (s *Store) ReferenceLatitude() float64 {
	return s.refLat
}

// Projector returns the shared planar projector.
func (s *Store) Projector() *spatial.Projector {
	return s.projector
}

// Get returns a corridor by exact stored name.
func (s *Store) Get(name string) (*Corridor, bool) {
	c, ok := s.corridors[name]
	return c, ok
}

// Resolve maps free-text input to a stored corridor name: exact match after
// whitespace normalization first, then the first alias the input starts
// with. This lets users type partial or descriptive route names.
func (s *Store) Resolve(text string) (string, bool) {
	normalized := normalizeName(text)
	if normalized == "" {
		return "", false
	}
	if name, ok := s.aliases[normalized]; ok {
		return name, true
	}
	for _, key := range s.aliasKeys {
		if strings.HasPrefix(normalized, key) {
			return s.aliases[key], true
		}
	}
	return "", false
}

// Bounds returns the first/last waypoint labels of a corridor plus a sample
// marker 5% into the corridor (at least 100 m in, clamped to the corridor
// span) for use in user prompts.
func (s *Store) Bounds(name string) (startLabel, endLabel, sampleMarker string) {
	c, ok := s.corridors[name]
	if !ok {
		return "", "", ""
	}

	first := c.Waypoints[0]
	last := c.Waypoints[len(c.Waypoints)-1]

	sample := first.Chainage
	span := last.Chainage - first.Chainage
	if span > 0 {
		step := span * 0.05
		if step < 100 {
			step = 100
		}
		if step > span {
			step = span
		}
		sample = first.Chainage + step
	}
	return first.DisplayLabel(), last.DisplayLabel(), chainage.Format(sample)
}
