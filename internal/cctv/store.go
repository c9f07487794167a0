// Package cctv loads the roadside camera inventory from a GeoJSON feature
// collection and answers coordinate, name and district queries over it.
package cctv

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/spatial"
)

// Entry is one camera with its match keys precomputed at load time.
type Entry struct {
	Identifier     string
	Name           string
	Longitude      float64
	Latitude       float64
	URL            string
	normalizedName string
	normalizedID   string
	areaTokens     []string
}

// DisplayName prefers the human name over the raw identifier.
func (e Entry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	if e.Identifier != "" {
		return e.Identifier
	}
	return "未命名 CCTV"
}

// NearbyEntry pairs an entry with its distance from a query point.
type NearbyEntry struct {
	Entry
	DistanceMeters float64
}

// Store holds the loaded camera entries. Entries are immutable after load.
type Store struct {
	entries []Entry
}

var (
	cleanPattern = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	areaPattern  = regexp.MustCompile(`[\x{4e00}-\x{9fff}]{1,6}[市縣區鄉鎮里村]`)
	splitPattern = regexp.MustCompile(`[\s,，、/／]+`)
)

// normalizeForMatch folds width variants, unifies 台/臺 and strips
// everything but letters, digits and underscore.
func normalizeForMatch(text string) string {
	processed := norm.NFKC.String(text)
	processed = strings.ToLower(strings.ReplaceAll(processed, "台", "臺"))
	return cleanPattern.ReplaceAllString(processed, "")
}

func tokenizeKeywords(text string) []string {
	processed := norm.NFKC.String(text)
	processed = strings.ToLower(strings.ReplaceAll(processed, "台", "臺"))
	var tokens []string
	for _, chunk := range splitPattern.Split(processed, -1) {
		cleaned := cleanPattern.ReplaceAllString(chunk, "")
		if cleaned != "" {
			tokens = append(tokens, cleaned)
		}
	}
	return tokens
}

func extractAreaTokens(text string) []string {
	seen := make(map[string]bool)
	for _, match := range areaPattern.FindAllString(text, -1) {
		normalized := normalizeForMatch(match)
		if normalized != "" {
			seen[normalized] = true
		}
	}
	tokens := make([]string, 0, len(seen))
	for token := range seen {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

type geoJSONDoc struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]interface{} `json:"properties"`
	} `json:"features"`
}

func propString(props map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := props[key]; ok {
			if text, ok := value.(string); ok && text != "" {
				return text
			}
		}
	}
	return ""
}

func rawFieldString(props map[string]interface{}, key string) string {
	raw, ok := props["raw_fields"].(map[string]interface{})
	if !ok {
		return ""
	}
	if text, ok := raw[key].(string); ok {
		return text
	}
	return ""
}

// Load reads a GeoJSON camera inventory. A missing or malformed file yields
// an empty store and a log entry rather than a startup failure; features
// without coordinates or a stream URL are dropped.
func Load(path string, logger *zap.Logger) *Store {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read cctv data", zap.String("path", path), zap.Error(err))
		return &Store{}
	}

	var doc geoJSONDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("failed to parse cctv data", zap.String("path", path), zap.Error(err))
		return &Store{}
	}

	var entries []Entry
	for _, feature := range doc.Features {
		coords := feature.Geometry.Coordinates
		if len(coords) < 2 {
			continue
		}
		props := feature.Properties

		identifier := propString(props, "id", "ID", "CCTVID", "station_id")
		name := propString(props, "name", "Location")
		if name == "" {
			name = rawFieldString(props, "Location")
		}
		if name == "" {
			name = identifier
		}
		url := propString(props, "stream_url", "url")
		if url == "" {
			url = rawFieldString(props, "url")
		}
		if url == "" {
			continue
		}

		displayName := name
		if displayName == identifier {
			displayName = ""
		}
		entries = append(entries, Entry{
			Identifier:     identifier,
			Name:           displayName,
			Longitude:      coords[0],
			Latitude:       coords[1],
			URL:            url,
			normalizedName: normalizeForMatch(name),
			normalizedID:   normalizeForMatch(identifier),
			areaTokens:     extractAreaTokens(name),
		})
	}

	logger.Info("loaded cctv entries", zap.String("path", path), zap.Int("count", len(entries)))
	return &Store{entries: entries}
}

// NewStore builds a store directly from entries, mostly for tests. Match
// keys are recomputed so callers only supply the public fields.
func NewStore(entries []Entry) *Store {
	prepared := make([]Entry, len(entries))
	for i, e := range entries {
		name := e.Name
		if name == "" {
			name = e.Identifier
		}
		e.normalizedName = normalizeForMatch(name)
		e.normalizedID = normalizeForMatch(e.Identifier)
		e.areaTokens = extractAreaTokens(name)
		prepared[i] = e
	}
	return &Store{entries: prepared}
}

// All returns every loaded entry.
func (s *Store) All() []Entry {
	return s.entries
}

// Empty reports whether no entries loaded.
func (s *Store) Empty() bool {
	return len(s.entries) == 0
}

// Nearest returns up to limit cameras ordered by distance from the point.
func (s *Store) Nearest(longitude, latitude float64, limit int) []NearbyEntry {
	results := make([]NearbyEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		dist := spatial.HaversineDistance(latitude, longitude, entry.Latitude, entry.Longitude)
		results = append(results, NearbyEntry{Entry: entry, DistanceMeters: dist})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// nameScore ranks a name match: exact name, exact id, substring of name,
// substring of id, then token match. Lower sorts first; ok=false means no
// match at all.
func nameScore(entry Entry, normalizedQuery string, tokens []string) (primary, secondary int, ok bool) {
	if normalizedQuery != "" {
		if normalizedQuery == entry.normalizedName {
			return 0, 0, true
		}
		if normalizedQuery == entry.normalizedID {
			return 0, 1, true
		}
		if idx := strings.Index(entry.normalizedName, normalizedQuery); idx >= 0 {
			return 1, idx, true
		}
		if idx := strings.Index(entry.normalizedID, normalizedQuery); idx >= 0 {
			return 2, idx, true
		}
	}
	if len(tokens) > 0 && matchesTokens(entry, tokens) {
		return 3, len(tokens), true
	}
	return 0, 0, false
}

// matchesTokens requires every token to appear in the name, id or one of
// the extracted area tokens.
func matchesTokens(entry Entry, tokens []string) bool {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if strings.Contains(entry.normalizedName, token) || strings.Contains(entry.normalizedID, token) {
			continue
		}
		inArea := false
		for _, area := range entry.areaTokens {
			if strings.Contains(area, token) {
				inArea = true
				break
			}
		}
		if !inArea {
			return false
		}
	}
	return true
}

// SearchByName finds cameras whose name or identifier matches a keyword,
// best matches first.
func (s *Store) SearchByName(keyword string, limit int) []Entry {
	normalized := normalizeForMatch(keyword)
	tokens := tokenizeKeywords(keyword)
	if normalized == "" && len(tokens) == 0 {
		return nil
	}

	type scored struct {
		primary, secondary int
		entry              Entry
	}
	var matches []scored
	for _, entry := range s.entries {
		primary, secondary, ok := nameScore(entry, normalized, tokens)
		if ok {
			matches = append(matches, scored{primary, secondary, entry})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].primary != matches[j].primary {
			return matches[i].primary < matches[j].primary
		}
		return matches[i].secondary < matches[j].secondary
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	entries := make([]Entry, len(matches))
	for i, m := range matches {
		entries[i] = m.entry
	}
	return entries
}

// SearchByDistrict matches every keyword token, sorted by display name.
func (s *Store) SearchByDistrict(keyword string, limit int) []Entry {
	tokens := tokenizeKeywords(keyword)
	if len(tokens) == 0 {
		return nil
	}
	var matches []Entry
	for _, entry := range s.entries {
		if matchesTokens(entry, tokens) {
			matches = append(matches, entry)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DisplayName() < matches[j].DisplayName()
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// FormatDistance renders a distance for chat replies.
func FormatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.1f 公里", meters/1000)
	}
	return fmt.Sprintf("%.0f 公尺", meters)
}
