package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/repository"
)

// RainfallDatasetID is the CWA open-data dataset for automatic rain gauge
// observations.
const RainfallDatasetID = "O-A0002-001"

// DefaultCWABaseURL is the public CWA REST datastore endpoint.
const DefaultCWABaseURL = "https://opendata.cwa.gov.tw/api/v1/rest/datastore"

// CWAClient downloads and parses rain gauge observations. The dataset has
// shipped in two schema generations (lowercase "location" entries and the
// newer "Station" entries); both are handled.
type CWAClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCWAClient builds a client. An empty baseURL selects the public
// endpoint.
func NewCWAClient(baseURL, apiKey string) *CWAClient {
	if baseURL == "" {
		baseURL = DefaultCWABaseURL
	}
	return &CWAClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// flexFloat decodes a number that CWA may ship as a JSON number, a numeric
// string, "-" for missing, or a {"value": ...} wrapper.
type flexFloat struct {
	Value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	f.Value = nil
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var wrapper struct {
			Value flexFloat `json:"value"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil
		}
		f.Value = wrapper.Value.Value
		return nil
	}
	var text string
	if strings.HasPrefix(trimmed, `"`) {
		if err := json.Unmarshal(data, &text); err != nil {
			return nil
		}
	} else {
		text = trimmed
	}
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return nil
	}
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	f.Value = &parsed
	return nil
}

type cwaResponse struct {
	Records struct {
		Location []cwaLocation `json:"location"`
		Station  []cwaStation  `json:"Station"`
	} `json:"records"`
}

// cwaLocation is the legacy schema.
type cwaLocation struct {
	StationID    string    `json:"stationId"`
	LocationName string    `json:"locationName"`
	Lat          flexFloat `json:"lat"`
	Lon          flexFloat `json:"lon"`
	Time         struct {
		ObsTime string `json:"obsTime"`
	} `json:"time"`
	Parameter []struct {
		Name  string `json:"parameterName"`
		Value string `json:"parameterValue"`
	} `json:"parameter"`
	WeatherElement []struct {
		Name  string    `json:"elementName"`
		Value flexFloat `json:"elementValue"`
	} `json:"weatherElement"`
}

// cwaStation is the current schema.
type cwaStation struct {
	StationID   string `json:"StationId"`
	StationName string `json:"StationName"`
	ObsTime     struct {
		DateTime string `json:"DateTime"`
	} `json:"ObsTime"`
	GeoInfo struct {
		Coordinates []struct {
			CoordinateName   string    `json:"CoordinateName"`
			StationLatitude  flexFloat `json:"StationLatitude"`
			StationLongitude flexFloat `json:"StationLongitude"`
		} `json:"Coordinates"`
		CountyName      string    `json:"CountyName"`
		TownName        string    `json:"TownName"`
		StationAltitude flexFloat `json:"StationAltitude"`
	} `json:"GeoInfo"`
	Maintainer      string `json:"Maintainer"`
	RainfallElement map[string]struct {
		Precipitation flexFloat `json:"Precipitation"`
	} `json:"RainfallElement"`
}

// Fetch downloads the dataset and returns one record per parsable station.
func (c *CWAClient) Fetch() ([]repository.StationRecord, error) {
	url := fmt.Sprintf("%s/%s?Authorization=%s", c.baseURL, RainfallDatasetID, c.apiKey)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rainfall request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sr-twrw-line-bot/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download rainfall data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rainfall download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rainfall response: %w", err)
	}
	return ParseRainfallPayload(body)
}

// ParseRainfallPayload parses either schema generation into station
// records. Entries missing an ID, name, time or coordinates are skipped.
func ParseRainfallPayload(body []byte) ([]repository.StationRecord, error) {
	var doc cwaResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rainfall data: %w", err)
	}

	var records []repository.StationRecord
	for _, loc := range doc.Records.Location {
		if rec, ok := parseLegacyLocation(loc); ok {
			records = append(records, rec)
		}
	}
	for _, station := range doc.Records.Station {
		if rec, ok := parseStation(station); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func parseLegacyLocation(loc cwaLocation) (repository.StationRecord, bool) {
	if loc.StationID == "" || loc.LocationName == "" || loc.Time.ObsTime == "" {
		return repository.StationRecord{}, false
	}
	if loc.Lat.Value == nil || loc.Lon.Value == nil {
		return repository.StationRecord{}, false
	}

	params := make(map[string]string, len(loc.Parameter))
	for _, p := range loc.Parameter {
		params[p.Name] = p.Value
	}
	elements := make(map[string]*float64, len(loc.WeatherElement))
	for _, e := range loc.WeatherElement {
		elements[e.Name] = e.Value.Value
	}

	rec := repository.StationRecord{
		StationID:   loc.StationID,
		StationName: loc.LocationName,
		Latitude:    *loc.Lat.Value,
		Longitude:   *loc.Lon.Value,
		Elevation:   elements["ELEV"],
		ObsTime:     loc.Time.ObsTime,
		Min10:       elements["MIN_10"],
		Hour1:       elements["RAIN"],
		Hour3:       elements["HOUR_3"],
		Hour6:       elements["HOUR_6"],
		Hour12:      elements["HOUR_12"],
		Hour24:      elements["HOUR_24"],
	}
	if city := params["CITY"]; city != "" {
		rec.City = &city
	}
	if town := params["TOWN"]; town != "" {
		rec.Town = &town
	}
	if attr := params["ATTRIBUTE"]; attr != "" {
		rec.Attribute = &attr
	}
	return rec, true
}

func parseStation(station cwaStation) (repository.StationRecord, bool) {
	if station.StationID == "" || station.StationName == "" || station.ObsTime.DateTime == "" {
		return repository.StationRecord{}, false
	}

	// Prefer WGS84 coordinates when multiple datums are listed.
	var lat, lon *float64
	for _, coord := range station.GeoInfo.Coordinates {
		if coord.StationLatitude.Value == nil || coord.StationLongitude.Value == nil {
			continue
		}
		if strings.EqualFold(coord.CoordinateName, "WGS84") {
			lat = coord.StationLatitude.Value
			lon = coord.StationLongitude.Value
			break
		}
		if lat == nil {
			lat = coord.StationLatitude.Value
			lon = coord.StationLongitude.Value
		}
	}
	if lat == nil || lon == nil {
		return repository.StationRecord{}, false
	}

	rainfall := func(keys ...string) *float64 {
		for _, key := range keys {
			if element, ok := station.RainfallElement[key]; ok && element.Precipitation.Value != nil {
				return element.Precipitation.Value
			}
		}
		return nil
	}

	rec := repository.StationRecord{
		StationID:   station.StationID,
		StationName: station.StationName,
		Latitude:    *lat,
		Longitude:   *lon,
		Elevation:   station.GeoInfo.StationAltitude.Value,
		ObsTime:     station.ObsTime.DateTime,
		Min10:       rainfall("Past10Min"),
		Hour1:       rainfall("Past1hr", "Past1Hr"),
		Hour3:       rainfall("Past3hr", "Past3Hr"),
		Hour6:       rainfall("Past6hr", "Past6Hr"),
		Hour12:      rainfall("Past12hr"),
		Hour24:      rainfall("Past24hr"),
	}
	if city := station.GeoInfo.CountyName; city != "" {
		rec.City = &city
	}
	if town := station.GeoInfo.TownName; town != "" {
		rec.Town = &town
	}
	if attr := station.Maintainer; attr != "" {
		rec.Attribute = &attr
	}
	return rec, true
}
