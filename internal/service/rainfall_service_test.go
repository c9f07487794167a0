package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/database"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/repository"
)

const legacyPayload = `{
	"records": {
		"location": [
			{
				"stationId": "C0A520",
				"locationName": "十分",
				"lat": 25.045,
				"lon": 121.775,
				"time": {"obsTime": "2026-08-23 10:00:00"},
				"parameter": [
					{"parameterName": "CITY", "parameterValue": "新北市"},
					{"parameterName": "TOWN", "parameterValue": "平溪區"},
					{"parameterName": "ATTRIBUTE", "parameterValue": "中央氣象署"}
				],
				"weatherElement": [
					{"elementName": "ELEV", "elementValue": 245.0},
					{"elementName": "MIN_10", "elementValue": 0.5},
					{"elementName": "RAIN", "elementValue": 2.0},
					{"elementName": "HOUR_3", "elementValue": "4.5"},
					{"elementName": "HOUR_24", "elementValue": "-"}
				]
			},
			{
				"stationId": "",
				"locationName": "缺編號",
				"lat": 25.0,
				"lon": 121.0,
				"time": {"obsTime": "2026-08-23 10:00:00"}
			}
		]
	}
}`

const stationPayload = `{
	"records": {
		"Station": [
			{
				"StationId": "81AI10",
				"StationName": "建安國小",
				"ObsTime": {"DateTime": "2026-08-23T10:00:00+08:00"},
				"GeoInfo": {
					"Coordinates": [
						{"CoordinateName": "TWD67", "StationLatitude": 24.92, "StationLongitude": 121.44},
						{"CoordinateName": "WGS84", "StationLatitude": 24.925, "StationLongitude": 121.446}
					],
					"CountyName": "新北市",
					"TownName": "新店區",
					"StationAltitude": "78.0"
				},
				"Maintainer": "水利署",
				"RainfallElement": {
					"Past10Min": {"Precipitation": 1.5},
					"Past1hr": {"Precipitation": 6.0},
					"Past24hr": {"Precipitation": "35.5"}
				}
			},
			{
				"StationId": "NOCOORD",
				"StationName": "無座標",
				"ObsTime": {"DateTime": "2026-08-23T10:00:00+08:00"},
				"GeoInfo": {"Coordinates": []}
			}
		]
	}
}`

func TestParseRainfallPayloadLegacySchema(t *testing.T) {
	records, err := ParseRainfallPayload([]byte(legacyPayload))
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "C0A520", rec.StationID)
	assert.Equal(t, "十分", rec.StationName)
	assert.InDelta(t, 25.045, rec.Latitude, 1e-9)
	assert.InDelta(t, 121.775, rec.Longitude, 1e-9)
	require.NotNil(t, rec.City)
	assert.Equal(t, "新北市", *rec.City)
	require.NotNil(t, rec.Elevation)
	assert.InDelta(t, 245.0, *rec.Elevation, 1e-9)
	require.NotNil(t, rec.Hour1)
	assert.InDelta(t, 2.0, *rec.Hour1, 1e-9)
	// Numeric string parses; "-" means missing.
	require.NotNil(t, rec.Hour3)
	assert.InDelta(t, 4.5, *rec.Hour3, 1e-9)
	assert.Nil(t, rec.Hour24)
}

func TestParseRainfallPayloadStationSchema(t *testing.T) {
	records, err := ParseRainfallPayload([]byte(stationPayload))
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "81AI10", rec.StationID)
	// WGS84 wins over other datums.
	assert.InDelta(t, 24.925, rec.Latitude, 1e-9)
	assert.InDelta(t, 121.446, rec.Longitude, 1e-9)
	require.NotNil(t, rec.Elevation)
	assert.InDelta(t, 78.0, *rec.Elevation, 1e-9)
	require.NotNil(t, rec.Attribute)
	assert.Equal(t, "水利署", *rec.Attribute)
	require.NotNil(t, rec.Min10)
	assert.InDelta(t, 1.5, *rec.Min10, 1e-9)
	require.NotNil(t, rec.Hour24)
	assert.InDelta(t, 35.5, *rec.Hour24, 1e-9)
	assert.Nil(t, rec.Hour12)
}

func TestParseRainfallPayloadMalformed(t *testing.T) {
	_, err := ParseRainfallPayload([]byte("{bad"))
	assert.Error(t, err)

	records, err := ParseRainfallPayload([]byte(`{"records": {}}`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

type fakeFetcher struct {
	records []repository.StationRecord
	err     error
}

func (f *fakeFetcher) Fetch() ([]repository.StationRecord, error) {
	return f.records, f.err
}

func f64Ptr(v float64) *float64 { return &v }

func testRecords() []repository.StationRecord {
	city := "新北市"
	return []repository.StationRecord{
		{
			StationID: "C0A520", StationName: "十分", City: &city,
			Latitude: 25.045, Longitude: 121.775,
			ObsTime: "2026-08-23T10:00:00+08:00",
			Hour1:   f64Ptr(2.0), Hour24: f64Ptr(15.0),
		},
		{
			StationID: "C0A530", StationName: "瑞芳", City: &city,
			Latitude: 25.108, Longitude: 121.809,
			ObsTime: "2026-08-23T10:00:00+08:00",
			Hour1:   f64Ptr(6.0), Hour24: f64Ptr(40.0),
		},
	}
}

func newTestService(t *testing.T, fetcher RainfallFetcher) *RainfallService {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRainfallService(repository.NewRainfallRepository(db), fetcher, zap.NewNop())
}

func TestRunOnceIngestsAndStamps(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{records: testRecords()})

	require.NoError(t, svc.RunOnce(context.Background()))

	items, err := svc.Latest(0)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	stamp, err := svc.LastSuccessAt()
	require.NoError(t, err)
	assert.NotEmpty(t, stamp)

	updated, err := svc.UpdatedAt()
	require.NoError(t, err)
	assert.Equal(t, "2026-08-23T10:00:00+08:00", updated)
}

func TestRunOnceFailures(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{err: errors.New("network down")})
	assert.Error(t, svc.RunOnce(context.Background()))

	svc = newTestService(t, &fakeFetcher{})
	assert.Error(t, svc.RunOnce(context.Background()), "empty dataset is an error")

	svc = newTestService(t, nil)
	assert.Error(t, svc.RunOnce(context.Background()))
}

func TestNearestByCoordinate(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{records: testRecords()})
	require.NoError(t, svc.RunOnce(context.Background()))

	nearest, err := svc.NearestByCoordinate(121.775, 25.045, 1)
	require.NoError(t, err)
	require.Len(t, nearest, 1)
	assert.Equal(t, "C0A520", nearest[0].StationID)
	assert.Less(t, nearest[0].DistanceMeters, 100.0)

	nearest, err = svc.NearestByCoordinate(121.809, 25.108, 2)
	require.NoError(t, err)
	require.Len(t, nearest, 2)
	assert.Equal(t, "C0A530", nearest[0].StationID)
}

func TestSearchByDistrictCityAndTown(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{records: testRecords()})
	require.NoError(t, svc.RunOnce(context.Background()))

	items, err := svc.SearchByDistrict("新北市", "", 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = svc.SearchByStation("十分", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "C0A520", items[0].StationID)
}

func TestSummarize(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{records: testRecords()})
	require.NoError(t, svc.RunOnce(context.Background()))

	summary, err := svc.Summarize(1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Stations)

	hour1 := summary.Windows["hour_1"]
	assert.Equal(t, 2, hour1.Reporting)
	assert.InDelta(t, 4.0, hour1.Mean, 1e-9)
	assert.InDelta(t, 6.0, hour1.Max, 1e-9)

	// No station reported a 12-hour value.
	assert.Equal(t, 0, summary.Windows["hour_12"].Reporting)

	require.Len(t, summary.Wettest, 1)
	assert.Equal(t, "C0A530", summary.Wettest[0].StationID)
}
