package repository

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/database"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string   { return &s }
func f64Ptr(v float64) *float64 { return &v }
func boolPtr(b bool) *bool      { return &b }

func sampleEvent() *models.ReportEvent {
	return &models.ReportEvent{
		EventType:     "落石",
		RouteLine:     "平溪線",
		TrackSide:     "東正線",
		MileageText:   "K3+250",
		MileageMeters: f64Ptr(3250),
		PhotoFilename: strPtr("abc123.jpg"),
		SourceType:    strPtr("user"),
		SourceID:      strPtr("U0001"),
	}
}

func TestEventRepositoryCreateAndGet(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))

	id, err := repo.Create(sampleEvent())
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "落石", got.EventType)
	assert.Equal(t, "K3+250", got.MileageText)
	require.NotNil(t, got.MileageMeters)
	assert.InDelta(t, 3250, *got.MileageMeters, 1e-9)
	assert.NotEmpty(t, got.CreatedAt)

	missing, err := repo.GetByID(99999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEventRepositoryQueryFilters(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))

	e1 := sampleEvent()
	_, err := repo.Create(e1)
	require.NoError(t, err)

	e2 := sampleEvent()
	e2.EventType = "土石滑落"
	e2.RouteLine = "深澳線"
	e2.PhotoFilename = nil
	_, err = repo.Create(e2)
	require.NoError(t, err)

	events, total, err := repo.Query(models.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, events, 2)

	events, total, err = repo.Query(models.EventFilter{EventType: "落石"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	assert.Equal(t, "平溪線", events[0].RouteLine)

	events, total, err = repo.Query(models.EventFilter{HasPhoto: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	assert.Equal(t, "深澳線", events[0].RouteLine)

	_, total, err = repo.Query(models.EventFilter{Keyword: "深澳"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.Query(models.EventFilter{Keyword: "不存在"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestEventRepositoryQueryPagination(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))

	for i := 0; i < 5; i++ {
		_, err := repo.Create(sampleEvent())
		require.NoError(t, err)
	}

	events, total, err := repo.Query(models.EventFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, events, 2)

	events, _, err = repo.Query(models.EventFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventRepositoryUpdateAndDelete(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))

	e := sampleEvent()
	id, err := repo.Create(e)
	require.NoError(t, err)

	e.EventType = "路樹侵入"
	e.MileageText = "K4+000"
	require.NoError(t, repo.Update(e))

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "路樹侵入", got.EventType)
	assert.Equal(t, "K4+000", got.MileageText)

	require.NoError(t, repo.Delete(id))
	got, err = repo.GetByID(id)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, repo.Delete(id), sql.ErrNoRows)

	e.ID = 99999
	assert.ErrorIs(t, repo.Update(e), sql.ErrNoRows)
}

func sampleStationRecords(obsTime string) []StationRecord {
	return []StationRecord{
		{
			StationID:   "C0A520",
			StationName: "十分",
			City:        strPtr("新北市"),
			Town:        strPtr("平溪區"),
			Latitude:    25.045,
			Longitude:   121.775,
			ObsTime:     obsTime,
			Min10:       f64Ptr(0.5),
			Hour1:       f64Ptr(2.0),
			Hour24:      f64Ptr(15.5),
		},
		{
			StationID:   "C0A530",
			StationName: "瑞芳",
			City:        strPtr("新北市"),
			Town:        strPtr("瑞芳區"),
			Latitude:    25.108,
			Longitude:   121.809,
			ObsTime:     obsTime,
			Hour1:       f64Ptr(0.0),
		},
	}
}

func TestRainfallRepositoryUpsertAndLatest(t *testing.T) {
	repo := NewRainfallRepository(openTestDB(t))

	require.NoError(t, repo.UpsertBatch(sampleStationRecords("2026-08-23T10:00:00+08:00")))

	all, err := repo.LatestAll()
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Newer cycle supersedes in LatestAll.
	newer := sampleStationRecords("2026-08-23T10:10:00+08:00")
	newer[0].Hour1 = f64Ptr(3.5)
	require.NoError(t, repo.UpsertBatch(newer))

	obs, err := repo.LatestByStation("C0A520")
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, "2026-08-23T10:10:00+08:00", obs.ObsTime)
	require.NotNil(t, obs.Hour1)
	assert.InDelta(t, 3.5, *obs.Hour1, 1e-9)

	missing, err := repo.LatestByStation("NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRainfallRepositoryUpsertSameTimeOverwrites(t *testing.T) {
	repo := NewRainfallRepository(openTestDB(t))

	obsTime := "2026-08-23T10:00:00+08:00"
	require.NoError(t, repo.UpsertBatch(sampleStationRecords(obsTime)))

	revised := sampleStationRecords(obsTime)
	revised[0].Hour24 = f64Ptr(20.0)
	require.NoError(t, repo.UpsertBatch(revised))

	obs, err := repo.LatestByStation("C0A520")
	require.NoError(t, err)
	require.NotNil(t, obs)
	require.NotNil(t, obs.Hour24)
	assert.InDelta(t, 20.0, *obs.Hour24, 1e-9)

	all, err := repo.LatestAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRainfallRepositorySearch(t *testing.T) {
	repo := NewRainfallRepository(openTestDB(t))
	require.NoError(t, repo.UpsertBatch(sampleStationRecords("2026-08-23T10:00:00+08:00")))

	byName, err := repo.SearchByName("十分")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "C0A520", byName[0].StationID)

	byDistrict, err := repo.SearchByDistrict("瑞芳")
	require.NoError(t, err)
	require.Len(t, byDistrict, 1)
	assert.Equal(t, "C0A530", byDistrict[0].StationID)

	byCity, err := repo.SearchByDistrict("新北")
	require.NoError(t, err)
	assert.Len(t, byCity, 2)

	none, err := repo.SearchByName("不存在")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRainfallRepositoryMeta(t *testing.T) {
	repo := NewRainfallRepository(openTestDB(t))

	value, err := repo.GetMeta("last_success_at")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, repo.SetMeta("last_success_at", "2026-08-23T10:00:00+08:00"))
	require.NoError(t, repo.SetMeta("last_success_at", "2026-08-23T10:10:00+08:00"))

	value, err = repo.GetMeta("last_success_at")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-23T10:10:00+08:00", value)
}
