package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/models"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/repository"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/spatial"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/stats"
)

// metaLastSuccessAt records when an ingest cycle last completed.
const metaLastSuccessAt = "last_success_at"

// pollRetryCap bounds the wait after a failed ingest cycle so transient
// upstream errors recover quickly.
const pollRetryCap = 2 * time.Minute

// RainfallFetcher downloads one cycle of station records.
type RainfallFetcher interface {
	Fetch() ([]repository.StationRecord, error)
}

// RainfallService answers rainfall queries from the local store and runs
// the ingest cycle that keeps it current.
type RainfallService struct {
	repo    *repository.RainfallRepository
	fetcher RainfallFetcher
	logger  *zap.Logger
}

// NewRainfallService creates a rainfall service. fetcher may be nil for a
// query-only instance (e.g. the API server when a separate poller runs).
func NewRainfallService(repo *repository.RainfallRepository, fetcher RainfallFetcher, logger *zap.Logger) *RainfallService {
	return &RainfallService{repo: repo, fetcher: fetcher, logger: logger}
}

// Latest returns up to limit station observations, newest first.
func (s *RainfallService) Latest(limit int) ([]models.StationObservation, error) {
	items, err := s.repo.LatestAll()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ObsTime > items[j].ObsTime
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// NearestByCoordinate returns the limit closest stations to a point.
func (s *RainfallService) NearestByCoordinate(longitude, latitude float64, limit int) ([]models.StationObservationWithDistance, error) {
	items, err := s.repo.LatestAll()
	if err != nil {
		return nil, err
	}

	results := make([]models.StationObservationWithDistance, 0, len(items))
	for _, item := range items {
		results = append(results, models.StationObservationWithDistance{
			StationObservation: item,
			DistanceMeters:     spatial.HaversineDistance(latitude, longitude, item.Latitude, item.Longitude),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SearchByStation matches station names or IDs by keyword.
func (s *RainfallService) SearchByStation(keyword string, limit int) ([]models.StationObservation, error) {
	items, err := s.repo.SearchByName(keyword)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// SearchByDistrict matches stations by city and optional town.
func (s *RainfallService) SearchByDistrict(city, town string, limit int) ([]models.StationObservation, error) {
	keyword := city
	if town != "" {
		keyword = town
	}
	items, err := s.repo.SearchByDistrict(keyword)
	if err != nil {
		return nil, err
	}
	// When both parts are supplied, require the city to match as well.
	if town != "" && city != "" {
		filtered := items[:0]
		for _, item := range items {
			if item.City != nil && strings.Contains(*item.City, city) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Station returns one station's latest observation, nil when unknown.
func (s *RainfallService) Station(stationID string) (*models.StationObservation, error) {
	return s.repo.LatestByStation(stationID)
}

// UpdatedAt reports the newest observation time held locally.
func (s *RainfallService) UpdatedAt() (string, error) {
	return s.repo.LatestObsTime()
}

// LastSuccessAt reports when the last ingest cycle completed, empty when
// none has.
func (s *RainfallService) LastSuccessAt() (string, error) {
	return s.repo.GetMeta(metaLastSuccessAt)
}

// WindowSummary aggregates one accumulation window across all reporting
// stations.
type WindowSummary struct {
	Reporting int     `json:"reporting"`
	Mean      float64 `json:"mean"`
	Max       float64 `json:"max"`
	P95       float64 `json:"p95"`
}

// Summary describes the current rainfall situation: per-window aggregates
// plus the wettest stations by 24-hour accumulation.
type Summary struct {
	Stations int                         `json:"stations"`
	Windows  map[string]WindowSummary    `json:"windows"`
	Wettest  []models.StationObservation `json:"wettest"`
}

func summarizeWindow(items []models.StationObservation, pick func(models.StationObservation) *float64) WindowSummary {
	var values []float64
	for _, item := range items {
		if v := pick(item); v != nil {
			values = append(values, *v)
		}
	}
	return WindowSummary{
		Reporting: len(values),
		Mean:      stats.Mean(values),
		Max:       stats.Max(values),
		P95:       stats.Percentile(values, 95),
	}
}

// Summarize computes the situation summary over the latest observations.
func (s *RainfallService) Summarize(wettestLimit int) (*Summary, error) {
	items, err := s.repo.LatestAll()
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Stations: len(items),
		Windows: map[string]WindowSummary{
			"min_10":  summarizeWindow(items, func(o models.StationObservation) *float64 { return o.Min10 }),
			"hour_1":  summarizeWindow(items, func(o models.StationObservation) *float64 { return o.Hour1 }),
			"hour_3":  summarizeWindow(items, func(o models.StationObservation) *float64 { return o.Hour3 }),
			"hour_6":  summarizeWindow(items, func(o models.StationObservation) *float64 { return o.Hour6 }),
			"hour_12": summarizeWindow(items, func(o models.StationObservation) *float64 { return o.Hour12 }),
			"hour_24": summarizeWindow(items, func(o models.StationObservation) *float64 { return o.Hour24 }),
		},
	}

	reporting := make([]models.StationObservation, 0, len(items))
	for _, item := range items {
		if item.Hour24 != nil {
			reporting = append(reporting, item)
		}
	}
	sort.SliceStable(reporting, func(i, j int) bool {
		return *reporting[i].Hour24 > *reporting[j].Hour24
	})
	if wettestLimit > 0 && len(reporting) > wettestLimit {
		reporting = reporting[:wettestLimit]
	}
	summary.Wettest = reporting
	return summary, nil
}

// RunOnce executes a single ingest cycle: download, upsert, stamp.
func (s *RainfallService) RunOnce(ctx context.Context) error {
	if s.fetcher == nil {
		return fmt.Errorf("rainfall fetcher not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := s.fetcher.Fetch()
	if err != nil {
		return fmt.Errorf("failed to fetch rainfall data: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("rainfall dataset returned no stations")
	}

	if err := s.repo.UpsertBatch(records); err != nil {
		return err
	}
	if err := s.repo.SetMeta(metaLastSuccessAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	s.logger.Info("rainfall data updated", zap.Int("stations", len(records)))
	return nil
}

// StartPoller runs ingest cycles until the context is cancelled. A failed
// cycle retries after at most pollRetryCap instead of the full interval.
func (s *RainfallService) StartPoller(ctx context.Context, interval time.Duration) {
	go func() {
		for {
			wait := interval
			if err := s.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("rainfall ingest failed", zap.Error(err))
				if wait > pollRetryCap {
					wait = pollRetryCap
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
}

