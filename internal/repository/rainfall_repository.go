package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/database"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/models"
)

// RainfallRepository handles database operations for rainfall stations and
// their observations.
type RainfallRepository struct {
	db *sql.DB
}

// NewRainfallRepository creates a new rainfall repository.
func NewRainfallRepository(db *sql.DB) *RainfallRepository {
	return &RainfallRepository{db: db}
}

// StationRecord is one station row paired with one observation, as produced
// by an ingest cycle.
type StationRecord struct {
	StationID   string
	StationName string
	City        *string
	Town        *string
	Attribute   *string
	Latitude    float64
	Longitude   float64
	Elevation   *float64
	ObsTime     string
	Min10       *float64
	Hour1       *float64
	Hour3       *float64
	Hour6       *float64
	Hour12      *float64
	Hour24      *float64
}

// UpsertBatch writes one ingest cycle's stations and observations in a single
// transaction. Re-ingesting the same observation time overwrites in place.
func (r *RainfallRepository) UpsertBatch(records []StationRecord) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		stationStmt, err := tx.Prepare(`
			INSERT INTO stations (station_id, station_name, city, town, attribute, latitude, longitude, elevation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(station_id) DO UPDATE SET
				station_name = excluded.station_name,
				city = excluded.city,
				town = excluded.town,
				attribute = excluded.attribute,
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				elevation = excluded.elevation`)
		if err != nil {
			return fmt.Errorf("failed to prepare station upsert: %w", err)
		}
		defer stationStmt.Close()

		obsStmt, err := tx.Prepare(`
			INSERT INTO observations (station_id, obs_time, min_10, hour_1, hour_3, hour_6, hour_12, hour_24)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(station_id, obs_time) DO UPDATE SET
				min_10 = excluded.min_10,
				hour_1 = excluded.hour_1,
				hour_3 = excluded.hour_3,
				hour_6 = excluded.hour_6,
				hour_12 = excluded.hour_12,
				hour_24 = excluded.hour_24`)
		if err != nil {
			return fmt.Errorf("failed to prepare observation upsert: %w", err)
		}
		defer obsStmt.Close()

		for _, rec := range records {
			if _, err := stationStmt.Exec(
				rec.StationID, rec.StationName, rec.City, rec.Town, rec.Attribute,
				rec.Latitude, rec.Longitude, rec.Elevation,
			); err != nil {
				return fmt.Errorf("failed to upsert station %s: %w", rec.StationID, err)
			}
			if _, err := obsStmt.Exec(
				rec.StationID, rec.ObsTime,
				rec.Min10, rec.Hour1, rec.Hour3, rec.Hour6, rec.Hour12, rec.Hour24,
			); err != nil {
				return fmt.Errorf("failed to upsert observation %s@%s: %w", rec.StationID, rec.ObsTime, err)
			}
		}
		return nil
	})
}

// latestObservationQuery joins every station with its most recent observation.
const latestObservationQuery = `
	SELECT s.station_id, s.station_name, s.city, s.town, s.attribute,
		s.latitude, s.longitude, s.elevation,
		o.obs_time, o.min_10, o.hour_1, o.hour_3, o.hour_6, o.hour_12, o.hour_24
	FROM stations s
	JOIN observations o ON o.station_id = s.station_id
	WHERE o.obs_time = (
		SELECT MAX(obs_time) FROM observations WHERE station_id = s.station_id
	)`

func scanObservation(rows *sql.Rows) (models.StationObservation, error) {
	var obs models.StationObservation
	err := rows.Scan(
		&obs.StationID, &obs.StationName, &obs.City, &obs.Town, &obs.Attribute,
		&obs.Latitude, &obs.Longitude, &obs.Elevation,
		&obs.ObsTime, &obs.Min10, &obs.Hour1, &obs.Hour3, &obs.Hour6, &obs.Hour12, &obs.Hour24,
	)
	return obs, err
}

func (r *RainfallRepository) queryObservations(query string, args ...interface{}) ([]models.StationObservation, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var result []models.StationObservation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		result = append(result, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}
	return result, nil
}

// LatestAll returns the most recent observation for every station.
func (r *RainfallRepository) LatestAll() ([]models.StationObservation, error) {
	return r.queryObservations(latestObservationQuery + " ORDER BY s.station_id")
}

// LatestByStation returns the most recent observation for one station, nil
// when the station is unknown or has no observations.
func (r *RainfallRepository) LatestByStation(stationID string) (*models.StationObservation, error) {
	results, err := r.queryObservations(latestObservationQuery+" AND s.station_id = ?", stationID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// SearchByName matches station names or station IDs by substring.
func (r *RainfallRepository) SearchByName(name string) ([]models.StationObservation, error) {
	pattern := "%" + strings.TrimSpace(name) + "%"
	return r.queryObservations(
		latestObservationQuery+" AND (s.station_name LIKE ? OR s.station_id LIKE ?) ORDER BY s.station_name",
		pattern, pattern)
}

// SearchByDistrict matches stations whose city or town contains the keyword.
func (r *RainfallRepository) SearchByDistrict(district string) ([]models.StationObservation, error) {
	pattern := "%" + strings.TrimSpace(district) + "%"
	return r.queryObservations(
		latestObservationQuery+" AND (s.city LIKE ? OR s.town LIKE ?) ORDER BY s.station_id",
		pattern, pattern)
}

// LatestObsTime returns the newest observation time across all stations,
// empty when nothing has been ingested yet.
func (r *RainfallRepository) LatestObsTime() (string, error) {
	var obsTime sql.NullString
	err := r.db.QueryRow("SELECT MAX(obs_time) FROM observations").Scan(&obsTime)
	if err != nil {
		return "", fmt.Errorf("failed to read latest observation time: %w", err)
	}
	return obsTime.String, nil
}

// GetMeta reads a metadata value, empty string when absent.
func (r *RainfallRepository) GetMeta(key string) (string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM rainfall_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta writes a metadata value.
func (r *RainfallRepository) SetMeta(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO rainfall_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}
