package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/models"
)

// EventRepository handles database operations for reported events.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, event_type, route_line, track_side, mileage_text, mileage_meters,
	photo_filename, longitude, latitude, location_title, location_address,
	source_type, source_id, created_at`

func scanEvent(scanner interface{ Scan(...interface{}) error }) (models.ReportEvent, error) {
	var e models.ReportEvent
	err := scanner.Scan(
		&e.ID, &e.EventType, &e.RouteLine, &e.TrackSide, &e.MileageText, &e.MileageMeters,
		&e.PhotoFilename, &e.Longitude, &e.Latitude, &e.LocationTitle, &e.LocationAddr,
		&e.SourceType, &e.SourceID, &e.CreatedAt,
	)
	return e, err
}

func buildEventConditions(filter models.EventFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.EventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.RouteLine != "" {
		conditions = append(conditions, "route_line = ?")
		args = append(args, filter.RouteLine)
	}
	if filter.TrackSide != "" {
		conditions = append(conditions, "track_side = ?")
		args = append(args, filter.TrackSide)
	}
	if filter.HasPhoto != nil {
		if *filter.HasPhoto {
			conditions = append(conditions, "photo_filename IS NOT NULL AND photo_filename != ''")
		} else {
			conditions = append(conditions, "(photo_filename IS NULL OR photo_filename = '')")
		}
	}
	if filter.StartTime != "" {
		conditions = append(conditions, "datetime(created_at) >= datetime(?)")
		args = append(args, filter.StartTime)
	}
	if filter.EndTime != "" {
		conditions = append(conditions, "datetime(created_at) <= datetime(?)")
		args = append(args, filter.EndTime)
	}
	if filter.Keyword != "" {
		conditions = append(conditions,
			"(event_type LIKE ? OR route_line LIKE ? OR mileage_text LIKE ? OR location_title LIKE ? OR location_address LIKE ?)")
		pattern := "%" + filter.Keyword + "%"
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Query retrieves events with filtering and pagination, newest first.
func (r *EventRepository) Query(filter models.EventFilter) ([]models.ReportEvent, int64, error) {
	where, args := buildEventConditions(filter)

	var total int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM reported_events"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	if filter.PageSize > 200 {
		filter.PageSize = 200
	}
	offset := (filter.Page - 1) * filter.PageSize

	query := "SELECT " + eventColumns + " FROM reported_events" + where +
		" ORDER BY datetime(created_at) DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.ReportEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read events: %w", err)
	}

	return events, total, nil
}

// GetByID retrieves a single event, nil when not found.
func (r *EventRepository) GetByID(id int64) (*models.ReportEvent, error) {
	row := r.db.QueryRow("SELECT "+eventColumns+" FROM reported_events WHERE id = ?", id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

// Create inserts a new event and returns its ID.
func (r *EventRepository) Create(e *models.ReportEvent) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO reported_events (
			event_type, route_line, track_side, mileage_text, mileage_meters,
			photo_filename, longitude, latitude, location_title, location_address,
			source_type, source_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventType, e.RouteLine, e.TrackSide, e.MileageText, e.MileageMeters,
		e.PhotoFilename, e.Longitude, e.Latitude, e.LocationTitle, e.LocationAddr,
		e.SourceType, e.SourceID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted event id: %w", err)
	}
	e.ID = id
	return id, nil
}

// Update overwrites the mutable fields of an event.
func (r *EventRepository) Update(e *models.ReportEvent) error {
	result, err := r.db.Exec(`
		UPDATE reported_events SET
			event_type = ?, route_line = ?, track_side = ?, mileage_text = ?,
			mileage_meters = ?, photo_filename = ?, longitude = ?, latitude = ?,
			location_title = ?, location_address = ?
		WHERE id = ?`,
		e.EventType, e.RouteLine, e.TrackSide, e.MileageText,
		e.MileageMeters, e.PhotoFilename, e.Longitude, e.Latitude,
		e.LocationTitle, e.LocationAddr, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an event by ID.
func (r *EventRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM reported_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
