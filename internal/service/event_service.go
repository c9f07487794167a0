// Package service holds the business logic between the HTTP/chat layers
// and the repositories.
package service

import (
	"fmt"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/models"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/repository"
)

// EventService wraps event persistence with input validation.
type EventService struct {
	repo *repository.EventRepository
}

// NewEventService creates an event service.
func NewEventService(repo *repository.EventRepository) *EventService {
	return &EventService{repo: repo}
}

// List returns events matching the filter plus the unpaginated total.
func (s *EventService) List(filter models.EventFilter) ([]models.ReportEvent, int64, error) {
	return s.repo.Query(filter)
}

// Get returns one event, nil when not found.
func (s *EventService) Get(id int64) (*models.ReportEvent, error) {
	return s.repo.GetByID(id)
}

func validateEvent(e *models.ReportEvent) error {
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.RouteLine == "" {
		return fmt.Errorf("route_line is required")
	}
	if e.TrackSide == "" {
		return fmt.Errorf("track_side is required")
	}
	if e.MileageText == "" {
		return fmt.Errorf("mileage_text is required")
	}
	return nil
}

// Create validates and persists a new event.
func (s *EventService) Create(e *models.ReportEvent) (int64, error) {
	if err := validateEvent(e); err != nil {
		return 0, err
	}
	return s.repo.Create(e)
}

// Update validates and persists changes to an existing event.
func (s *EventService) Update(e *models.ReportEvent) error {
	if err := validateEvent(e); err != nil {
		return err
	}
	return s.repo.Update(e)
}

// Delete removes an event.
func (s *EventService) Delete(id int64) error {
	return s.repo.Delete(id)
}
