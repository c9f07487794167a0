package models

// ReportEvent is a confirmed hazard report persisted from the chat flow or
// created through the admin API.
type ReportEvent struct {
	ID            int64    `json:"id"`
	EventType     string   `json:"event_type"`
	RouteLine     string   `json:"route_line"`
	TrackSide     string   `json:"track_side"`
	MileageText   string   `json:"mileage_text"`
	MileageMeters *float64 `json:"mileage_meters"`
	PhotoFilename *string  `json:"photo_filename"`
	Longitude     *float64 `json:"longitude"`
	Latitude      *float64 `json:"latitude"`
	LocationTitle *string  `json:"location_title"`
	LocationAddr  *string  `json:"location_address"`
	SourceType    *string  `json:"source_type"`
	SourceID      *string  `json:"source_id"`
	CreatedAt     string   `json:"created_at"`
}

// EventFilter narrows admin event queries.
type EventFilter struct {
	EventType string `form:"event_type"`
	RouteLine string `form:"route_line"`
	TrackSide string `form:"track_side"`
	HasPhoto  *bool  `form:"has_photo"`
	StartTime string `form:"start_time"`
	EndTime   string `form:"end_time"`
	Keyword   string `form:"keyword"`
	Page      int    `form:"page"`
	PageSize  int    `form:"limit"`
}
