package models

// StationObservation joins a rainfall station's metadata with its latest
// accumulated precipitation values (mm over trailing windows). Nil values
// mean the station did not report that window.
type StationObservation struct {
	StationID   string   `json:"station_id"`
	StationName string   `json:"station_name"`
	City        *string  `json:"city"`
	Town        *string  `json:"town"`
	Attribute   *string  `json:"attribute"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Elevation   *float64 `json:"elevation"`
	ObsTime     string   `json:"obs_time"`
	Min10       *float64 `json:"min_10"`
	Hour1       *float64 `json:"hour_1"`
	Hour3       *float64 `json:"hour_3"`
	Hour6       *float64 `json:"hour_6"`
	Hour12      *float64 `json:"hour_12"`
	Hour24      *float64 `json:"hour_24"`
}

// DistanceMeters is attached when an observation comes out of a
// nearest-by-coordinate search.
type StationObservationWithDistance struct {
	StationObservation
	DistanceMeters float64 `json:"distance_meters"`
}
