package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Detection is one face-search result above the reporting bar: a processed
// frame that produced a match candidate.
type Detection struct {
	gorm.Model
	Camera     string         `gorm:"index"`                // camera the frame came from
	GroupID    string         `gorm:"index"`                // group the search was scoped to
	UserID     string         `gorm:"index"`                // matched person id
	Confidence float64        // match score reported by the server
	Matched    bool           `gorm:"index"`                // score reached the camera's threshold
	FilePath   string         // saved frame, relative to the match dir; empty below threshold
	UserInfo   datatypes.JSON `gorm:"type:json;null"`       // free-form user_info from the server
	Source     string         `gorm:"index;default:poll"`   // poll or api_upload
}

// Statistics summarizes the detection history for the status endpoint.
type Statistics struct {
	TotalDetections int64       `json:"total_detections"`
	MatchedCount    int64       `json:"matched_count"`
	GroupCount      int         `json:"group_count"`
	PersonCount     int         `json:"person_count"`
	LatestDetection time.Time   `json:"latest_detection"`
	RecentMatches   []Detection `json:"recent_matches,omitempty"`
}
