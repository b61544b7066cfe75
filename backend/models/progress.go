package models

import "time"

// VideoProgress is unique per (user, video). CourseID is denormalized from the
// video for per-course aggregation.
type VideoProgress struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_progress_user_video" json:"user_id"`
	VideoID   uint      `gorm:"not null;uniqueIndex:idx_progress_user_video;index" json:"video_id"`
	CourseID  uint      `gorm:"not null;index" json:"course_id"`
	Watched   bool      `gorm:"not null;default:false" json:"watched"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (VideoProgress) TableName() string { return "video_progress" }

type VideoProgressItem struct {
	ID      uint   `json:"id"`
	Title   string `json:"title"`
	Order   int    `json:"order"`
	Watched bool   `json:"watched"`
}

type CourseProgress struct {
	CourseID   uint                `json:"course_id"`
	Total      int                 `json:"total_videos"`
	Watched    int                 `json:"watched_videos"`
	Percentage float64             `json:"completion_percentage"`
	IsComplete bool                `json:"is_completed"`
	Videos     []VideoProgressItem `json:"videos"`
}
