package models

import "time"

// Rating is immutable once created; at most one per (user, course).
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_rating_user_course" json:"user_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_rating_user_course;index" json:"course_id"`
	Score     int       `gorm:"not null;check:score >= 1 AND score <= 5" json:"rating"`
	Comment   *string   `gorm:"size:1000" json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RatingRow struct {
	ID        uint      `json:"id"`
	UserName  string    `json:"user_name"`
	Score     int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RatingSummary struct {
	CourseID     uint           `json:"course_id"`
	Average      float64        `json:"average_rating"`
	Total        int            `json:"total_ratings"`
	Distribution map[string]int `json:"rating_distribution"`
}

type Eligibility struct {
	CanRate bool   `json:"can_rate"`
	Reason  string `json:"reason"`
	Watched int    `json:"watched_videos,omitempty"`
	Total   int    `json:"total_videos,omitempty"`
}
