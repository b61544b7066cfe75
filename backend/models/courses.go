package models

import "time"

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Course struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:150;not null" json:"title"`
	SubTitle     string    `gorm:"size:150" json:"sub_title,omitempty"`
	Description  string    `gorm:"size:500" json:"description,omitempty"`
	IsPaid       bool      `gorm:"not null;default:false" json:"is_paid"`
	Price        float64   `gorm:"not null;default:0" json:"price"`
	IsPublished  bool      `gorm:"not null;default:false;index" json:"is_published"`
	ImageRef     string    `gorm:"size:255" json:"image_ref,omitempty"`
	InstructorID uint      `gorm:"not null;index" json:"instructor_id"`
	CategoryID   uint      `gorm:"not null;index" json:"category_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Videos       []Video   `gorm:"constraint:OnDelete:CASCADE" json:"videos,omitempty"`
}

// Video order lives in sort_order; "order" is reserved in SQL.
type Video struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CourseID   uint      `gorm:"not null;index" json:"course_id"`
	Title      string    `gorm:"size:150;not null" json:"title"`
	ContentRef string    `gorm:"size:255;not null" json:"-"`
	Order      int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
