package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Enrollment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID   uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course;index" json:"course_id"`
	EnrolledAt time.Time `gorm:"not null" json:"enrolled_at"`
}

const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentFailed  = "failed"
)

// Payment keeps a copy of the course instructor so revenue survives course
// deletion.
type Payment struct {
	gorm.Model
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	CourseID        uint           `gorm:"not null;index" json:"course_id"`
	InstructorID    uint           `gorm:"not null;index" json:"instructor_id"`
	TransactionID   string         `gorm:"size:100;uniqueIndex;not null" json:"transaction_id"`
	Amount          float64        `gorm:"not null" json:"amount"`
	Currency        string         `gorm:"size:10;not null;default:BDT" json:"currency"`
	Status          string         `gorm:"size:20;not null;default:pending;index" json:"status"`
	GatewayResponse datatypes.JSON `json:"gateway_response,omitempty"`
}

// EnrolledCourse is the flat row behind "my enrollments".
type EnrolledCourse struct {
	CourseID   uint      `json:"course_id"`
	Title      string    `json:"title"`
	IsPaid     bool      `json:"is_paid"`
	EnrolledAt time.Time `json:"enrolled_at"`
}
