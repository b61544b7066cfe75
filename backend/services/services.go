// Package services holds the transactional domain logic behind the HTTP
// controllers: course content management, the progress ledger, the rating
// gate, enrollment and admin reporting.
package services

import (
	"errors"
	"math"
	"sort"

	"learnhub/backend/apperr"
	"learnhub/backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actor is the authenticated caller. The core trusts it as given.
type Actor struct {
	UserID uint
	Role   models.Role
}

func (a Actor) requireInstructor() error {
	switch a.Role {
	case models.RoleInstructor:
		return nil
	case models.RoleUser, models.RoleAdmin:
		return apperr.Forbidden("instructor role required")
	default:
		return apperr.Forbidden("unknown role")
	}
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
// SQLite serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func isEnrolled(tx *gorm.DB, userID, courseID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Wrap(err, "check enrollment")
	}
	return count > 0, nil
}

func findCourse(tx *gorm.DB, courseID uint) (*models.Course, error) {
	var course models.Course
	if err := tx.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrCourseNotFound
		}
		return nil, apperr.Wrap(err, "load course")
	}
	return &course, nil
}

// courseCompletion counts the course's current videos and how many of them
// the user has marked watched. Progress rows are joined against the live
// video set, so videos added later count as unwatched.
func courseCompletion(tx *gorm.DB, userID, courseID uint) (watched, total int, err error) {
	var totalCount int64
	if err := tx.Model(&models.Video{}).Where("course_id = ?", courseID).Count(&totalCount).Error; err != nil {
		return 0, 0, apperr.Wrap(err, "count videos")
	}
	var watchedCount int64
	err = tx.Model(&models.VideoProgress{}).
		Joins("JOIN videos ON videos.id = video_progress.video_id AND videos.course_id = ?", courseID).
		Where("video_progress.user_id = ? AND video_progress.watched = ?", userID, true).
		Count(&watchedCount).Error
	if err != nil {
		return 0, 0, apperr.Wrap(err, "count watched videos")
	}
	return int(watchedCount), int(totalCount), nil
}

func isComplete(watched, total int) bool {
	return total > 0 && watched == total
}

func sortVideos(videos []models.Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].Order != videos[j].Order {
			return videos[i].Order < videos[j].Order
		}
		return videos[i].ID < videos[j].ID
	})
}

// duplicateOrders returns every order value held by more than one video,
// ascending.
func duplicateOrders(videos []models.Video) []int {
	seen := make(map[int]int, len(videos))
	for _, v := range videos {
		seen[v.Order]++
	}
	var dups []int
	for order, n := range seen {
		if n > 1 {
			dups = append(dups, order)
		}
	}
	sort.Ints(dups)
	return dups
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
