package services

import (
	"context"
	"errors"
	"time"

	"learnhub/backend/apperr"
	"learnhub/backend/models"
	"learnhub/backend/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressLedger records per-video watch state and derives course completion.
type ProgressLedger struct {
	db  *gorm.DB
	log *utils.Logger
}

func NewProgressLedger(db *gorm.DB, log *utils.Logger) *ProgressLedger {
	return &ProgressLedger{db: db, log: log}
}

// Report upserts the caller's watch state for a video. The caller must be
// enrolled in the video's course.
func (l *ProgressLedger) Report(ctx context.Context, userID, videoID uint, watched bool) (*models.VideoProgress, error) {
	db := l.db.WithContext(ctx)
	var video models.Video
	if err := db.First(&video, videoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrVideoNotFound
		}
		return nil, apperr.Wrap(err, "load video")
	}
	ok, err := isEnrolled(db, userID, video.CourseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrNotEnrolled
	}

	row := models.VideoProgress{
		UserID:    userID,
		VideoID:   videoID,
		CourseID:  video.CourseID,
		Watched:   watched,
		UpdatedAt: time.Now().UTC(),
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"watched", "course_id", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, apperr.Wrap(err, "save progress")
	}

	var stored models.VideoProgress
	if err := db.Where("user_id = ? AND video_id = ?", userID, videoID).First(&stored).Error; err != nil {
		return nil, apperr.Wrap(err, "reload progress")
	}
	l.log.Debug("progress reported", "user_id", userID, "video_id", videoID, "watched", watched)
	return &stored, nil
}

// CourseProgress returns the caller's per-video watch state and completion for
// a course they are enrolled in.
func (l *ProgressLedger) CourseProgress(ctx context.Context, userID, courseID uint) (*models.CourseProgress, error) {
	db := l.db.WithContext(ctx)
	if _, err := findCourse(db, courseID); err != nil {
		return nil, err
	}
	ok, err := isEnrolled(db, userID, courseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrNotEnrolled
	}

	var videos []models.Video
	if err := db.Where("course_id = ?", courseID).Find(&videos).Error; err != nil {
		return nil, apperr.Wrap(err, "load videos")
	}
	sortVideos(videos)

	var watchedIDs []uint
	err = db.Model(&models.VideoProgress{}).
		Where("user_id = ? AND course_id = ? AND watched = ?", userID, courseID, true).
		Pluck("video_id", &watchedIDs).Error
	if err != nil {
		return nil, apperr.Wrap(err, "load progress")
	}
	seen := make(map[uint]bool, len(watchedIDs))
	for _, id := range watchedIDs {
		seen[id] = true
	}

	progress := &models.CourseProgress{
		CourseID: courseID,
		Total:    len(videos),
		Videos:   make([]models.VideoProgressItem, 0, len(videos)),
	}
	for _, v := range videos {
		if seen[v.ID] {
			progress.Watched++
		}
		progress.Videos = append(progress.Videos, models.VideoProgressItem{
			ID:      v.ID,
			Title:   v.Title,
			Order:   v.Order,
			Watched: seen[v.ID],
		})
	}
	if progress.Total > 0 {
		progress.Percentage = round2(float64(progress.Watched) * 100 / float64(progress.Total))
	}
	progress.IsComplete = isComplete(progress.Watched, progress.Total)
	return progress, nil
}
