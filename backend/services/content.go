package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"learnhub/backend/apperr"
	"learnhub/backend/models"
	"learnhub/backend/storage"
	"learnhub/backend/utils"

	"gorm.io/gorm"
)

// Upload is one incoming file of a multipart request.
type Upload struct {
	Filename string
	Body     io.Reader
}

// VideoEdit changes the metadata (and, for replacements, the content) of an
// existing video. Nil fields are left unchanged.
type VideoEdit struct {
	VideoID uint    `json:"video_id" validate:"required"`
	Title   *string `json:"title,omitempty" validate:"omitempty,min=1,max=150"`
	Order   *int    `json:"order,omitempty"`
}

// NewVideoMeta describes an appended video. A missing order defaults to 0.
type NewVideoMeta struct {
	Title string `json:"title" validate:"required,max=150"`
	Order *int   `json:"order,omitempty"`
}

// VideoBatch is one atomic change to a course's video list. Any subset of the
// parts may be present. NewVideos pairs index-wise with NewVideoMeta and
// ReplacementFiles with Replacements.
type VideoBatch struct {
	Edits            []VideoEdit
	NewVideos        []Upload
	NewVideoMeta     []NewVideoMeta
	Replacements     []VideoEdit
	ReplacementFiles []Upload
}

const (
	OutcomeApplied  = "applied"
	OutcomeNotFound = "not_found"

	OpEdit    = "edit"
	OpReplace = "replace"
	OpCreate  = "create"
)

// ItemOutcome reports what happened to one edit, replacement or append.
type ItemOutcome struct {
	Op      string `json:"op"`
	Index   int    `json:"index"`
	VideoID uint   `json:"video_id,omitempty"`
	Status  string `json:"status"`
}

type BatchResult struct {
	Videos   []models.Video `json:"videos"`
	Outcomes []ItemOutcome  `json:"outcomes"`
}

func (b VideoBatch) validate() error {
	if len(b.NewVideos) != len(b.NewVideoMeta) {
		return apperr.Validation("new video files and metadata counts differ").
			WithDetails(map[string]int{"files": len(b.NewVideos), "metadata": len(b.NewVideoMeta)})
	}
	if len(b.ReplacementFiles) != len(b.Replacements) {
		return apperr.Validation("replacement files and metadata counts differ").
			WithDetails(map[string]int{"files": len(b.ReplacementFiles), "metadata": len(b.Replacements)})
	}
	for i := range b.Edits {
		if err := utils.Validate(b.Edits[i]); err != nil {
			return err
		}
	}
	for i := range b.NewVideoMeta {
		if err := utils.Validate(b.NewVideoMeta[i]); err != nil {
			return err
		}
	}
	for i := range b.Replacements {
		if err := utils.Validate(b.Replacements[i]); err != nil {
			return err
		}
	}
	return nil
}

// CourseInput is the payload for creating a course.
type CourseInput struct {
	Title       string   `json:"title" validate:"required,max=150"`
	SubTitle    string   `json:"sub_title" validate:"max=150"`
	Description string   `json:"description" validate:"max=500"`
	CategoryID  uint     `json:"category_id" validate:"required"`
	IsPaid      bool     `json:"is_paid"`
	Price       *float64 `json:"price"`
}

// CourseUpdate is a partial course edit; nil fields are unchanged.
type CourseUpdate struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=150"`
	SubTitle    *string  `json:"sub_title" validate:"omitempty,max=150"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	CategoryID  *uint    `json:"category_id"`
	IsPaid      *bool    `json:"is_paid"`
	Price       *float64 `json:"price"`
}

// ContentManager owns course and video mutation for instructors.
type ContentManager struct {
	db    *gorm.DB
	blobs storage.BlobStore
	log   *utils.Logger
}

func NewContentManager(db *gorm.DB, blobs storage.BlobStore, log *utils.Logger) *ContentManager {
	return &ContentManager{db: db, blobs: blobs, log: log}
}

// editableCourse loads a course the actor owns and that is not published.
func editableCourse(tx *gorm.DB, actor Actor, courseID uint) (*models.Course, error) {
	course, err := ownedCourse(tx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if course.IsPublished {
		return nil, apperr.ErrCoursePublished
	}
	return course, nil
}

func ownedCourse(tx *gorm.DB, actor Actor, courseID uint) (*models.Course, error) {
	if err := actor.requireInstructor(); err != nil {
		return nil, err
	}
	course, err := findCourse(tx, courseID)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != actor.UserID {
		return nil, apperr.ErrNotCourseOwner
	}
	return course, nil
}

// normalizePricing keeps a free course at price 0 and rejects a paid course
// without a positive price.
func normalizePricing(course *models.Course) error {
	if !course.IsPaid {
		course.Price = 0
		return nil
	}
	if course.Price <= 0 {
		return apperr.Validation("paid course requires a positive price").
			WithDetails(map[string]string{"price": "must be greater than 0"})
	}
	return nil
}

func (m *ContentManager) categoryExists(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperr.Wrap(err, "check category")
	}
	if count == 0 {
		return apperr.ErrCategoryNotFound
	}
	return nil
}

func (m *ContentManager) CreateCourse(ctx context.Context, actor Actor, in CourseInput) (*models.Course, error) {
	if err := actor.requireInstructor(); err != nil {
		return nil, err
	}
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	course := models.Course{
		Title:        strings.TrimSpace(in.Title),
		SubTitle:     in.SubTitle,
		Description:  in.Description,
		IsPaid:       in.IsPaid,
		InstructorID: actor.UserID,
		CategoryID:   in.CategoryID,
	}
	if in.Price != nil {
		course.Price = *in.Price
	}
	if err := normalizePricing(&course); err != nil {
		return nil, err
	}
	db := m.db.WithContext(ctx)
	if err := m.categoryExists(db, in.CategoryID); err != nil {
		return nil, err
	}
	if err := db.Create(&course).Error; err != nil {
		return nil, apperr.Wrap(err, "create course")
	}
	m.log.Info("course created", "course_id", course.ID, "instructor_id", actor.UserID)
	return &course, nil
}

func (m *ContentManager) UpdateCourse(ctx context.Context, actor Actor, courseID uint, in CourseUpdate) (*models.Course, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var updated *models.Course
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		course, err := editableCourse(lockForUpdate(tx), actor, courseID)
		if err != nil {
			return err
		}
		if in.Title != nil {
			course.Title = strings.TrimSpace(*in.Title)
		}
		if in.SubTitle != nil {
			course.SubTitle = *in.SubTitle
		}
		if in.Description != nil {
			course.Description = *in.Description
		}
		if in.CategoryID != nil {
			if err := m.categoryExists(tx, *in.CategoryID); err != nil {
				return err
			}
			course.CategoryID = *in.CategoryID
		}
		if in.IsPaid != nil {
			course.IsPaid = *in.IsPaid
		}
		if in.Price != nil {
			course.Price = *in.Price
		}
		if err := normalizePricing(course); err != nil {
			return err
		}
		if err := tx.Save(course).Error; err != nil {
			return apperr.Wrap(err, "update course")
		}
		updated = course
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetCourseImage stores a new cover image and drops the previous one.
func (m *ContentManager) SetCourseImage(ctx context.Context, actor Actor, courseID uint, img Upload) (*models.Course, error) {
	if _, err := editableCourse(m.db.WithContext(ctx), actor, courseID); err != nil {
		return nil, err
	}
	ref, err := m.blobs.Put(ctx, fmt.Sprintf("courses/%d/images", courseID), img.Filename, img.Body)
	if err != nil {
		return nil, apperr.Wrap(err, "store course image")
	}
	var (
		updated *models.Course
		oldRef  string
	)
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		course, err := editableCourse(lockForUpdate(tx), actor, courseID)
		if err != nil {
			return err
		}
		oldRef = course.ImageRef
		course.ImageRef = ref
		if err := tx.Model(course).Update("image_ref", ref).Error; err != nil {
			return apperr.Wrap(err, "update course image")
		}
		updated = course
		return nil
	})
	if err != nil {
		m.release(ctx, ref)
		return nil, err
	}
	m.release(ctx, oldRef)
	return updated, nil
}

// ManageVideos applies a batch of edits, appends and content replacements to
// a course's videos as one unit. Either every change commits and the course's
// orders are distinct, or nothing changes.
func (m *ContentManager) ManageVideos(ctx context.Context, actor Actor, courseID uint, batch VideoBatch) (*BatchResult, error) {
	if err := batch.validate(); err != nil {
		return nil, err
	}
	if _, err := editableCourse(m.db.WithContext(ctx), actor, courseID); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("courses/%d/videos", courseID)
	newRefs, err := m.putAll(ctx, prefix, batch.NewVideos)
	if err != nil {
		return nil, err
	}
	replRefs, err := m.putAll(ctx, prefix, batch.ReplacementFiles)
	if err != nil {
		m.release(ctx, newRefs...)
		return nil, err
	}

	var (
		result   *BatchResult
		obsolete []string
	)
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		obsolete = obsolete[:0]
		course, err := editableCourse(lockForUpdate(tx), actor, courseID)
		if err != nil {
			return err
		}

		var videos []models.Video
		if err := tx.Where("course_id = ?", course.ID).Find(&videos).Error; err != nil {
			return apperr.Wrap(err, "load videos")
		}
		byID := make(map[uint]*models.Video, len(videos))
		for i := range videos {
			byID[videos[i].ID] = &videos[i]
		}
		dirty := make(map[uint]bool)
		outcomes := make([]ItemOutcome, 0, len(batch.Edits)+len(batch.Replacements)+len(batch.NewVideoMeta))

		for i, e := range batch.Edits {
			v, ok := byID[e.VideoID]
			if !ok {
				outcomes = append(outcomes, ItemOutcome{Op: OpEdit, Index: i, VideoID: e.VideoID, Status: OutcomeNotFound})
				continue
			}
			applyEdit(v, e)
			dirty[v.ID] = true
			outcomes = append(outcomes, ItemOutcome{Op: OpEdit, Index: i, VideoID: v.ID, Status: OutcomeApplied})
		}

		for i, r := range batch.Replacements {
			v, ok := byID[r.VideoID]
			if !ok {
				obsolete = append(obsolete, replRefs[i])
				outcomes = append(outcomes, ItemOutcome{Op: OpReplace, Index: i, VideoID: r.VideoID, Status: OutcomeNotFound})
				continue
			}
			obsolete = append(obsolete, v.ContentRef)
			v.ContentRef = replRefs[i]
			applyEdit(v, r)
			dirty[v.ID] = true
			outcomes = append(outcomes, ItemOutcome{Op: OpReplace, Index: i, VideoID: v.ID, Status: OutcomeApplied})
		}

		for i := range videos {
			v := &videos[i]
			if !dirty[v.ID] {
				continue
			}
			err := tx.Model(&models.Video{}).Where("id = ?", v.ID).Updates(map[string]interface{}{
				"title":       v.Title,
				"sort_order":  v.Order,
				"content_ref": v.ContentRef,
			}).Error
			if err != nil {
				return apperr.Wrap(err, "update video")
			}
		}

		for i, meta := range batch.NewVideoMeta {
			v := models.Video{
				CourseID:   course.ID,
				Title:      strings.TrimSpace(meta.Title),
				ContentRef: newRefs[i],
			}
			if meta.Order != nil {
				v.Order = *meta.Order
			}
			if err := tx.Create(&v).Error; err != nil {
				return apperr.Wrap(err, "create video")
			}
			outcomes = append(outcomes, ItemOutcome{Op: OpCreate, Index: i, VideoID: v.ID, Status: OutcomeApplied})
		}

		var final []models.Video
		if err := tx.Where("course_id = ?", course.ID).Find(&final).Error; err != nil {
			return apperr.Wrap(err, "reload videos")
		}
		if dups := duplicateOrders(final); len(dups) > 0 {
			return apperr.ErrDuplicateOrder.WithDetails(map[string][]int{"duplicate_orders": dups})
		}
		sortVideos(final)
		result = &BatchResult{Videos: final, Outcomes: outcomes}
		return nil
	})
	if err != nil {
		m.release(ctx, append(newRefs, replRefs...)...)
		return nil, err
	}
	m.release(ctx, obsolete...)
	m.log.Info("course videos updated",
		"course_id", courseID,
		"edits", len(batch.Edits),
		"appended", len(batch.NewVideoMeta),
		"replaced", len(batch.Replacements),
	)
	return result, nil
}

func applyEdit(v *models.Video, e VideoEdit) {
	if e.Title != nil {
		v.Title = strings.TrimSpace(*e.Title)
	}
	if e.Order != nil {
		v.Order = *e.Order
	}
}

// DeleteVideos removes the listed videos of a course along with their
// progress rows. IDs that do not belong to the course are ignored; it fails
// with NotFound only when none match.
func (m *ContentManager) DeleteVideos(ctx context.Context, actor Actor, courseID uint, videoIDs []uint) (int, error) {
	if len(videoIDs) == 0 {
		return 0, apperr.Validation("video_ids is required")
	}
	var refs []string
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refs = refs[:0]
		if _, err := editableCourse(lockForUpdate(tx), actor, courseID); err != nil {
			return err
		}
		var videos []models.Video
		if err := tx.Where("course_id = ? AND id IN ?", courseID, videoIDs).Find(&videos).Error; err != nil {
			return apperr.Wrap(err, "load videos")
		}
		if len(videos) == 0 {
			return apperr.ErrVideoNotFound
		}
		ids := make([]uint, 0, len(videos))
		for _, v := range videos {
			ids = append(ids, v.ID)
			refs = append(refs, v.ContentRef)
		}
		if err := tx.Where("video_id IN ?", ids).Delete(&models.VideoProgress{}).Error; err != nil {
			return apperr.Wrap(err, "delete video progress")
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Video{}).Error; err != nil {
			return apperr.Wrap(err, "delete videos")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.release(ctx, refs...)
	m.log.Info("course videos deleted", "course_id", courseID, "count", len(refs))
	return len(refs), nil
}

// DeleteCourse removes an unpublished course with its videos, progress and
// ratings. Payment records are kept.
func (m *ContentManager) DeleteCourse(ctx context.Context, actor Actor, courseID uint) error {
	var refs []string
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refs = refs[:0]
		course, err := editableCourse(lockForUpdate(tx), actor, courseID)
		if err != nil {
			return err
		}
		var videos []models.Video
		if err := tx.Where("course_id = ?", courseID).Find(&videos).Error; err != nil {
			return apperr.Wrap(err, "load videos")
		}
		for _, v := range videos {
			refs = append(refs, v.ContentRef)
		}
		if course.ImageRef != "" {
			refs = append(refs, course.ImageRef)
		}
		for _, model := range []interface{}{&models.VideoProgress{}, &models.Rating{}, &models.Enrollment{}, &models.Video{}} {
			if err := tx.Where("course_id = ?", courseID).Delete(model).Error; err != nil {
				return apperr.Wrap(err, "delete course children")
			}
		}
		if err := tx.Delete(&models.Course{}, courseID).Error; err != nil {
			return apperr.Wrap(err, "delete course")
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.release(ctx, refs...)
	m.log.Info("course deleted", "course_id", courseID, "instructor_id", actor.UserID)
	return nil
}

// SetPublished publishes or unpublishes a course. A course needs at least one
// video to be published and no enrollments to be unpublished.
func (m *ContentManager) SetPublished(ctx context.Context, actor Actor, courseID uint, publish bool) (*models.Course, error) {
	var updated *models.Course
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		course, err := ownedCourse(lockForUpdate(tx), actor, courseID)
		if err != nil {
			return err
		}
		if course.IsPublished == publish {
			updated = course
			return nil
		}
		var count int64
		if publish {
			if err := tx.Model(&models.Video{}).Where("course_id = ?", courseID).Count(&count).Error; err != nil {
				return apperr.Wrap(err, "count videos")
			}
			if count == 0 {
				return apperr.ErrNoVideos
			}
		} else {
			if err := tx.Model(&models.Enrollment{}).Where("course_id = ?", courseID).Count(&count).Error; err != nil {
				return apperr.Wrap(err, "count enrollments")
			}
			if count > 0 {
				return apperr.ErrHasEnrollments.WithDetails(map[string]int64{"enrollments": count})
			}
		}
		if err := tx.Model(course).Update("is_published", publish).Error; err != nil {
			return apperr.Wrap(err, "update publish state")
		}
		course.IsPublished = publish
		updated = course
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("course publish state changed", "course_id", courseID, "published", publish)
	return updated, nil
}

// ListOwnCourses returns the actor's courses with their video counts.
func (m *ContentManager) ListOwnCourses(ctx context.Context, actor Actor) ([]models.CourseSummary, error) {
	if err := actor.requireInstructor(); err != nil {
		return nil, err
	}
	var rows []models.CourseSummary
	err := m.db.WithContext(ctx).
		Table("courses").
		Select("courses.id, courses.title, courses.sub_title, courses.is_paid, courses.price, courses.is_published, courses.category_id, COUNT(videos.id) AS videos").
		Joins("LEFT JOIN videos ON videos.course_id = courses.id").
		Where("courses.instructor_id = ?", actor.UserID).
		Group("courses.id, courses.title, courses.sub_title, courses.is_paid, courses.price, courses.is_published, courses.category_id").
		Order("courses.id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Wrap(err, "list courses")
	}
	return rows, nil
}

// OwnCourse returns one of the actor's courses with its videos in order.
func (m *ContentManager) OwnCourse(ctx context.Context, actor Actor, courseID uint) (*models.Course, error) {
	db := m.db.WithContext(ctx)
	course, err := ownedCourse(db, actor, courseID)
	if err != nil {
		return nil, err
	}
	if err := db.Where("course_id = ?", courseID).Find(&course.Videos).Error; err != nil {
		return nil, apperr.Wrap(err, "load videos")
	}
	sortVideos(course.Videos)
	return course, nil
}

// OpenVideo streams a video's content to its instructor, an admin or an
// enrolled learner.
func (m *ContentManager) OpenVideo(ctx context.Context, actor Actor, videoID uint) (io.ReadCloser, string, error) {
	db := m.db.WithContext(ctx)
	var video models.Video
	if err := db.First(&video, videoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperr.ErrVideoNotFound
		}
		return nil, "", apperr.Wrap(err, "load video")
	}
	course, err := findCourse(db, video.CourseID)
	if err != nil {
		return nil, "", err
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleInstructor, models.RoleUser:
		if course.InstructorID != actor.UserID {
			ok, err := isEnrolled(db, actor.UserID, course.ID)
			if err != nil {
				return nil, "", err
			}
			if !ok {
				return nil, "", apperr.ErrNotEnrolled
			}
		}
	default:
		return nil, "", apperr.Forbidden("unknown role")
	}
	rc, err := m.blobs.Open(ctx, video.ContentRef)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return nil, "", apperr.NotFound("video content missing")
	}
	if err != nil {
		return nil, "", apperr.Wrap(err, "open video content")
	}
	return rc, storage.ContentType(video.ContentRef), nil
}

func (m *ContentManager) putAll(ctx context.Context, prefix string, uploads []Upload) ([]string, error) {
	refs := make([]string, 0, len(uploads))
	for _, u := range uploads {
		ref, err := m.blobs.Put(ctx, prefix, u.Filename, u.Body)
		if err != nil {
			m.release(ctx, refs...)
			return nil, apperr.Wrap(err, "store video content")
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// release deletes blobs best-effort. Failures leave orphans and are logged.
func (m *ContentManager) release(ctx context.Context, refs ...string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := m.blobs.Delete(ctx, ref); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			m.log.Warn("failed to delete blob", "ref", ref, "error", err)
		}
	}
}
