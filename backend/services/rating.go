package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"learnhub/backend/apperr"
	"learnhub/backend/cache"
	"learnhub/backend/models"
	"learnhub/backend/utils"

	"gorm.io/gorm"
)

const (
	ReasonNotEnrolled  = "not enrolled"
	ReasonAlreadyRated = "already rated"
	ReasonNotCompleted = "course not completed"
	ReasonEligible     = "eligible"

	maxCommentLen = 1000
)

// RatingGate admits one immutable rating per learner who completed a course.
type RatingGate struct {
	db    *gorm.DB
	cache cache.RatingSummaryCache
	log   *utils.Logger
}

func NewRatingGate(db *gorm.DB, summaries cache.RatingSummaryCache, log *utils.Logger) *RatingGate {
	if summaries == nil {
		summaries = cache.NopRatingSummaryCache{}
	}
	return &RatingGate{db: db, cache: summaries, log: log}
}

// eligibility checks, in order: enrollment, an existing rating, completion.
func eligibility(tx *gorm.DB, userID, courseID uint) (models.Eligibility, error) {
	enrolled, err := isEnrolled(tx, userID, courseID)
	if err != nil {
		return models.Eligibility{}, err
	}
	if !enrolled {
		return models.Eligibility{Reason: ReasonNotEnrolled}, nil
	}
	var rated int64
	if err := tx.Model(&models.Rating{}).Where("user_id = ? AND course_id = ?", userID, courseID).Count(&rated).Error; err != nil {
		return models.Eligibility{}, apperr.Wrap(err, "check rating")
	}
	if rated > 0 {
		return models.Eligibility{Reason: ReasonAlreadyRated}, nil
	}
	watched, total, err := courseCompletion(tx, userID, courseID)
	if err != nil {
		return models.Eligibility{}, err
	}
	if !isComplete(watched, total) {
		return models.Eligibility{Reason: ReasonNotCompleted, Watched: watched, Total: total}, nil
	}
	return models.Eligibility{CanRate: true, Reason: ReasonEligible, Watched: watched, Total: total}, nil
}

func (g *RatingGate) CanRate(ctx context.Context, userID, courseID uint) (models.Eligibility, error) {
	return eligibility(g.db.WithContext(ctx), userID, courseID)
}

// Submit records a rating after re-checking eligibility in the same
// transaction.
func (g *RatingGate) Submit(ctx context.Context, userID, courseID uint, score int, comment *string) (*models.Rating, error) {
	var rating *models.Rating
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var enrollment models.Enrollment
		err := lockForUpdate(tx).Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotEnrolled
		}
		if err != nil {
			return apperr.Wrap(err, "load enrollment")
		}

		elig, err := eligibility(tx, userID, courseID)
		if err != nil {
			return err
		}
		switch elig.Reason {
		case ReasonEligible:
		case ReasonNotEnrolled:
			return apperr.ErrNotEnrolled
		case ReasonAlreadyRated:
			return apperr.ErrAlreadyRated
		case ReasonNotCompleted:
			return apperr.ErrNotCompleted.WithDetails(map[string]int{
				"watched_videos": elig.Watched,
				"total_videos":   elig.Total,
			})
		default:
			return apperr.New(apperr.KindInternal, "unknown eligibility reason "+elig.Reason)
		}

		if score < 1 || score > 5 {
			return apperr.ErrInvalidScore
		}
		r := models.Rating{UserID: userID, CourseID: courseID, Score: score}
		if comment != nil {
			if text := strings.TrimSpace(*comment); text != "" {
				if len(text) > maxCommentLen {
					return apperr.Validation("comment is too long").
						WithDetails(map[string]string{"comment": "must be at most 1000 characters"})
				}
				r.Comment = &text
			}
		}
		if err := tx.Create(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrAlreadyRated
			}
			return apperr.Wrap(err, "create rating")
		}
		rating = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := g.cache.Invalidate(ctx, courseID); err != nil {
		g.log.Warn("failed to invalidate rating summary", "course_id", courseID, "error", err)
	}
	g.log.Info("course rated", "course_id", courseID, "user_id", userID, "score", score)
	return rating, nil
}

// List returns a course's ratings, newest first.
func (g *RatingGate) List(ctx context.Context, courseID uint) ([]models.RatingRow, error) {
	rows := []models.RatingRow{}
	err := g.db.WithContext(ctx).
		Table("ratings").
		Select("ratings.id, COALESCE(users.first_name || ' ' || users.last_name, '') AS user_name, ratings.score, ratings.comment, ratings.created_at").
		Joins("LEFT JOIN users ON users.id = ratings.user_id").
		Where("ratings.course_id = ?", courseID).
		Order("ratings.created_at DESC, ratings.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Wrap(err, "list ratings")
	}
	return rows, nil
}

// Summary returns average, count and 1..5 distribution, served from the
// cache when present.
func (g *RatingGate) Summary(ctx context.Context, courseID uint) (*models.RatingSummary, error) {
	if cached, err := g.cache.Get(ctx, courseID); err != nil {
		g.log.Warn("rating summary cache read failed", "course_id", courseID, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	var buckets []struct {
		Score int
		Count int
	}
	err := g.db.WithContext(ctx).
		Model(&models.Rating{}).
		Select("score, COUNT(*) AS count").
		Where("course_id = ?", courseID).
		Group("score").
		Scan(&buckets).Error
	if err != nil {
		return nil, apperr.Wrap(err, "summarize ratings")
	}

	summary := models.RatingSummary{CourseID: courseID, Distribution: make(map[string]int, 5)}
	for s := 1; s <= 5; s++ {
		summary.Distribution[strconv.Itoa(s)] = 0
	}
	sum := 0
	for _, b := range buckets {
		summary.Distribution[strconv.Itoa(b.Score)] = b.Count
		summary.Total += b.Count
		sum += b.Score * b.Count
	}
	if summary.Total > 0 {
		summary.Average = round2(float64(sum) / float64(summary.Total))
	}
	if err := g.cache.Set(ctx, summary); err != nil {
		g.log.Warn("rating summary cache write failed", "course_id", courseID, "error", err)
	}
	return &summary, nil
}
