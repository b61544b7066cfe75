package services

import (
	"context"
	"errors"
	"strings"

	"learnhub/backend/apperr"
	"learnhub/backend/models"
	"learnhub/backend/utils"

	"gorm.io/gorm"
)

// AdminService covers user moderation, the category list and the revenue
// report.
type AdminService struct {
	db         *gorm.DB
	feePercent float64
	log        *utils.Logger
}

func NewAdminService(db *gorm.DB, feePercent float64, log *utils.Logger) *AdminService {
	return &AdminService{db: db, feePercent: feePercent, log: log}
}

func (s *AdminService) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	q := s.db.WithContext(ctx).Order("id")
	if role != "" {
		r, err := models.ParseRole(role)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		q = q.Where("role = ?", r)
	}
	users := []models.User{}
	if err := q.Find(&users).Error; err != nil {
		return nil, apperr.Wrap(err, "list users")
	}
	return users, nil
}

// SetBlocked blocks or unblocks a user. Admins cannot block themselves.
func (s *AdminService) SetBlocked(ctx context.Context, actor Actor, userID uint, blocked bool) (*models.User, error) {
	if actor.UserID == userID {
		return nil, apperr.Validation("cannot change your own block state")
	}
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, apperr.Wrap(err, "load user")
	}
	if err := db.Model(&user).Update("is_blocked", blocked).Error; err != nil {
		return nil, apperr.Wrap(err, "update user")
	}
	user.IsBlocked = blocked
	s.log.Info("user block state changed", "user_id", userID, "blocked", blocked, "by", actor.UserID)
	return &user, nil
}

func (s *AdminService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, apperr.Wrap(err, "list categories")
	}
	return categories, nil
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}

func (s *AdminService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	category := models.Category{Name: in.Name, Description: in.Description}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.ErrCategoryExists
		}
		return nil, apperr.Wrap(err, "create category")
	}
	return &category, nil
}

// DeleteCategory refuses while any course still references the category.
func (s *AdminService) DeleteCategory(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var courses int64
		if err := tx.Model(&models.Course{}).Where("category_id = ?", id).Count(&courses).Error; err != nil {
			return apperr.Wrap(err, "count courses")
		}
		if courses > 0 {
			return apperr.ErrCategoryInUse.WithDetails(map[string]int64{"courses": courses})
		}
		res := tx.Delete(&models.Category{}, id)
		if res.Error != nil {
			return apperr.Wrap(res.Error, "delete category")
		}
		if res.RowsAffected == 0 {
			return apperr.ErrCategoryNotFound
		}
		return nil
	})
}

// Revenue splits successful payments between the platform and instructors
// using the configured fee percentage. Payments carry their instructor, so
// deleted courses still count.
func (s *AdminService) Revenue(ctx context.Context) (*models.RevenueReport, error) {
	var rows []models.InstructorRevenue
	err := s.db.WithContext(ctx).
		Table("payments").
		Select("payments.instructor_id, COALESCE(users.first_name || ' ' || users.last_name, '') AS instructor_name, COUNT(payments.id) AS payments, COALESCE(SUM(payments.amount), 0) AS gross").
		Joins("LEFT JOIN users ON users.id = payments.instructor_id").
		Where("payments.status = ? AND payments.deleted_at IS NULL", models.PaymentSuccess).
		Group("payments.instructor_id, users.first_name, users.last_name").
		Order("gross DESC, payments.instructor_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Wrap(err, "revenue report")
	}

	report := &models.RevenueReport{FeePercent: s.feePercent, ByInstructor: make([]models.InstructorRevenue, 0, len(rows))}
	for _, r := range rows {
		r.Gross = round2(r.Gross)
		r.AdminShare = round2(r.Gross * s.feePercent / 100)
		r.InstructorShare = round2(r.Gross - r.AdminShare)
		report.Payments += r.Payments
		report.Gross += r.Gross
		report.AdminShare += r.AdminShare
		report.InstructorShare += r.InstructorShare
		report.ByInstructor = append(report.ByInstructor, r)
	}
	report.Gross = round2(report.Gross)
	report.AdminShare = round2(report.AdminShare)
	report.InstructorShare = round2(report.InstructorShare)
	return report, nil
}
