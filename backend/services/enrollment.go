package services

import (
	"context"
	"errors"
	"time"

	"learnhub/backend/apperr"
	"learnhub/backend/models"
	"learnhub/backend/utils"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultCurrency = "BDT"

// EnrollmentService grants course access: directly for free courses, through
// a settled payment for paid ones. The payment gateway itself is external;
// Settle is its callback.
type EnrollmentService struct {
	db  *gorm.DB
	log *utils.Logger
}

func NewEnrollmentService(db *gorm.DB, log *utils.Logger) *EnrollmentService {
	return &EnrollmentService{db: db, log: log}
}

func publishedCourse(tx *gorm.DB, courseID uint) (*models.Course, error) {
	course, err := findCourse(tx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		return nil, apperr.ErrCourseNotFound
	}
	return course, nil
}

func (s *EnrollmentService) EnrollFree(ctx context.Context, userID, courseID uint) (*models.Enrollment, error) {
	db := s.db.WithContext(ctx)
	course, err := publishedCourse(db, courseID)
	if err != nil {
		return nil, err
	}
	if course.IsPaid {
		return nil, apperr.Forbidden("paid course requires purchase")
	}
	enrollment := models.Enrollment{UserID: userID, CourseID: courseID, EnrolledAt: time.Now().UTC()}
	if err := db.Create(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.ErrAlreadyEnrolled
		}
		return nil, apperr.Wrap(err, "create enrollment")
	}
	s.log.Info("user enrolled", "user_id", userID, "course_id", courseID)
	return &enrollment, nil
}

func (s *EnrollmentService) MyEnrollments(ctx context.Context, userID uint) ([]models.EnrolledCourse, error) {
	rows := []models.EnrolledCourse{}
	err := s.db.WithContext(ctx).
		Table("enrollments").
		Select("enrollments.course_id, courses.title, courses.is_paid, enrollments.enrolled_at").
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Where("enrollments.user_id = ?", userID).
		Order("enrollments.enrolled_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Wrap(err, "list enrollments")
	}
	return rows, nil
}

// InitiatePurchase opens a pending payment for a paid course.
func (s *EnrollmentService) InitiatePurchase(ctx context.Context, userID, courseID uint) (*models.Payment, error) {
	db := s.db.WithContext(ctx)
	course, err := publishedCourse(db, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPaid {
		return nil, apperr.Validation("course is free, enroll directly")
	}
	enrolled, err := isEnrolled(db, userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, apperr.ErrAlreadyEnrolled
	}
	payment := models.Payment{
		UserID:        userID,
		CourseID:      courseID,
		InstructorID:  course.InstructorID,
		TransactionID: uuid.NewString(),
		Amount:        course.Price,
		Currency:      defaultCurrency,
		Status:        models.PaymentPending,
	}
	if err := db.Create(&payment).Error; err != nil {
		return nil, apperr.Wrap(err, "create payment")
	}
	s.log.Info("payment initiated", "transaction_id", payment.TransactionID, "user_id", userID, "course_id", courseID)
	return &payment, nil
}

// Settle records the gateway's verdict for a pending payment and enrolls the
// buyer on success. Repeating the same verdict is a no-op.
func (s *EnrollmentService) Settle(ctx context.Context, transactionID string, success bool, gatewayResponse []byte) (*models.Payment, error) {
	if len(gatewayResponse) > 0 && !json.Valid(gatewayResponse) {
		return nil, apperr.Validation("gateway response must be JSON")
	}
	status := models.PaymentFailed
	if success {
		status = models.PaymentSuccess
	}

	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := lockForUpdate(tx).Where("transaction_id = ?", transactionID).First(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrPaymentNotFound
		}
		if err != nil {
			return apperr.Wrap(err, "load payment")
		}
		if payment.Status == status {
			return nil
		}
		if payment.Status != models.PaymentPending {
			return apperr.ErrPaymentAlreadyDone
		}

		updates := map[string]interface{}{"status": status}
		if len(gatewayResponse) > 0 {
			updates["gateway_response"] = datatypes.JSON(gatewayResponse)
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return apperr.Wrap(err, "update payment")
		}
		payment.Status = status
		if len(gatewayResponse) > 0 {
			payment.GatewayResponse = datatypes.JSON(gatewayResponse)
		}
		if !success {
			return nil
		}
		enrollment := models.Enrollment{UserID: payment.UserID, CourseID: payment.CourseID, EnrolledAt: time.Now().UTC()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&enrollment).Error; err != nil {
			return apperr.Wrap(err, "create enrollment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payment settled", "transaction_id", transactionID, "status", status)
	return &payment, nil
}
