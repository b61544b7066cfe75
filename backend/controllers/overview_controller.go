package controllers

import (
	"errors"
	"strings"
	"time"

	"learnhub/backend/apperr"
	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/services"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const maxPageSize = 100

// OverviewController is the public catalog of published courses.
type OverviewController struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Ratings *services.RatingGate
}

func NewOverviewController(db *gorm.DB, cfg *config.Config, ratings *services.RatingGate) *OverviewController {
	return &OverviewController{DB: db, Cfg: cfg, Ratings: ratings}
}

type catalogCourse struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	SubTitle     string    `json:"sub_title,omitempty"`
	IsPaid       bool      `json:"is_paid"`
	Price        float64   `json:"price"`
	ImageRef     string    `json:"image_ref,omitempty"`
	CategoryID   uint      `json:"category_id"`
	InstructorID uint      `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
	Rating       float64   `json:"rating"`
	Enrollments  int64     `json:"enrollments"`
}

// SearchCourses godoc
// @Summary Search published courses
// @Tags catalog
// @Produce json
// @Param search query string false "Title substring"
// @Param category query int false "Category ID"
// @Param sort query string false "popularity, newest or rating"
// @Param page query int false "Page, from 1"
// @Param page_size query int false "Page size"
// @Success 200 {object} utils.PaginatedResponse
// @Router /courses [get]
func (oc *OverviewController) SearchCourses(c *fiber.Ctx) error {
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	category := c.QueryInt("category")
	sort := c.Query("sort", "popularity") // popularity, newest, rating
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = 20
	}

	query := func() *gorm.DB {
		q := oc.DB.WithContext(c.UserContext()).Model(&models.Course{}).Where("courses.is_published = ?", true)
		// Поиск по названию
		if search != "" {
			q = q.Where("LOWER(courses.title) LIKE ?", "%"+search+"%")
		}
		if category > 0 {
			q = q.Where("courses.category_id = ?", category)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return utils.HandleError(c, apperr.Wrap(err, "count courses"))
	}

	q := query().Select("courses.id, courses.title, courses.sub_title, courses.is_paid, courses.price, courses.image_ref, " +
		"courses.category_id, courses.instructor_id, courses.created_at, " +
		"COALESCE((SELECT AVG(score) FROM ratings WHERE ratings.course_id = courses.id), 0) AS rating, " +
		"(SELECT COUNT(*) FROM enrollments WHERE enrollments.course_id = courses.id) AS enrollments")

	// Сортировка
	switch sort {
	case "newest":
		q = q.Order("courses.created_at DESC")
	case "rating":
		q = q.Order("rating DESC")
	default: // popularity
		q = q.Order("enrollments DESC")
	}

	courses := []catalogCourse{}
	if err := q.Order("courses.id").Limit(pageSize).Offset((page - 1) * pageSize).Scan(&courses).Error; err != nil {
		return utils.HandleError(c, apperr.Wrap(err, "list courses"))
	}
	for i := range courses {
		courses[i].Rating = roundRating(courses[i].Rating)
	}

	return utils.Paginate(c, courses, total, page, pageSize)
}

func roundRating(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// GetCourse возвращает опубликованный курс с видео и сводкой оценок
func (oc *OverviewController) GetCourse(c *fiber.Ctx) error {
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}

	var course models.Course
	err := oc.DB.WithContext(c.UserContext()).
		Preload("Videos", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Where("is_published = ?", true).
		First(&course, courseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.HandleError(c, apperr.ErrCourseNotFound)
		}
		return utils.HandleError(c, apperr.Wrap(err, "load course"))
	}

	summary, err := oc.Ratings.Summary(c.UserContext(), course.ID)
	if err != nil {
		return utils.HandleError(c, err)
	}

	var instructor models.User
	if err := oc.DB.WithContext(c.UserContext()).Select("id, first_name, last_name").First(&instructor, course.InstructorID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.HandleError(c, apperr.Wrap(err, "load instructor"))
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"course":     course,
		"instructor": instructor.FullName(),
		"ratings":    summary,
	})
}

func (oc *OverviewController) ListCategories(c *fiber.Ctx) error {
	categories := []models.Category{}
	if err := oc.DB.WithContext(c.UserContext()).Order("name").Find(&categories).Error; err != nil {
		return utils.HandleError(c, apperr.Wrap(err, "list categories"))
	}
	return utils.Success(c, fiber.StatusOK, categories)
}
