package controllers

import (
	"errors"
	"strings"

	"learnhub/backend/apperr"
	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewUserController(db *gorm.DB, cfg *config.Config) *UserController {
	return &UserController{DB: db, Cfg: cfg}
}

type UpdateUserRequest struct {
	FirstName    *string `json:"first_name" validate:"omitempty,min=1,max=100" example:"Ada"`
	LastName     *string `json:"last_name" validate:"omitempty,min=1,max=100" example:"Lovelace"`
	ProfileImage *string `json:"profile_image" validate:"omitempty,max=255"`
	OldPassword  string  `json:"old_password" example:"oldPassword123"`
	NewPassword  string  `json:"new_password" validate:"omitempty,min=6" example:"newPassword123"`
}

func (uc *UserController) load(c *fiber.Ctx) (*models.User, error) {
	a, err := actor(c)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := uc.DB.WithContext(c.UserContext()).First(&user, a.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, apperr.Wrap(err, "load user")
	}
	return &user, nil
}

// GetProfile godoc
// @Summary Get user profile
// @Description Returns authenticated user's profile data
// @Tags users
// @Produce json
// @Success 200 {object} utils.SuccessResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /me [get]
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	user, err := uc.load(c)
	if err != nil {
		return utils.HandleError(c, err)
	}

	var enrollments int64
	if err := uc.DB.WithContext(c.UserContext()).Model(&models.Enrollment{}).Where("user_id = ?", user.ID).Count(&enrollments).Error; err != nil {
		return utils.HandleError(c, apperr.Wrap(err, "count enrollments"))
	}

	// Формируем ответ без чувствительных данных
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":            user.ID,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"email":         user.Email,
		"role":          user.Role,
		"profile_image": user.ProfileImage,
		"created_at":    user.CreatedAt,
		"enrollments":   enrollments,
	})
}

// UpdateProfile godoc
// @Summary Update user profile
// @Description Updates name, profile image and, with the old password, the password
// @Tags users
// @Accept json
// @Produce json
// @Param input body UpdateUserRequest true "Profile update data"
// @Success 200 {object} utils.SuccessResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /me [put]
func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	var input UpdateUserRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := utils.Validate(input); err != nil {
		return utils.HandleError(c, err)
	}

	user, err := uc.load(c)
	if err != nil {
		return utils.HandleError(c, err)
	}

	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.ProfileImage != nil {
		user.ProfileImage = *input.ProfileImage
	}

	// Смена пароля только с подтверждением старого
	if input.NewPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.OldPassword)); err != nil {
			return utils.HandleError(c, apperr.Validation("old password is incorrect").
				WithDetails(map[string]string{"old_password": "does not match"}))
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return utils.HandleError(c, apperr.Wrap(err, "hash password"))
		}
		user.PasswordHash = string(hashed)
	}

	if err := uc.DB.WithContext(c.UserContext()).Save(user).Error; err != nil {
		return utils.HandleError(c, apperr.Wrap(err, "update user"))
	}
	return utils.Success(c, fiber.StatusOK, user)
}
