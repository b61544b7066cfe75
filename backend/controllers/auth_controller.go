package controllers

import (
	"errors"
	"strings"

	"learnhub/backend/apperr"
	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/gofiber/fiber/v2"
)

type AuthController struct {
	DB  *gorm.DB
	Cfg *config.Config
	Log *utils.Logger
}

func NewAuthController(db *gorm.DB, cfg *config.Config, log *utils.Logger) *AuthController {
	return &AuthController{DB: db, Cfg: cfg, Log: log}
}

type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100" example:"Ada"`
	LastName  string `json:"last_name" validate:"required,max=100" example:"Lovelace"`
	Email     string `json:"email" validate:"required,email" example:"ada@example.com"`
	Password  string `json:"password" validate:"required,min=6" example:"secret123"`
	Role      string `json:"role" validate:"omitempty,oneof=user instructor" example:"instructor"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (ac *AuthController) issue(c *fiber.Ctx, status int, user models.User) error {
	token, err := utils.GenerateJWTToken(user.ID, user.Role, ac.Cfg)
	if err != nil {
		return utils.HandleError(c, apperr.Wrap(err, "generate token"))
	}
	return utils.Success(c, status, fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Register godoc
// @Summary Register a new user
// @Description Creates a learner or instructor account and returns a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "User registration data"
// @Success 201 {object} utils.SuccessResponse
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Router /auth/register [post]
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input RegisterRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := utils.Validate(input); err != nil {
		return utils.HandleError(c, err)
	}

	role := models.RoleUser
	if input.Role != "" {
		parsed, err := models.ParseRole(input.Role)
		if err != nil {
			return utils.HandleError(c, apperr.Validation(err.Error()))
		}
		role = parsed
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.HandleError(c, apperr.Wrap(err, "hash password"))
	}

	user := models.User{
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}
	if err := ac.DB.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.HandleError(c, apperr.ErrEmailTaken)
		}
		return utils.HandleError(c, apperr.Wrap(err, "create user"))
	}

	ac.Log.Info("user registered", "user_id", user.ID, "role", user.Role)
	return ac.issue(c, fiber.StatusCreated, user)
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} utils.SuccessResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 403 {object} utils.ErrorResponse
// @Router /auth/login [post]
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input LoginRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := utils.Validate(input); err != nil {
		return utils.HandleError(c, err)
	}

	var user models.User
	if err := ac.DB.WithContext(c.UserContext()).Where("email = ?", input.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Unauthorized(c, "Invalid credentials")
		}
		return utils.HandleError(c, apperr.Wrap(err, "load user"))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return utils.Unauthorized(c, "Invalid credentials")
	}
	if user.IsBlocked {
		return utils.HandleError(c, apperr.ErrUserBlocked)
	}

	return ac.issue(c, fiber.StatusOK, user)
}
