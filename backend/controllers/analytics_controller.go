package controllers

import (
	"learnhub/backend/services"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
)

// AnalyticsController serves the admin area: users, categories and revenue.
type AnalyticsController struct {
	Admin *services.AdminService
}

func NewAnalyticsController(admin *services.AdminService) *AnalyticsController {
	return &AnalyticsController{Admin: admin}
}

// GetRevenue godoc
// @Summary Platform revenue report
// @Description Successful payments split between the platform fee and instructors
// @Tags admin
// @Produce json
// @Success 200 {object} models.RevenueReport
// @Security ApiKeyAuth
// @Router /admin/revenue [get]
func (ac *AnalyticsController) GetRevenue(c *fiber.Ctx) error {
	report, err := ac.Admin.Revenue(c.UserContext())
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, report)
}

func (ac *AnalyticsController) ListUsers(c *fiber.Ctx) error {
	users, err := ac.Admin.ListUsers(c.UserContext(), c.Query("role"))
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, users)
}

func (ac *AnalyticsController) BlockUser(c *fiber.Ctx) error   { return ac.setBlocked(c, true) }
func (ac *AnalyticsController) UnblockUser(c *fiber.Ctx) error { return ac.setBlocked(c, false) }

func (ac *AnalyticsController) setBlocked(c *fiber.Ctx, blocked bool) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	userID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid user ID")
	}
	user, err := ac.Admin.SetBlocked(c.UserContext(), a, userID, blocked)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, user)
}

func (ac *AnalyticsController) ListCategories(c *fiber.Ctx) error {
	categories, err := ac.Admin.ListCategories(c.UserContext())
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, categories)
}

func (ac *AnalyticsController) CreateCategory(c *fiber.Ctx) error {
	var input services.CategoryInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	category, err := ac.Admin.CreateCategory(c.UserContext(), input)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Created(c, category)
}

func (ac *AnalyticsController) DeleteCategory(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid category ID")
	}
	if err := ac.Admin.DeleteCategory(c.UserContext(), id); err != nil {
		return utils.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
