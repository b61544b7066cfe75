package controllers

import (
	"strconv"

	"learnhub/backend/middleware"
	"learnhub/backend/services"

	"github.com/gofiber/fiber/v2"
)

// paramID parses a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.Atoi(c.Params(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// actor returns the authenticated caller; routes are mounted behind
// AuthMiddleware, so a missing actor is a wiring bug answered with 401.
func actor(c *fiber.Ctx) (services.Actor, error) {
	a, ok := middleware.CurrentActor(c)
	if !ok {
		return services.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	return a, nil
}
