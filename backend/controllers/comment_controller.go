package controllers

import (
	"learnhub/backend/services"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type RatingsController struct {
	Gate *services.RatingGate
}

func NewRatingsController(gate *services.RatingGate) *RatingsController {
	return &RatingsController{Gate: gate}
}

// RateCourseRequest defines the request body for rating a course
type RateCourseRequest struct {
	Rating  int     `json:"rating" example:"5" minimum:"1" maximum:"5"`
	Comment *string `json:"comment" example:"This course was amazing!"`
}

func (rc *RatingsController) CanRate(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	elig, err := rc.Gate.CanRate(c.UserContext(), a.UserID, courseID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, elig)
}

// RateCourse godoc
// @Summary Rate a completed course
// @Description One rating per learner; requires enrollment and every video watched
// @Tags ratings
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param input body RateCourseRequest true "Rating data"
// @Success 201 {object} utils.SuccessResponse
// @Failure 403 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /courses/{id}/rate [post]
func (rc *RatingsController) RateCourse(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	var input RateCourseRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	rating, err := rc.Gate.Submit(c.UserContext(), a.UserID, courseID, input.Rating, input.Comment)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Created(c, rating)
}

// GetCourseRatings godoc
// @Summary Get course ratings
// @Tags ratings
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {array} models.RatingRow
// @Router /courses/{id}/ratings [get]
func (rc *RatingsController) GetCourseRatings(c *fiber.Ctx) error {
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	rows, err := rc.Gate.List(c.UserContext(), courseID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, rows)
}

func (rc *RatingsController) GetRatingSummary(c *fiber.Ctx) error {
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	summary, err := rc.Gate.Summary(c.UserContext(), courseID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, summary)
}
