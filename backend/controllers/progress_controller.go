package controllers

import (
	"learnhub/backend/services"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type ProgressController struct {
	Ledger *services.ProgressLedger
}

func NewProgressController(ledger *services.ProgressLedger) *ProgressController {
	return &ProgressController{Ledger: ledger}
}

type ReportProgressRequest struct {
	Watched *bool `json:"watched" validate:"required" example:"true"`
}

// ReportProgress godoc
// @Summary Mark a video watched or unwatched
// @Tags progress
// @Accept json
// @Produce json
// @Param id path int true "Video ID"
// @Param input body ReportProgressRequest true "Watch state"
// @Success 200 {object} utils.SuccessResponse
// @Failure 403 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /videos/{id}/progress [post]
func (pc *ProgressController) ReportProgress(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	videoID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid video ID")
	}
	var input ReportProgressRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := utils.Validate(input); err != nil {
		return utils.HandleError(c, err)
	}

	progress, err := pc.Ledger.Report(c.UserContext(), a.UserID, videoID, *input.Watched)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, progress)
}

// GetCourseProgress godoc
// @Summary Get course completion for the caller
// @Tags progress
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} models.CourseProgress
// @Failure 403 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /courses/{id}/progress [get]
func (pc *ProgressController) GetCourseProgress(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	progress, err := pc.Ledger.CourseProgress(c.UserContext(), a.UserID, courseID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, progress)
}
