package controllers

import (
	"learnhub/backend/services"
	"learnhub/backend/utils"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

type EnrollmentController struct {
	Enrollments *services.EnrollmentService
}

func NewEnrollmentController(enrollments *services.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{Enrollments: enrollments}
}

func (ec *EnrollmentController) Enroll(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	enrollment, err := ec.Enrollments.EnrollFree(c.UserContext(), a.UserID, courseID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Created(c, enrollment)
}

func (ec *EnrollmentController) MyEnrollments(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	rows, err := ec.Enrollments.MyEnrollments(c.UserContext(), a.UserID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, rows)
}

func (ec *EnrollmentController) Purchase(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	payment, err := ec.Enrollments.InitiatePurchase(c.UserContext(), a.UserID, courseID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Created(c, payment)
}

type SettlePaymentRequest struct {
	Success         bool            `json:"success"`
	GatewayResponse json.RawMessage `json:"gateway_response" swaggertype:"object"`
}

// Settle godoc
// @Summary Payment gateway callback
// @Description Marks a pending payment success or failed; success enrolls the buyer
// @Tags payments
// @Accept json
// @Produce json
// @Param txn path string true "Transaction ID"
// @Param input body SettlePaymentRequest true "Gateway verdict"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /payments/{txn}/settle [post]
func (ec *EnrollmentController) Settle(c *fiber.Ctx) error {
	var input SettlePaymentRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	payment, err := ec.Enrollments.Settle(c.UserContext(), c.Params("txn"), input.Success, input.GatewayResponse)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, payment)
}
