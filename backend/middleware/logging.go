package middleware

import (
	"errors"
	"time"

	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

func LoggingMiddleware(logger *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDHeader, requestID)

		// Передаем управление следующему обработчику
		err := c.Next()

		status := c.Response().StatusCode()
		logErr := err
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		} else if internal, ok := c.Locals(utils.ErrorLocal).(error); ok {
			logErr = internal
		}

		fields := []interface{}{
			"request_id", requestID,
			"ip", c.IP(),
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
		}
		if actor, ok := CurrentActor(c); ok {
			fields = append(fields, "user_id", actor.UserID)
		}
		if logErr != nil {
			fields = append(fields, "error", logErr)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request rejected", fields...)
		default:
			logger.Info("request", fields...)
		}

		// Ошибку не теряем: её обработает ErrorHandler приложения
		return err
	}
}
