package utils

import (
	"errors"
	"net/http/httptest"
	"testing"

	"learnhub/backend/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleErrorStatuses(t *testing.T) {
	var logged error
	app := fiber.New()
	app.Get("/:case", func(c *fiber.Ctx) error {
		var err error
		switch c.Params("case") {
		case "missing":
			err = apperr.ErrCourseNotFound
		case "invalid":
			err = apperr.Validation("validation failed").WithDetails(map[string]string{"title": "required"})
		case "conflict":
			err = apperr.ErrDuplicateOrder.WithDetails(map[string][]int{"duplicate_orders": {5}})
		case "fiber":
			err = fiber.NewError(fiber.StatusBadRequest, "bad input")
		default:
			err = apperr.Wrap(errors.New("connection reset"), "load course")
		}
		herr := HandleError(c, err)
		if e, ok := c.Locals(ErrorLocal).(error); ok {
			logged = e
		}
		return herr
	})

	tests := []struct {
		path    string
		status  int
		message string
		details map[string]interface{}
	}{
		{"/missing", fiber.StatusNotFound, "course not found", nil},
		{"/invalid", fiber.StatusUnprocessableEntity, "validation failed", map[string]interface{}{"title": "required"}},
		{"/conflict", fiber.StatusConflict, "duplicate video order values", map[string]interface{}{"duplicate_orders": []interface{}{float64(5)}}},
		{"/fiber", fiber.StatusBadRequest, "bad input", nil},
		{"/internal", fiber.StatusInternalServerError, "Internal server error", nil},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tt.status, resp.StatusCode, tt.path)

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, tt.message, body.Message, tt.path)
		if tt.details != nil {
			assert.Equal(t, tt.details, body.Details, tt.path)
		} else {
			assert.Nil(t, body.Details, tt.path)
		}
	}

	// Внутренняя ошибка остаётся в Locals для логгера, но не уходит клиенту.
	require.Error(t, logged)
	assert.Contains(t, logged.Error(), "connection reset")
}
