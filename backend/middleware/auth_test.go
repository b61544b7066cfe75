package middleware

import (
	"net/http/httptest"
	"testing"

	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T) (*fiber.App, *config.Config, map[models.Role]models.User) {
	t.Helper()
	db, err := utils.OpenTestDB()
	require.NoError(t, err)
	cfg := &config.Config{JWTSecret: "test-secret", JWTTTLHours: 1}

	users := map[models.Role]models.User{}
	for i, role := range []models.Role{models.RoleUser, models.RoleInstructor, models.RoleAdmin} {
		u := models.User{FirstName: string(role), LastName: "T", Email: string(role) + "@example.com", PasswordHash: "x", Role: role}
		require.NoError(t, db.Create(&u).Error, i)
		users[role] = u
	}

	app := fiber.New()
	app.Use(LoggingMiddleware(utils.NewNopLogger()))
	auth := AuthMiddleware(db, cfg)
	app.Get("/me", auth, func(c *fiber.Ctx) error {
		actor, _ := CurrentActor(c)
		return c.JSON(fiber.Map{"user_id": actor.UserID, "role": actor.Role})
	})
	app.Get("/instructor", auth, RequireRoles(models.RoleInstructor), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Post("/callback", GatewaySecret("s3cret"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	// block a fourth user
	blocked := models.User{FirstName: "B", LastName: "T", Email: "blocked@example.com", PasswordHash: "x", Role: models.RoleUser, IsBlocked: true}
	require.NoError(t, db.Create(&blocked).Error)
	users["blocked"] = blocked
	return app, cfg, users
}

func token(t *testing.T, cfg *config.Config, u models.User) string {
	t.Helper()
	tok, err := utils.GenerateJWTToken(u.ID, u.Role, cfg)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestAuthMiddleware(t *testing.T) {
	app, cfg, users := setupApp(t)

	req := httptest.NewRequest("GET", "/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", token(t, cfg, users[models.RoleUser]))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", token(t, cfg, users["blocked"]))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRoles(t *testing.T) {
	app, cfg, users := setupApp(t)

	cases := map[models.Role]int{
		models.RoleInstructor: fiber.StatusNoContent,
		models.RoleUser:       fiber.StatusForbidden,
		models.RoleAdmin:      fiber.StatusForbidden,
	}
	for role, want := range cases {
		req := httptest.NewRequest("GET", "/instructor", nil)
		req.Header.Set("Authorization", token(t, cfg, users[role]))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, role)
	}
}

func TestGatewaySecret(t *testing.T) {
	app, _, _ := setupApp(t)

	req := httptest.NewRequest("POST", "/callback", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("POST", "/callback", nil)
	req.Header.Set("X-Gateway-Secret", "s3cret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
