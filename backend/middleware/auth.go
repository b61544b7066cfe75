package middleware

import (
	"crypto/subtle"
	"errors"

	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/services"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const actorLocal = "actor"

// AuthMiddleware verifies the token and loads the caller. The role is taken
// from the database so demotions and blocks apply to tokens already issued.
func AuthMiddleware(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.ExtractClaimsFromToken(c, cfg)
		if err != nil {
			return utils.Unauthorized(c, "Unauthorized")
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.Unauthorized(c, "Unauthorized")
			}
			return utils.HandleError(c, err)
		}
		if user.IsBlocked {
			return utils.Forbidden(c, "User is blocked")
		}

		c.Locals(actorLocal, services.Actor{UserID: user.ID, Role: user.Role})
		return c.Next()
	}
}

// CurrentActor returns the caller set by AuthMiddleware.
func CurrentActor(c *fiber.Ctx) (services.Actor, bool) {
	actor, ok := c.Locals(actorLocal).(services.Actor)
	return actor, ok
}

// RequireRoles admits only the listed roles.
func RequireRoles(roles ...models.Role) fiber.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *fiber.Ctx) error {
		actor, ok := CurrentActor(c)
		if !ok {
			return utils.Unauthorized(c, "Unauthorized")
		}
		switch actor.Role {
		case models.RoleUser, models.RoleInstructor, models.RoleAdmin:
			if allowed[actor.Role] {
				return c.Next()
			}
			return utils.Forbidden(c, "Forbidden - "+string(actor.Role)+" role cannot access this resource")
		default:
			return utils.Forbidden(c, "Forbidden - unknown role")
		}
	}
}

// GatewaySecret guards the payment callback with a shared secret.
func GatewaySecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return utils.Forbidden(c, "Payment callback disabled")
		}
		got := c.Get("X-Gateway-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return utils.Unauthorized(c, "Invalid gateway secret")
		}
		return c.Next()
	}
}
