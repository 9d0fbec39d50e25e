package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/maheshrc27/postflow/pkg/utils"
)

type AuthMiddleware struct {
	secretKey  string
	cookieName string
}

func NewAuthMiddleware(secretKey, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{secretKey: secretKey, cookieName: cookieName}
}

// AuthMiddleware accepts a bearer token or the session cookie and stores the
// user and tenant ids from its claims in the request locals.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if tokenString == "" && m.cookieName != "" {
			tokenString = c.Cookies(m.cookieName)
		}
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := utils.ValidateToken(m.secretKey, tokenString)
		if err != nil {
			log.Debug().Err(err).Msg("token validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		userID, err := strconv.ParseInt(claims.UserID, 10, 64)
		if err != nil || userID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid user",
			})
		}
		tenantID, err := strconv.ParseInt(claims.TenantID, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid tenant",
			})
		}

		c.Locals("user_id", userID)
		c.Locals("tenant_id", tenantID)
		return c.Next()
	}
}
