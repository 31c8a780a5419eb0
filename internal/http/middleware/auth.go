package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDLocalKey is the key under which the authenticated caller's id is
// stored in Fiber's context locals.
const UserIDLocalKey = "user_id"

// Auth verifies a Bearer token signed with the shared HS256 secret and
// stores its subject claim as the caller identity. Token issuance happens
// outside this service; anything unverifiable is a plain 401 translated by
// the global error handler.
func Auth(secret string) fiber.Handler {
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		// HS256 accepts an empty key, so a missing secret must never
		// verify anything.
		if len(key) == 0 {
			return fiber.ErrUnauthorized
		}

		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return fiber.ErrUnauthorized
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if tokenStr == header {
			return fiber.ErrUnauthorized
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return fiber.ErrUnauthorized
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return fiber.ErrUnauthorized
		}

		c.Locals(UserIDLocalKey, sub)
		return c.Next()
	}
}

// UserIDFromCtx returns the authenticated caller id stored by Auth.
func UserIDFromCtx(c *fiber.Ctx) string {
	if v, ok := c.Locals(UserIDLocalKey).(string); ok {
		return v
	}
	return ""
}
