package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const runnerIDLocal = "runner_id"

// JWTMiddleware validates bearer tokens and stores runner_id in locals.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
			return secretBytes, nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid || claims.RunnerID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}

		c.Locals(runnerIDLocal, claims.RunnerID)
		return c.Next()
	}
}

// RunnerID returns the authenticated runner, or "" outside JWTMiddleware.
func RunnerID(c *fiber.Ctx) string {
	id, _ := c.Locals(runnerIDLocal).(string)
	return id
}

// WithRunner is a stand-in for JWTMiddleware that trusts a fixed runner id.
func WithRunner(runnerID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(runnerIDLocal, runnerID)
		return c.Next()
	}
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
