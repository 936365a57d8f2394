package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

type JWTConfig struct {
	Secret string
	// Roles restricts access to the listed token types; empty allows any
	// authenticated account.
	Roles []string
}

func RequireJWT(cfg JWTConfig) fiber.Handler {
	secret := []byte(cfg.Secret)

	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid token signing method")
			}
			return secret, nil
		})
		if err != nil || token == nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token claims")
		}

		typ, _ := claims["typ"].(string)
		if len(cfg.Roles) > 0 && !roleAllowed(typ, cfg.Roles) {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}

		if sub, _ := claims["sub"].(string); sub != "" {
			c.Locals("user_id", sub)
		}
		if typ != "" {
			c.Locals("role", typ)
		}
		if email, _ := claims["email"].(string); email != "" {
			c.Locals("email", email)
		}

		return c.Next()
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRole restricts an already-authenticated route to the listed roles.
// It must run after RequireJWT.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !roleAllowed(Role(c), roles) {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// UserID reads the authenticated account id set by RequireJWT.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// Role reads the authenticated account role set by RequireJWT.
func Role(c *fiber.Ctx) string {
	r, _ := c.Locals("role").(string)
	return r
}
