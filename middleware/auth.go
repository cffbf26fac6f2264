package middleware

import (
	"os"
	"strings"

	"scrap-pickup/constants"
	"scrap-pickup/types"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// IsAuthenticated verifies the bearer token and stores the caller's identity
// and role in the request locals. When roles are given, the caller's role
// must be one of them; admins always pass.
func IsAuthenticated(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""
		if header := c.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenString = strings.TrimPrefix(header, "Bearer ")
		} else {
			// Websocket clients cannot set headers from the browser, so the
			// upgrade request may carry the token as a query parameter.
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return unauthorized(c, "Missing bearer token")
		}

		claims, err := parseToken(tokenString)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		uid, ok := claims["uid"].(float64)
		if !ok || uid <= 0 {
			return unauthorized(c, "Token is missing user identity")
		}
		role, ok := claims["role"].(string)
		if !ok || !constants.IsValidRole(role) {
			return unauthorized(c, "Token is missing a valid role")
		}

		if len(roles) > 0 && role != constants.RoleAdmin {
			allowed := false
			for _, r := range roles {
				if r == role {
					allowed = true
					break
				}
			}
			if !allowed {
				return c.Status(fiber.StatusForbidden).JSON(types.ApiResponse{
					Status:  fiber.StatusForbidden,
					Message: "Insufficient role for this operation",
				})
			}
		}

		c.Locals("userID", uint(uid))
		c.Locals("role", role)
		return c.Next()
	}
}

func parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// CurrentUserID returns the authenticated user id from the request locals.
func CurrentUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

// CurrentRole returns the authenticated role from the request locals.
func CurrentRole(c *fiber.Ctx) string {
	if role, ok := c.Locals("role").(string); ok {
		return role
	}
	return ""
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
		Status:  fiber.StatusUnauthorized,
		Message: message,
	})
}
