package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/algogenius-api/internal/utils"
)

// Locals keys set by the auth middlewares.
const (
	LocalUserID    = "user_id"
	LocalUserEmail = "user_email"
	LocalUserRole  = "user_role"
)

// JWTProtected validates HMAC-signed bearer tokens issued by the identity provider.
// The subject becomes the user id; the role is never taken from the token.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" && c.Query("access_token") != "" {
			// Browsers cannot set headers on websocket upgrades.
			authorization = "Bearer " + c.Query("access_token")
		}
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		subject, err := claims.GetSubject()
		if err != nil || strings.TrimSpace(subject) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}
		c.Locals(LocalUserID, strings.TrimSpace(subject))

		if email, ok := claims["email"].(string); ok {
			c.Locals(LocalUserEmail, strings.ToLower(strings.TrimSpace(email)))
		}

		return c.Next()
	}
}

// RoleResolver returns the stored role of a user, or "" when no profile exists yet.
type RoleResolver func(ctx context.Context, userID string) (string, error)

// LoadRole resolves the caller's role from their stored profile.
func LoadRole(resolve RoleResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return c.Next()
		}

		role, err := resolve(c.UserContext(), userID)
		if err != nil {
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load profile")
		}
		if role != "" {
			c.Locals(LocalUserRole, strings.ToLower(role))
		}
		return c.Next()
	}
}

// UserID returns the authenticated subject, or "".
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(LocalUserID).(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

// UserEmail returns the email claim of the authenticated subject, or "".
func UserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals(LocalUserEmail).(string); ok {
		return email
	}
	return ""
}
