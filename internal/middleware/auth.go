// Package middleware provides authentication, logging and rate limiting middleware for the HTTP API.
package middleware

import (
	"context"
	"strings"
	"time"

	"credledger/internal/config"
	"credledger/internal/models"
	"credledger/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer is the iss claim on tokens accepted by the API.
const TokenIssuer = "credledger-api"

// AccountLocal is the fiber local holding the authenticated account.
const AccountLocal = "account"

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// IssueToken signs a bearer token for account.
func IssueToken(secret, account string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   account,
		Issuer:    TokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseAccount validates tokenString and returns its subject.
func parseAccount(tokenString string) (string, error) {
	if cfg == nil {
		return "", models.NewUnauthorizedError("Authentication is not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", models.NewUnauthorizedError("Invalid or expired token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", models.NewUnauthorizedError("Invalid subject claim")
	}
	return sub, nil
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func authenticate(c *fiber.Ctx, tokenString string) error {
	if tokenString == "" {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}

	account, err := parseAccount(tokenString)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, err)
	}

	c.Locals(AccountLocal, account)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(observability.WithAccount(c.UserContext(), account))
	return c.Next()
}

// AuthRequired is a middleware that enforces bearer authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	return authenticate(c, bearerToken(c))
}

// WebSocketAuthRequired accepts the token from the query string, since browsers
// cannot set headers on a WebSocket upgrade, and falls back to the header.
func WebSocketAuthRequired(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c)
	}
	return authenticate(c, token)
}

// OptionalAuth attaches the account when a valid bearer token is present and
// lets anonymous requests through unchanged.
func OptionalAuth(c *fiber.Ctx) error {
	return attachOptional(c, bearerToken(c))
}

// WebSocketOptionalAuth is OptionalAuth that also reads the token query parameter.
func WebSocketOptionalAuth(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c)
	}
	return attachOptional(c, token)
}

func attachOptional(c *fiber.Ctx, token string) error {
	if token != "" {
		if account, err := parseAccount(token); err == nil {
			c.Locals(AccountLocal, account)
			c.SetUserContext(observability.WithAccount(c.UserContext(), account))
		}
	}
	return c.Next()
}

// AccountFrom returns the authenticated account, or "" on public routes.
func AccountFrom(c *fiber.Ctx) string {
	if acct, ok := c.Locals(AccountLocal).(string); ok {
		return acct
	}
	return ""
}

// AccountFromContext returns the account stored by the auth middleware.
func AccountFromContext(ctx context.Context) string {
	acct, _ := ctx.Value(observability.AccountKey).(string)
	return acct
}
