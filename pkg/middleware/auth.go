// Package middleware holds the fiber middleware shared by the HTTP routes.
package middleware

import (
	"errors"
	"fmt"
	"os"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/config"
)

const defaultClaim = "user_id"

// ErrMissingActingUser means the request carried no usable user claim.
var ErrMissingActingUser = errors.New("missing acting user")

// Protected guards a route with the secret from AUTH_JWT_SECRET.
func Protected() fiber.Handler {
	return JwtProtected(&config.Jwt{Secret: os.Getenv("AUTH_JWT_SECRET")})
}

// JwtProtected verifies an HS256 bearer token and stores it under "user".
func JwtProtected(cfg *config.Jwt) fiber.Handler {
	secret := ""
	if cfg != nil {
		secret = cfg.Secret
	}
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: []byte(secret)},
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	title := "Invalid or expired JWT"
	if err.Error() == "Missing or malformed JWT" {
		status = fiber.StatusBadRequest
		title = "Missing or malformed JWT"
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(fiber.Map{
		"type":     "about:blank",
		"title":    title,
		"status":   status,
		"instance": c.OriginalURL(),
	})
}

// ActingUser reads the acting user's id from the verified token. claim
// defaults to user_id.
func ActingUser(c *fiber.Ctx, claim string) (uuid.UUID, error) {
	if claim == "" {
		claim = defaultClaim
	}
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return uuid.Nil, ErrMissingActingUser
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrMissingActingUser
	}
	raw, ok := claims[claim].(string)
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("%w: claim %q", ErrMissingActingUser, claim)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMissingActingUser, err)
	}
	return id, nil
}

// SignToken issues an HS256 token carrying userID under claim. The CLI and
// tests use it; the service itself never issues tokens.
func SignToken(cfg *config.Jwt, userID uuid.UUID) (string, error) {
	claim := cfg.Claim
	if claim == "" {
		claim = defaultClaim
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{claim: userID.String()})
	return token.SignedString([]byte(cfg.Secret))
}
