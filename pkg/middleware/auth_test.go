package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travelagency/backoffice/pkg/config"
)

func TestProtected_Unauthorized(t *testing.T) {
	app := fiber.New()
	app.Use(Protected())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, _ := app.Test(req)
	assert.NotEqual(t, fiber.StatusOK, resp.StatusCode)
}

func TestJwtError_Malformed(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		return jwtError(c, errors.New("Missing or malformed JWT"))
	})
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestJwtError_Invalid(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		return jwtError(c, errors.New("any other error"))
	})
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestActingUser(t *testing.T) {
	cfg := &config.Jwt{Secret: "s3cret", Claim: "sub_id"}
	user := uuid.New()
	token, err := SignToken(cfg, user)
	require.NoError(t, err)

	var got uuid.UUID
	app := fiber.New()
	app.Get("/", JwtProtected(cfg), func(c *fiber.Ctx) error {
		id, err := ActingUser(c, cfg.Claim)
		if err != nil {
			return c.SendStatus(fiber.StatusForbidden)
		}
		got = id
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, user, got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token+"x")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestActingUser_WrongClaim(t *testing.T) {
	cfg := &config.Jwt{Secret: "s3cret"}
	token, err := SignToken(cfg, uuid.New())
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/", JwtProtected(cfg), func(c *fiber.Ctx) error {
		_, err := ActingUser(c, "other")
		if errors.Is(err, ErrMissingActingUser) {
			return c.SendStatus(fiber.StatusForbidden)
		}
		return c.SendStatus(fiber.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
