package middleware

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/pkg/utils"
)

const secret = "test-secret"

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(NewAuthMiddleware(secret, "postflow_session").AuthMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(fmt.Sprintf("%d/%d", c.Locals("user_id"), c.Locals("tenant_id")))
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	app := newApp()
	valid, err := utils.GenerateToken(secret, "7", "3", time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateToken(secret, "7", "3", -time.Hour)
	require.NoError(t, err)
	otherKey, err := utils.GenerateToken("other", "7", "3", time.Hour)
	require.NoError(t, err)
	noUser, err := utils.GenerateToken(secret, "", "3", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		cookie string
		status int
		body   string
	}{
		{name: "bearer", header: "Bearer " + valid, status: fiber.StatusOK, body: "7/3"},
		{name: "cookie", cookie: valid, status: fiber.StatusOK, body: "7/3"},
		{name: "missing", status: fiber.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: fiber.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + otherKey, status: fiber.StatusUnauthorized},
		{name: "no user", header: "Bearer " + noUser, status: fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.Header.Set(fiber.HeaderCookie, "postflow_session="+tt.cookie)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.body, string(body))
			}
		})
	}
}
