package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newWalletApp() *fiber.App {
	app := fiber.New()
	app.Use(WalletContextMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("wallet_address").(string))
	})
	return app
}

func TestWalletContextMissingHeader(t *testing.T) {
	app := newWalletApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWalletContextNormalizesAddress(t *testing.T) {
	app := newWalletApp()

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("X-Wallet-Address", "  0xABCdef1234  ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "0xabcdef1234", string(body))
}

func TestGatewayAuthMiddleware(t *testing.T) {
	t.Setenv("MEME_SERVICE_TOKEN", "secret-token")

	app := fiber.New()
	app.Use(GatewayAuthMiddleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong token", "Bearer nope", fiber.StatusUnauthorized},
		{"bearer token", "Bearer secret-token", fiber.StatusOK},
		{"raw token", "secret-token", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
