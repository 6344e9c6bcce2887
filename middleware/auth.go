// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// WalletContextMiddleware extracts the wallet identity set by the Gateway.
// Signature verification happens upstream; by the time a request reaches this
// service the Gateway has already checked the wallet signature and forwards
// the address in X-Wallet-Address.
func WalletContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		wallet := strings.ToLower(strings.TrimSpace(c.Get("X-Wallet-Address")))
		if wallet == "" {
			log.Printf("❌ [WALLET_CTX] X-Wallet-Address missing on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-Wallet-Address: request must come through gateway with a verified wallet",
			})
		}

		c.Locals("wallet_address", wallet)
		return c.Next()
	}
}
