package middleware

import (
	"log"
	"time"

	"pasar/internal/services"

	"github.com/gofiber/fiber/v2"
)

// BanGate is a Fiber middleware that rejects requests from currently
// banned users. It must run after AuthRequired. The ban check itself
// lifts expired bans, so a user whose ban has run out gets through on
// their next request.
func BanGate(moderation *services.ModerationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return c.Next()
		}

		banned, expiresAt, err := moderation.IsUserBanned(c.Context(), userID)
		if err != nil {
			log.Printf("Ban check failed for user %s: %v", userID, err)
			// Fail open: a store hiccup should not lock every user out.
			return c.Next()
		}
		if banned {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message":        "Your account is temporarily suspended",
				"ban_expires_at": expiresAt,
				"ban_expires":    time.UnixMilli(expiresAt).Format(time.RFC3339),
			})
		}
		return c.Next()
	}
}
