package middleware

import (
    "net/http"

    "github.com/gofiber/fiber/v2"
)

// RequireRole gates a route to users carrying the given role. It must run
// after JWTAuth, which stores the role in locals.
func RequireRole(role string) fiber.Handler {
    return func(c *fiber.Ctx) error {
        got, _ := c.Locals("user_role").(string)
        if got != role {
            return fiber.NewError(http.StatusForbidden, "insufficient role")
        }
        return c.Next()
    }
}
