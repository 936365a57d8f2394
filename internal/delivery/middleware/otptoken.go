package middleware

import "github.com/gofiber/fiber/v2"

const otpTokenHeader = "X-Otp-Token"

// RequireOtpToken gates endpoints that spend a verified passcode. The token
// is the request id returned by the verify endpoint; absence is reported as
// 428 so clients know to run the challenge first.
func RequireOtpToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(otpTokenHeader)
		if token == "" {
			return fiber.NewError(fiber.StatusPreconditionRequired, "otp token required")
		}
		c.Locals("otp_token", token)
		return c.Next()
	}
}

// OtpToken reads the token set by RequireOtpToken.
func OtpToken(c *fiber.Ctx) string {
	t, _ := c.Locals("otp_token").(string)
	return t
}
