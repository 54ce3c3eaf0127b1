package validation

import "github.com/gofiber/fiber/v2"

// Write a 400 response in Laravel-style format
func Respond(c *fiber.Ctx, errs map[string][]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errs,
	})
}
