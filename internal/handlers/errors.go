package handlers

import (
	"errors"

	"pageturner/internal/apperror"
	"pageturner/internal/logger"
	"pageturner/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const genericMessage = "Something went wrong!"

// ErrorHandler maps errors returned by handlers and middleware to JSON responses.
// Raw details of internal errors are only exposed when expose is set.
func ErrorHandler(log logrus.FieldLogger, expose bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperror.Error
		if errors.As(err, &appErr) && appErr.Kind != apperror.KindInternal {
			body := fiber.Map{"message": appErr.Message, "type": appErr.Kind.String()}
			if appErr.Details != nil {
				body["errors"] = appErr.Details
			}
			return c.Status(appErr.Kind.HTTPStatus()).JSON(body)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"message": fiberErr.Message})
		}

		logger.LogError(log, "unhandled error", err, logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		})
		body := fiber.Map{"message": genericMessage, "type": apperror.KindInternal.String()}
		if expose {
			body["error"] = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}
}

// parseBody decodes the JSON request body into out, reporting malformed input as a ValidationError.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperror.Validation("Invalid request body", validation.ToDetails(err))
	}
	return nil
}
