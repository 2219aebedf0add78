package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"ai-rag-be/pkg/store"
)

// ErrorHandlerMiddleware converts errors escaping the handlers into the
// shared envelope. Only invalid-query errors map to 400; everything
// else is a 500 (pipeline failures never reach here, they degrade
// inside the pipeline).
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		if store.KindOf(err) == store.KindInvalidQuery {
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(fiber.StatusBadRequest, err.Error()))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, err.Error()))
	}
}
