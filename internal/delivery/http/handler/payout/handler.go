package payout

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	payoutuc "github.com/doncapon/yemisshop-sub009/internal/usecase/payout"
)

type Handler struct {
	engine *payoutuc.Engine
}

func New(engine *payoutuc.Engine) *Handler {
	return &Handler{engine: engine}
}

// Release initiates the supplier payout for a delivered purchase order.
// Admin-only; retries are safe.
func (h *Handler) Release(c *fiber.Ctx) error {
	out, err := h.engine.Release(c.Context(), c.Params("id"))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(out)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, payoutuc.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, payoutuc.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, payoutuc.ErrNotDelivered),
		errors.Is(err, payoutuc.ErrDeliveryUnverified),
		errors.Is(err, payoutuc.ErrOpenRefund),
		errors.Is(err, payoutuc.ErrAlreadyRefunded):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, payoutuc.ErrSupplierUnverified):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, payoutuc.ErrTransferFailed):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
