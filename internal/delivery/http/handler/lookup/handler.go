package lookup

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	lookupuc "github.com/doncapon/yemisshop-sub009/internal/usecase/lookup"
)

type Handler struct {
	uc *lookupuc.Usecase
}

func New(uc *lookupuc.Usecase) *Handler {
	return &Handler{uc: uc}
}

func (h *Handler) Lookup(c *fiber.Ctx) error {
	profile, state, err := h.uc.Lookup(c.Context(), c.Params("rc"))
	if err != nil {
		if errors.Is(err, lookupuc.ErrThrottled) && state != nil {
			c.Set("Retry-After", state.RetryAt.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
			return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
		}
		return mapErr(err)
	}
	return c.JSON(fiber.Map{
		"company":  profile,
		"throttle": state,
	})
}

// Reset clears a throttle window, for operator remediation.
func (h *Handler) Reset(c *fiber.Ctx) error {
	if err := h.uc.Reset(c.Context(), c.Params("rc")); err != nil {
		return mapErr(err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, lookupuc.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, lookupuc.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, lookupuc.ErrThrottled):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, "registry unavailable")
	}
}
