package otp

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	otpuc "github.com/doncapon/yemisshop-sub009/internal/usecase/otp"
)

type Handler struct {
	gate *otpuc.Gate
}

func New(gate *otpuc.Gate) *Handler {
	return &Handler{gate: gate}
}

type verifyRequest struct {
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
}

// Verify checks a submitted passcode. On success the request id doubles as
// the X-Otp-Token for the privileged follow-up call.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}

	res, err := h.gate.Verify(c.Context(), req.RequestID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, otpuc.ErrInvalidInput):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, otpuc.ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		default:
			return fiber.NewError(fiber.StatusInternalServerError, "internal error")
		}
	}
	return c.JSON(res)
}
