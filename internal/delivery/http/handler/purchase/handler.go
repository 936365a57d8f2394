package purchase

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/doncapon/yemisshop-sub009/internal/delivery/middleware"
	otpuc "github.com/doncapon/yemisshop-sub009/internal/usecase/otp"
	purchaseuc "github.com/doncapon/yemisshop-sub009/internal/usecase/purchase"
)

type Handler struct {
	uc *purchaseuc.Usecase
}

func New(uc *purchaseuc.Usecase) *Handler {
	return &Handler{uc: uc}
}

func (h *Handler) Get(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return mapErr(err)
	}
	if out == nil {
		return fiber.NewError(fiber.StatusNotFound, "purchase order not found")
	}
	return c.JSON(out)
}

func (h *Handler) ListByOrder(c *fiber.Ctx) error {
	out, err := h.uc.ListByOrder(c.Context(), c.Params("id"))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(fiber.Map{"items": out})
}

// Accept is the physical supplier's acknowledgement of a pending PO.
func (h *Handler) Accept(c *fiber.Ctx) error {
	out, err := h.uc.Accept(c.Context(), c.Params("id"))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(out)
}

func (h *Handler) MarkShipped(c *fiber.Ctx) error {
	out, err := h.uc.MarkShipped(c.Context(), c.Params("id"))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(out)
}

func (h *Handler) RequestDeliveryOTP(c *fiber.Ctx) error {
	iss, rep, err := h.uc.RequestDeliveryOTP(c.Context(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(fiber.Map{
		"requestId": iss.RequestID,
		"expiresAt": iss.ExpiresAt,
		"delivery":  rep,
	})
}

func (h *Handler) ConfirmDelivery(c *fiber.Ctx) error {
	out, err := h.uc.ConfirmDelivery(c.Context(), c.Params("id"), middleware.UserID(c), middleware.OtpToken(c))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(out)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, purchaseuc.ErrInvalidInput), errors.Is(err, otpuc.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, purchaseuc.ErrNotFound), errors.Is(err, purchaseuc.ErrOrderMissing), errors.Is(err, otpuc.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, purchaseuc.ErrNotOwner), errors.Is(err, otpuc.ErrWrongSubject), errors.Is(err, otpuc.ErrNotVerified):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, purchaseuc.ErrAlreadySplit), errors.Is(err, purchaseuc.ErrOrderNotPaid),
		errors.Is(err, purchaseuc.ErrInvalidTransition), errors.Is(err, otpuc.ErrConsumed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, otpuc.ErrCooldown):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
