package order

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/doncapon/yemisshop-sub009/internal/delivery/middleware"
	orderuc "github.com/doncapon/yemisshop-sub009/internal/usecase/order"
	otpuc "github.com/doncapon/yemisshop-sub009/internal/usecase/otp"
)

type Handler struct {
	uc *orderuc.Usecase
}

func New(uc *orderuc.Usecase) *Handler {
	return &Handler{uc: uc}
}

func (h *Handler) Checkout(c *fiber.Ctx) error {
	var in orderuc.CheckoutInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	in.UserID = middleware.UserID(c)

	out, err := h.uc.Checkout(c.Context(), in)
	if err != nil {
		return mapErr(err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return mapErr(err)
	}
	if out == nil {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}
	// customers only see their own orders
	if middleware.Role(c) != "admin" && out.UserID != middleware.UserID(c) {
		return fiber.NewError(fiber.StatusForbidden, "not your order")
	}
	return c.JSON(out)
}

func (h *Handler) List(c *fiber.Ctx) error {
	in := orderuc.ListInput{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if middleware.Role(c) == "admin" {
		in.UserID = c.Query("userId")
	} else {
		in.UserID = middleware.UserID(c)
	}

	out, err := h.uc.List(c.Context(), in)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(fiber.Map{"items": out})
}

func (h *Handler) RequestPayOTP(c *fiber.Ctx) error {
	iss, rep, err := h.uc.RequestPayOTP(c.Context(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(fiber.Map{
		"requestId": iss.RequestID,
		"expiresAt": iss.ExpiresAt,
		"delivery":  rep,
	})
}

func (h *Handler) ConfirmPay(c *fiber.Ctx) error {
	out, err := h.uc.ConfirmPay(c.Context(), c.Params("id"), middleware.UserID(c), middleware.OtpToken(c))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(out)
}

func (h *Handler) RequestCancelOTP(c *fiber.Ctx) error {
	iss, rep, err := h.uc.RequestCancelOTP(c.Context(), c.Params("id"))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(fiber.Map{
		"requestId": iss.RequestID,
		"expiresAt": iss.ExpiresAt,
		"delivery":  rep,
	})
}

func (h *Handler) ConfirmCancel(c *fiber.Ctx) error {
	out, err := h.uc.ConfirmCancel(c.Context(), c.Params("id"), middleware.OtpToken(c))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(out)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, orderuc.ErrInvalidInput), errors.Is(err, otpuc.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, orderuc.ErrNotFound), errors.Is(err, orderuc.ErrUserMissing), errors.Is(err, otpuc.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, orderuc.ErrOfferMissing):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, orderuc.ErrNotOwner), errors.Is(err, otpuc.ErrWrongSubject), errors.Is(err, otpuc.ErrNotVerified):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, orderuc.ErrAlreadyPaid), errors.Is(err, orderuc.ErrInvalidTransition), errors.Is(err, otpuc.ErrConsumed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, otpuc.ErrCooldown):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
