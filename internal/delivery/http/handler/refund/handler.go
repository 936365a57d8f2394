package refund

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/doncapon/yemisshop-sub009/internal/delivery/middleware"
	refunduc "github.com/doncapon/yemisshop-sub009/internal/usecase/refund"
)

type Handler struct {
	uc *refunduc.Usecase
}

func New(uc *refunduc.Usecase) *Handler {
	return &Handler{uc: uc}
}

func (h *Handler) Request(c *fiber.Ctx) error {
	var in refunduc.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	in.UserID = middleware.UserID(c)

	out, err := h.uc.Request(c.Context(), in)
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
		return fiber.NewError(fiber.StatusNotFound, "refund not found")
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

type decideRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note,omitempty"`
}

// Decide moves a refund along its review path. Approval has its own endpoint
// so the clawback cannot be skipped.
func (h *Handler) Decide(c *fiber.Ctx) error {
	var req decideRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}

	out, err := h.uc.Decide(c.Context(), c.Params("id"), req.Status, middleware.UserID(c), req.Note)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(out)
}

type approveRequest struct {
	Note *string `json:"note,omitempty"`
}

func (h *Handler) Approve(c *fiber.Ctx) error {
	// the note body is optional
	var req approveRequest
	_ = c.BodyParser(&req)

	out, entries, err := h.uc.Approve(c.Context(), c.Params("id"), middleware.UserID(c), req.Note)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(fiber.Map{
		"refund":  out,
		"entries": entries,
	})
}

func (h *Handler) SupplierBalance(c *fiber.Ctx) error {
	balance, err := h.uc.SupplierBalance(c.Context(), c.Params("id"))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(fiber.Map{
		"supplierId":  c.Params("id"),
		"balanceKobo": balance,
	})
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, refunduc.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, refunduc.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, refunduc.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
