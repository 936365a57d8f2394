package catalog

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	cataloguc "github.com/doncapon/yemisshop-sub009/internal/usecase/catalog"
)

type Handler struct {
	uc *cataloguc.Usecase
}

func New(uc *cataloguc.Usecase) *Handler {
	return &Handler{uc: uc}
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var req cataloguc.CreateProductInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}

	out, err := h.uc.CreateProduct(c.Context(), req)
	if err != nil {
		return mapErr(err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *Handler) List(c *fiber.Ctx) error {
	out, err := h.uc.ListProducts(c.Context(), c.QueryInt("limit", 20), c.QueryInt("offset", 0))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(fiber.Map{"items": out})
}

func (h *Handler) Update(c *fiber.Ctx) error {
	var req cataloguc.UpdateProductInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}

	out, err := h.uc.UpdateProduct(c.Context(), c.Params("id"), req)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(out)
}

func (h *Handler) UpsertOffer(c *fiber.Ctx) error {
	var req cataloguc.OfferInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}

	out, err := h.uc.UpsertOffer(c.Context(), c.Params("id"), req)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(out)
}

func (h *Handler) ListOffers(c *fiber.Ctx) error {
	out, err := h.uc.ListOffers(c.Context(), c.Params("id"))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(fiber.Map{"items": out})
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, cataloguc.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, cataloguc.ErrProductMissing):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
