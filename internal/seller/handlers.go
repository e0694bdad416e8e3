package seller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type statusRequest struct {
	IsOpen *bool `json:"is_open"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		sellerID, _ := c.Locals("seller_id").(string)
		seller, err := svc.Get(c.Context(), sellerID)
		if err != nil {
			if errors.Is(err, ErrSellerNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(seller)
	})

	r.Post("/status", authMiddleware, func(c *fiber.Ctx) error {
		var req statusRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.IsOpen == nil {
			return fiber.NewError(fiber.StatusBadRequest, "is_open required")
		}

		sellerID, _ := c.Locals("seller_id").(string)
		seller, sess, err := svc.SetOpen(c.Context(), sellerID, *req.IsOpen)
		if err != nil {
			if errors.Is(err, ErrSellerNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"seller": seller, "session": sess})
	})
}
