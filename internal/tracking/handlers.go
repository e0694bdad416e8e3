package tracking

import (
	"errors"
	"fmt"

	"github.com/erwinnova/umkm-tracker/internal/session"

	"github.com/gofiber/fiber/v2"
)

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	SessionID *string  `json:"session_id"`
}

func RegisterRoutes(r fiber.Router, svc *Service, sessions *session.Service, authMiddleware fiber.Handler) {
	r.Post("/location", authMiddleware, func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Latitude == nil || req.Longitude == nil {
			return fiber.NewError(fiber.StatusBadRequest, "latitude and longitude required")
		}

		sellerID, _ := c.Locals("seller_id").(string)
		entry, err := svc.Ingest(c.Context(), sellerID, *req.Latitude, *req.Longitude, req.SessionID)
		if err != nil {
			if errors.Is(err, ErrInvalidCoordinate) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		if entry == nil {
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{
				"status":  "skipped",
				"message": "location skipped by sampling policy",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":  "ok",
			"message": "location recorded",
			"data":    entry,
		})
	})

	r.Get("/session/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := requireOwnedSession(c, sessions); err != nil {
			return err
		}

		logs, err := svc.SessionLogs(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(logs)
	})

	r.Get("/session/:id/distance", authMiddleware, func(c *fiber.Ctx) error {
		if err := requireOwnedSession(c, sessions); err != nil {
			return err
		}

		sessionID := c.Params("id")
		km, err := sessions.RecomputeDistance(c.Context(), sessionID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"session_id":        sessionID,
			"total_distance_km": fmt.Sprintf("%.2f", km),
		})
	})
}

// requireOwnedSession rejects reads of another seller's session. A foreign
// session reads as not found, never as forbidden.
func requireOwnedSession(c *fiber.Ctx, sessions *session.Service) error {
	sess, err := sessions.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	sellerID, _ := c.Locals("seller_id").(string)
	if sess.SellerID != sellerID {
		return fiber.NewError(fiber.StatusNotFound, session.ErrSessionNotFound.Error())
	}
	return nil
}
