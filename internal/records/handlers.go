package records

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yeezy-com/stride-track-explore/internal/auth"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		list, err := svc.Recent(c.Context(), auth.RunnerID(c), c.QueryInt("limit", RecentLimit))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(list)
	})

	r.Get("/stats", authMiddleware, func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.Context(), auth.RunnerID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(stats)
	})
}
