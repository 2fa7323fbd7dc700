package tracking

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/yeezy-com/stride-track-explore/internal/auth"
)

type openRequest struct {
	CourseID string `json:"course_id"`
	Start    bool   `json:"start"`
}

type courseRequest struct {
	CourseID string `json:"course_id"`
}

type permissionRequest struct {
	Granted bool `json:"granted"`
}

type locationErrorRequest struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/sessions", authMiddleware, func(c *fiber.Ctx) error {
		var req openRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		runnerID := auth.RunnerID(c)
		snap, err := svc.Open(runnerID)
		if err != nil {
			return toHTTPError(err)
		}
		if req.CourseID != "" {
			if snap, err = svc.SelectCourse(c.UserContext(), runnerID, snap.SessionID, req.CourseID); err != nil {
				return toHTTPError(err)
			}
		}
		if req.Start {
			if snap, err = svc.Start(c.UserContext(), runnerID, snap.SessionID); err != nil {
				return toHTTPError(err)
			}
		}
		return c.Status(fiber.StatusCreated).JSON(snap)
	})

	r.Get("/sessions/:id", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Snapshot(auth.RunnerID(c), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(snap)
	})

	r.Delete("/sessions/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Discard(auth.RunnerID(c), c.Params("id")); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Put("/sessions/:id/course", authMiddleware, func(c *fiber.Ctx) error {
		var req courseRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, err := svc.SelectCourse(c.UserContext(), auth.RunnerID(c), c.Params("id"), req.CourseID)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(snap)
	})

	r.Put("/sessions/:id/permission", authMiddleware, func(c *fiber.Ctx) error {
		var req permissionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.SetLocationPermission(auth.RunnerID(c), c.Params("id"), req.Granted); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/sessions/:id/start", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Start(c.UserContext(), auth.RunnerID(c), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/sessions/:id/pause", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Pause(auth.RunnerID(c), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/sessions/:id/resume", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Resume(c.UserContext(), auth.RunnerID(c), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/sessions/:id/stop", authMiddleware, func(c *fiber.Ctx) error {
		var cond RunConditions
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&cond); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		res, err := svc.Stop(c.UserContext(), auth.RunnerID(c), c.Params("id"), cond)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(res)
	})

	r.Post("/sessions/:id/samples", authMiddleware, func(c *fiber.Ctx) error {
		var sample GeoSample
		if err := c.BodyParser(&sample); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, err := svc.Ingest(auth.RunnerID(c), c.Params("id"), sample)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(snap)
	})

	r.Post("/sessions/:id/location-error", authMiddleware, func(c *fiber.Ctx) error {
		var req locationErrorRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.ReportLocationError(auth.RunnerID(c), c.Params("id"), req.Kind, req.Message); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrRunnerRequired):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrInvalidSample), errors.Is(err, ErrInvalidRequest):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrCourseNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrLocationPermissionDenied):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidStateTransition), errors.Is(err, ErrNotSubscribed), errors.Is(err, ErrSessionClosed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
