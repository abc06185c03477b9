package server

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/F1Square/TripGo-Adv-client/internal/config"
	"github.com/F1Square/TripGo-Adv-client/internal/flush"
	"github.com/F1Square/TripGo-Adv-client/internal/session"
	"github.com/F1Square/TripGo-Adv-client/internal/stream"
	"github.com/F1Square/TripGo-Adv-client/internal/track"
	"github.com/F1Square/TripGo-Adv-client/internal/tripapi"
)

// TripLister proxies trip-history queries to the remote record service.
type TripLister interface {
	ListTrips(ctx context.Context, status track.Status, page, limit int) (tripapi.ListResult, error)
}

// Server is the local control surface of the tracker daemon. It exposes the
// session operations, lifecycle signals from the host platform and the live
// point stream.
type Server struct {
	App     *fiber.App
	Cfg     config.Config
	Ctrl    *session.Controller
	Flusher *flush.Flusher
	Lister  TripLister
	Stream  *stream.Hub
}

func NewServer(cfg config.Config, ctrl *session.Controller, flusher *flush.Flusher, lister TripLister, hub *stream.Hub) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:     app,
		Cfg:     cfg,
		Ctrl:    ctrl,
		Flusher: flusher,
		Lister:  lister,
		Stream:  hub,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.App.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(s.Ctrl.Status(c.Context()))
	})

	trips := s.App.Group("/trips")

	trips.Post("/start", func(c *fiber.Ctx) error {
		var body struct {
			Purpose       string  `json:"purpose"`
			StartOdometer float64 `json:"startOdometer"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res := s.Ctrl.Start(c.Context(), body.Purpose, body.StartOdometer)
		if !res.Success {
			return c.Status(fiber.StatusBadRequest).JSON(res)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	trips.Post("/end", func(c *fiber.Ctx) error {
		var body struct {
			EndOdometer float64 `json:"endOdometer"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res := s.Ctrl.End(c.Context(), body.EndOdometer)
		if !res.Success {
			return c.Status(fiber.StatusBadRequest).JSON(res)
		}
		return c.JSON(res)
	})

	trips.Get("/", func(c *fiber.Ctx) error {
		status := track.Status(c.Query("status"))
		page, _ := strconv.Atoi(c.Query("page", "1"))
		limit, _ := strconv.Atoi(c.Query("limit", "20"))

		list, err := s.Lister.ListTrips(c.Context(), status, page, limit)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(list)
	})

	trips.Delete("/:id", func(c *fiber.Ctx) error {
		res := s.Ctrl.Delete(c.Context(), c.Params("id"))
		if !res.Success {
			return c.Status(fiber.StatusBadRequest).JSON(res)
		}
		return c.JSON(res)
	})

	lifecycle := s.App.Group("/lifecycle")

	lifecycle.Post("/visibility", func(c *fiber.Ctx) error {
		var body struct {
			Visible bool `json:"visible"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		s.Flusher.NotifyVisibility(c.Context(), body.Visible)
		return c.JSON(fiber.Map{"success": true})
	})

	lifecycle.Post("/connectivity", func(c *fiber.Ctx) error {
		var body struct {
			Online bool `json:"online"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		s.Flusher.SetOnline(c.Context(), body.Online)
		return c.JSON(fiber.Map{"success": true, "online": body.Online})
	})

	if s.Stream != nil {
		stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
	}
}
