package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-widget/internal/controller"
	"github.com/i474232898/weather-widget/internal/weather"
)

var validate = validator.New()

// Controller is the part of the query controller the HTTP layer drives.
type Controller interface {
	State() controller.State
	SetPlace(text string)
	SetCoordinates(coords weather.Coordinates)
	Refresh()
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, ctrl Controller) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		return c.JSON(newStateView(ctrl.State()))
	})

	v1.Put("/weather/place", func(c *fiber.Ctx) error {
		var req placeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctrl.SetPlace(req.Place)
		return c.Status(fiber.StatusAccepted).JSON(newStateView(ctrl.State()))
	})

	v1.Delete("/weather/place", func(c *fiber.Ctx) error {
		ctrl.SetPlace("")
		return c.JSON(newStateView(ctrl.State()))
	})

	v1.Put("/weather/coords", func(c *fiber.Ctx) error {
		var req coordsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctrl.SetCoordinates(weather.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude})
		return c.Status(fiber.StatusAccepted).JSON(newStateView(ctrl.State()))
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		ctrl.Refresh()
		return c.Status(fiber.StatusAccepted).JSON(newStateView(ctrl.State()))
	})
}

// placeRequest is the body of PUT /weather/place.
type placeRequest struct {
	Place string `json:"place" validate:"max=256"`
}

// coordsRequest is the body of PUT /weather/coords.
type coordsRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}
