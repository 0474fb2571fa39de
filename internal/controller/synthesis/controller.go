package controller

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	jwtController "voxedit/internal/controller/jwt"
	"voxedit/internal/models"
	"voxedit/internal/service"
)

func New(
	srv Synthesis,
	jwtC *jwtController.JWT,
) *fiber.App {
	synthCtr := synthesisController{
		srv: srv,
	}

	app := fiber.New()

	app.Use(jwtC.AuthRequired())

	app.Post("/:id", synthCtr.enqueue)
	app.Get("/", synthCtr.statusAll)
	app.Get("/:id", synthCtr.status)
	app.Delete("/:id", synthCtr.cancel)

	return app
}

type synthesisController struct {
	srv Synthesis
}

type Synthesis interface {
	Enqueue(ctx context.Context, segmentID int64) error
	Cancel(segmentID int64) error
	StatusOf(segmentID int64) (models.SynthesisStatus, bool)
	StatusAll() map[int64]models.SynthesisStatus
}

// enqueue submits a segment for regeneration.
func (synthCtr *synthesisController) enqueue(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad id",
		})
	}

	if err := synthCtr.srv.Enqueue(context.TODO(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrProjectNotLoaded):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no project loaded",
			})
		case errors.Is(err, service.ErrSegmentNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "segment not found",
			})
		case errors.Is(err, service.ErrAlreadyInFlight):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "segment already queued",
			})
		case errors.Is(err, service.ErrSilenceSegment),
			errors.Is(err, service.ErrWordCountExceeded),
			errors.Is(err, service.ErrTextTooLong):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// statusAll returns tracked synthesis states.
func (synthCtr *synthesisController) statusAll(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"statuses": synthCtr.srv.StatusAll(),
	})
}

// status returns one segment's synthesis state.
// Absent means the segment was never submitted.
func (synthCtr *synthesisController) status(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad id",
		})
	}

	status, ok := synthCtr.srv.StatusOf(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not submitted",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": status,
	})
}

// cancel withdraws a pending job or signals an in-progress one.
func (synthCtr *synthesisController) cancel(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad id",
		})
	}

	if err := synthCtr.srv.Cancel(id); err != nil {
		if errors.Is(err, service.ErrNotInFlight) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "not in flight",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}
