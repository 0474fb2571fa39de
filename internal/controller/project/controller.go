package controller

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"

	jwtController "voxedit/internal/controller/jwt"
	"voxedit/internal/models"
	"voxedit/internal/service"
)

func New(
	srvProject Project,
	srvHistory History,
	srvPreview Preview,
	jwtC *jwtController.JWT,
	sampleDir string,
) *fiber.App {
	projectCtr := projectController{
		srvProject: srvProject,
		srvHistory: srvHistory,
		srvPreview: srvPreview,
		sampleDir:  sampleDir,
	}

	app := fiber.New(fiber.Config{
		EnableSplittingOnParsers: true,
	})

	app.Use(jwtC.AuthRequired())

	app.Post("/", projectCtr.newProject)
	app.Get("/", projectCtr.project)
	app.Get("/segments", projectCtr.segments)
	app.Get("/segments/:id", projectCtr.segment)
	app.Patch("/segments/:id", projectCtr.editSegment)
	app.Get("/segments/:id/history", projectCtr.history)
	app.Post("/speakers/:id/sample", projectCtr.uploadSample)
	app.Get("/preview.mpd", projectCtr.preview)

	return app
}

type projectController struct {
	srvProject Project
	srvHistory History
	srvPreview Preview
	sampleDir  string
}

type Project interface {
	Ingest(ctx context.Context, in models.ProjectIn) (models.VideoProject, error)
	Snapshot() (models.VideoProject, error)
	Segments() ([]models.VideoSegment, error)
	Segment(id int64) (models.VideoSegment, error)
	Search(query string, maxResp int) ([]models.VideoSegment, error)
	ApplyEdit(ctx context.Context, edit models.SegmentEdit) (models.VideoSegment, error)
	SetSpeakerSample(speakerID int64, samplePath string) error
}

type History interface {
	HistoryFor(segmentID int64) iter.Seq[models.SegmentEdit]
}

type Preview interface {
	Render(ctx context.Context) (string, error)
}

// newProject ingests a transcript payload and loads it
// as the active project.
func (projectCtr *projectController) newProject(c *fiber.Ctx) error {
	var in models.ProjectIn

	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	if in.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title required",
		})
	}
	if len(in.Videos) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "videos required",
		})
	}

	project, err := projectCtr.srvProject.Ingest(context.TODO(), in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTimeRange) ||
			errors.Is(err, service.ErrTimingOverlap) ||
			errors.Is(err, service.ErrOrderingGap) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"project": project,
	})
}

// project returns the whole aggregate.
func (projectCtr *projectController) project(c *fiber.Ctx) error {
	project, err := projectCtr.srvProject.Snapshot()
	if err != nil {
		if errors.Is(err, service.ErrProjectNotLoaded) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no project loaded",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"project": project,
	})
}

// segments returns segments in timeline order,
// filtered by query text if given.
func (projectCtr *projectController) segments(c *fiber.Ctx) error {
	var (
		segments []models.VideoSegment
		err      error
	)

	if q := c.Query("q"); q != "" {
		segments, err = projectCtr.srvProject.Search(q, c.QueryInt("res_len"))
	} else {
		segments, err = projectCtr.srvProject.Segments()
	}
	if err != nil {
		if errors.Is(err, service.ErrProjectNotLoaded) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no project loaded",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"segments": segments,
	})
}

// segment returns one segment by id.
func (projectCtr *projectController) segment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad id",
		})
	}

	segment, err := projectCtr.srvProject.Segment(id)
	if err != nil {
		if errors.Is(err, service.ErrProjectNotLoaded) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no project loaded",
			})
		}
		if errors.Is(err, service.ErrSegmentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "segment not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"segment": segment,
	})
}

// editSegment applies one field edit to a segment.
func (projectCtr *projectController) editSegment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad id",
		})
	}

	var request struct {
		Field     models.EditField  `json:"field"`
		Text      *string           `json:"text,omitempty"`
		SpeakerID *int64            `json:"speaker_id,omitempty"`
		Timing    *models.TimeRange `json:"timing,omitempty"`
		Author    string            `json:"author"`
	}

	if err := c.BodyParser(&request); err != nil {
		return fiber.ErrBadRequest
	}

	if request.Author == "" {
		request.Author = models.RootLogin
	}

	segment, err := projectCtr.srvProject.ApplyEdit(context.TODO(), models.SegmentEdit{
		SegmentID: id,
		Field:     request.Field,
		Text:      request.Text,
		SpeakerID: request.SpeakerID,
		Timing:    request.Timing,
		Timestamp: time.Now(),
		Author:    request.Author,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProjectNotLoaded):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no project loaded",
			})
		case errors.Is(err, service.ErrSegmentNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "segment not found",
			})
		case errors.Is(err, service.ErrSpeakerNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "speaker not found",
			})
		case errors.Is(err, service.ErrWordCountExceeded),
			errors.Is(err, service.ErrInvalidTimeRange),
			errors.Is(err, service.ErrTimingOverlap),
			errors.Is(err, service.ErrMalformedEdit):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"segment": segment,
	})
}

// history returns the edit trail of one segment.
func (projectCtr *projectController) history(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad id",
		})
	}

	if _, err := projectCtr.srvProject.Segment(id); err != nil {
		if errors.Is(err, service.ErrProjectNotLoaded) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no project loaded",
			})
		}
		if errors.Is(err, service.ErrSegmentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "segment not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	edits := make([]models.SegmentEdit, 0)
	for e := range projectCtr.srvHistory.HistoryFor(id) {
		edits = append(edits, e)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"history": edits,
	})
}

// uploadSample stores a reference voice sample for a speaker.
func (projectCtr *projectController) uploadSample(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad id",
		})
	}

	file, err := c.FormFile("sample")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid file",
		})
	}

	reader, err := file.Open()
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	mimeType, err := mimetype.DetectReader(reader)
	reader.Close()
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if !mimeType.Is("audio/wav") && !mimeType.Is("audio/mpeg") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unsupported mime-type",
		})
	}

	samplePath := filepath.Join(projectCtr.sampleDir, "speaker_"+c.Params("id")+mimeType.Extension())
	if err := os.MkdirAll(projectCtr.sampleDir, 0o755); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if err := c.SaveFile(file, samplePath); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if err := projectCtr.srvProject.SetSpeakerSample(id, samplePath); err != nil {
		defer os.Remove(samplePath)
		if errors.Is(err, service.ErrProjectNotLoaded) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no project loaded",
			})
		}
		if errors.Is(err, service.ErrSpeakerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "speaker not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"path": samplePath,
	})
}

// preview returns the DASH manifest for the edited cut.
func (projectCtr *projectController) preview(c *fiber.Ctx) error {
	out, err := projectCtr.srvPreview.Render(context.TODO())
	if err != nil {
		if errors.Is(err, service.ErrProjectNotLoaded) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no project loaded",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	c.Set(fiber.HeaderContentType, "application/dash+xml")
	return c.Status(fiber.StatusOK).SendString(out)
}
