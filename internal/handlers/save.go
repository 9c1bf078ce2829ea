package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/engine"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/middleware"
	"github.com/neogan74/savekit/internal/schema"
)

// SaveHandler exposes the lifecycle operations of one save path.
type SaveHandler struct {
	engine    *engine.Engine
	fromCloud bool
}

// NewSaveHandler creates a new save handler. fromCloud is the default
// cloud fallback for loads.
func NewSaveHandler(e *engine.Engine, fromCloud bool) *SaveHandler {
	return &SaveHandler{engine: e, fromCloud: fromCloud}
}

// LoadResponse is the JSON form of a loaded document.
type LoadResponse struct {
	Source      string                  `json:"source"`
	Version     string                  `json:"version"`
	Tags        []string                `json:"tags"`
	Backup      string                  `json:"backup,omitempty"`
	DecodeError string                  `json:"decode_error,omitempty"`
	Migration   *schema.MigrationResult `json:"migration,omitempty"`
	Document    any                     `json:"document"`
}

// Info reports the frame tags and size of the save file.
func (h *SaveHandler) Info(c *fiber.Ctx) error {
	info, err := h.engine.Inspect()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(info)
}

// Load returns the decoded document. ?migrate=true brings it to the
// target version first; ?cloud overrides the cloud fallback.
func (h *SaveHandler) Load(c *fiber.Ctx) error {
	ctx := c.UserContext()
	fromCloud := c.QueryBool("cloud", h.fromCloud)

	var (
		res engine.LoadResult
		out *engine.MigrateOutcome
		err error
	)
	if c.QueryBool("migrate", false) {
		var outcome engine.MigrateOutcome
		res, outcome, err = h.engine.LoadAndMigrate(ctx, fromCloud)
		out = &outcome
	} else {
		res, err = h.engine.Load(ctx, fromCloud)
	}
	if err != nil {
		return respondError(c, err)
	}

	resp := LoadResponse{
		Source:   string(res.Source),
		Version:  res.Version,
		Tags:     res.Tags,
		Document: document.ToNative(res.Document),
	}
	if res.Backup != nil {
		resp.Backup = res.Backup.FileName
	}
	if res.DecodeError != nil {
		resp.DecodeError = res.DecodeError.Error()
	}
	if out != nil {
		resp.Migration = &out.Migration
	}
	return c.JSON(resp)
}

// Store replaces the save with the document text in the body. With
// ?defer=true the document is only marked changed and written by the
// next flush.
func (h *SaveHandler) Store(c *fiber.Ctx) error {
	log := middleware.GetLogger(c)

	doc, err := document.Parse(string(c.Body()))
	if err != nil {
		return middleware.BadRequest(c, err.Error())
	}

	if c.QueryBool("defer", false) {
		h.engine.MarkChanged(doc)
		log.Debug("Save marked changed")
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"dirty": true})
	}

	res, err := h.engine.Save(c.UserContext(), doc, c.QueryBool("backup", true))
	if err != nil {
		return respondError(c, err)
	}
	log.Info("Save stored", logger.String("path", res.Path), logger.Int("bytes", res.Bytes))
	return c.JSON(res)
}

// Flush writes a pending deferred document.
func (h *SaveHandler) Flush(c *fiber.Ctx) error {
	flushed, err := h.engine.Flush(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"flushed": flushed})
}

// Validate validates the document text in the body at ?version, which
// defaults to the document's own version key.
func (h *SaveHandler) Validate(c *fiber.Ctx) error {
	text := string(c.Body())
	version := c.Query("version")
	if version == "" {
		if doc, err := document.Parse(text); err == nil {
			version = h.engine.DeclaredVersion(doc)
		}
	}
	result, _ := h.engine.Registry().ValidateText(text, version)
	status := fiber.StatusOK
	if !result.IsValid {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(result)
}

// Migrate validates and migrates the document text in the body to ?to.
func (h *SaveHandler) Migrate(c *fiber.Ctx) error {
	doc, err := document.Parse(string(c.Body()))
	if err != nil {
		return middleware.BadRequest(c, err.Error())
	}
	out, err := h.engine.ValidateAndMigrate(c.UserContext(), doc, c.Query("from"), c.Query("to"), true)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"validation": out.Validation,
		"migration":  out.Migration,
		"document":   document.ToNative(out.Document),
	})
}

// Sync reconciles the save with the remote slot.
func (h *SaveHandler) Sync(c *fiber.Ctx) error {
	res, err := h.engine.Sync(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// ListBackups lists the backups of the save, newest first.
func (h *SaveHandler) ListBackups(c *fiber.Ctx) error {
	records, err := h.engine.ListBackups()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"backups": records, "count": len(records)})
}

// RestoreBackup replaces the save with the named backup.
func (h *SaveHandler) RestoreBackup(c *fiber.Ctx) error {
	var body struct {
		Backup string `json:"backup"`
	}
	if err := c.BodyParser(&body); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}
	if body.Backup == "" {
		return middleware.BadRequest(c, "backup is required")
	}

	if err := h.engine.RestoreBackup(c.UserContext(), body.Backup); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Backup restored successfully",
		"backup":  body.Backup,
	})
}
