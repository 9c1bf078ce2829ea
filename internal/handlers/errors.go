// Package handlers implements the admin HTTP endpoints over the engine.
package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/neogan74/savekit/internal/engine"
	"github.com/neogan74/savekit/internal/filestore"
	"github.com/neogan74/savekit/internal/middleware"
)

// respondError maps an engine failure onto an HTTP status.
func respondError(c *fiber.Ctx, err error) error {
	kind := engine.KindOf(err)
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNoMirror):
		status = fiber.StatusServiceUnavailable
	case filestore.IsNotFound(err):
		status = fiber.StatusNotFound
	case kind == engine.KindDecode, kind == engine.KindEncode, kind == engine.KindValidation:
		status = fiber.StatusUnprocessableEntity
	case kind == engine.KindMigration:
		status = fiber.StatusConflict
	}

	name := ""
	if kind != 0 {
		name = kind.String()
	}
	return middleware.ErrorWithKind(c, status, name, err.Error())
}
