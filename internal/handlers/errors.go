package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/queue"
	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// classifyError maps a library error onto a status code, an error code and
// a fixed client message. The error text itself never reaches the client.
func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return fiber.StatusNotFound, "ERR_NOT_FOUND", "Audio not found"
	case errors.Is(err, types.ErrInvalidName):
		return fiber.StatusBadRequest, "ERR_INVALID_NAME", "Invalid file name"
	case errors.Is(err, types.ErrDuplicateKey):
		return fiber.StatusConflict, "ERR_DUPLICATE", "Audio already exists"
	case errors.Is(err, types.ErrTranscription):
		return fiber.StatusBadGateway, "ERR_TRANSCRIPTION_FAILED", "Transcription failed"
	case errors.Is(err, types.ErrStorage):
		return fiber.StatusInternalServerError, "ERR_STORAGE", "Failed to save file"
	case errors.Is(err, queue.ErrPoolClosed):
		return fiber.StatusServiceUnavailable, "ERR_SHUTTING_DOWN", "Server is shutting down"
	}
	return fiber.StatusInternalServerError, "ERR_INTERNAL", "Internal server error"
}

// errorResponse logs err and answers with the {"error", "code"} body used by
// every endpoint
func errorResponse(c *fiber.Ctx, log *zap.Logger, err error) error {
	status, code, msg := classifyError(err)
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.Path()), zap.String("code", code), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("path", c.Path()), zap.String("code", code), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}

func badRequest(c *fiber.Ctx, msg, code string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}
