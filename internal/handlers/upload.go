package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/queue"
	"github.com/codebuildervaibhav/audio-library/internal/transcription"
	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// Submitter runs a job to completion on the worker pool
type Submitter interface {
	Submit(ctx context.Context, job *queue.Job) (*types.AudioRecord, error)
}

// UploadHandler handles file uploads
type UploadHandler struct {
	workerPool Submitter
	maxSize    int64
	log        *zap.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(workerPool Submitter, maxSize int64, log *zap.Logger) *UploadHandler {
	return &UploadHandler{
		workerPool: workerPool,
		maxSize:    maxSize,
		log:        log,
	}
}

// Handle saves, transcribes and stores the uploaded file before answering
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file uploaded", "ERR_NO_FILE")
	}

	if file.Size > h.maxSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.maxSize/(1024*1024)),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	if !transcription.ValidateAudioFormat(file.Filename) {
		return badRequest(c, "Unsupported audio format", "ERR_INVALID_FORMAT")
	}

	f, err := file.Open()
	if err != nil {
		h.log.Error("failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read upload",
			"code":  "ERR_SAVE_FAILED",
		})
	}
	defer f.Close()

	rec, err := h.workerPool.Submit(c.UserContext(), queue.NewJob(file.Filename, types.SourceUpload, f))
	if err != nil {
		return errorResponse(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"id":     rec.ID,
	})
}
