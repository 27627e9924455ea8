package handlers

import (
	"context"
	"mime"
	"net/url"
	"os"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/subtitles"
	"github.com/codebuildervaibhav/audio-library/internal/transcription"
	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// Library is the read and delete side of the audio library
type Library interface {
	List(ctx context.Context) ([]types.AudioSummary, error)
	Detail(ctx context.Context, audioID string) (*types.AudioDetail, error)
	Delete(ctx context.Context, audioID string) (bool, error)
	OpenAudio(storedName string) (*os.File, int64, error)
}

// LibraryHandler serves listing, detail, deletion, audio bytes and subtitles
type LibraryHandler struct {
	library Library
	log     *zap.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(library Library, log *zap.Logger) *LibraryHandler {
	return &LibraryHandler{library: library, log: log}
}

// AudioURL is the path a stored file is served from
func AudioURL(storedName string) string {
	return "/audio/" + url.PathEscape(storedName)
}

type audioDataResponse struct {
	AudioURL string          `json:"audio_url"`
	Segments []types.Segment `json:"segments"`
}

// List handles GET /library
func (h *LibraryHandler) List(c *fiber.Ctx) error {
	list, err := h.library.List(c.UserContext())
	if err != nil {
		return errorResponse(c, h.log, err)
	}
	return c.JSON(list)
}

// AudioData handles GET /audio_data/:id
func (h *LibraryHandler) AudioData(c *fiber.Ctx) error {
	detail, err := h.library.Detail(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, h.log, err)
	}
	return c.JSON(audioDataResponse{
		AudioURL: AudioURL(detail.Record.StoredName),
		Segments: detail.Segments,
	})
}

// Delete handles DELETE /delete/:id. Unknown ids are reported in the body,
// not with a 404.
func (h *LibraryHandler) Delete(c *fiber.Ctx) error {
	deleted, err := h.library.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, h.log, err)
	}
	if !deleted {
		return c.JSON(fiber.Map{"status": "not_found"})
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// Audio handles GET /audio/:name
func (h *LibraryHandler) Audio(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return badRequest(c, "Invalid file name", "ERR_INVALID_NAME")
	}

	f, size, err := h.library.OpenAudio(name)
	if err != nil {
		return errorResponse(c, h.log, err)
	}

	c.Set(fiber.HeaderContentType, transcription.ContentType(name))
	// fasthttp closes the stream once the body is written
	return c.SendStream(f, int(size))
}

// Subtitles handles GET /subtitles/:id/:format
func (h *LibraryHandler) Subtitles(c *fiber.Ctx) error {
	format := c.Params("format")
	contentType, ok := subtitles.ContentTypes[format]
	if !ok {
		return badRequest(c, "Unsupported subtitle format", "ERR_INVALID_FORMAT")
	}

	detail, err := h.library.Detail(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, h.log, err)
	}

	data, err := subtitles.Render(detail.Segments, format)
	if err != nil {
		return errorResponse(c, h.log, err)
	}

	fileName := subtitles.FileName(detail.Record.StoredName, format)
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	return c.Send(data)
}
