package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/queue"
	"github.com/codebuildervaibhav/audio-library/internal/transcription"
	"github.com/codebuildervaibhav/audio-library/internal/types"
)

const gdriveDownloadURL = "https://drive.google.com/uc?export=download&id="

var (
	gdriveFilePattern = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	gdriveIDParam     = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	gdriveBareID      = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
)

// GDriveHandler imports a shared Google Drive file into the library
type GDriveHandler struct {
	workerPool  Submitter
	client      *http.Client
	downloadURL string
	log         *zap.Logger
}

// NewGDriveHandler creates a new Google Drive handler
func NewGDriveHandler(workerPool Submitter, log *zap.Logger) *GDriveHandler {
	return &GDriveHandler{
		workerPool:  workerPool,
		client:      &http.Client{Timeout: 30 * time.Minute},
		downloadURL: gdriveDownloadURL,
		log:         log,
	}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Handle downloads the linked file and runs it through the upload workflow
func (h *GDriveHandler) Handle(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", "ERR_INVALID_BODY")
	}
	if req.URL == "" {
		return badRequest(c, "URL is required", "ERR_NO_URL")
	}

	fileID := extractGDriveFileID(req.URL)
	if fileID == "" {
		return badRequest(c, "Invalid Google Drive URL", "ERR_INVALID_URL")
	}

	ctx := c.UserContext()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, h.downloadURL+fileID, nil)
	if err != nil {
		return badRequest(c, "Invalid Google Drive URL", "ERR_INVALID_URL")
	}

	h.log.Info("downloading from Google Drive", zap.String("file_id", fileID))
	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.log.Warn("Google Drive download failed", zap.String("file_id", fileID), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to download file from Google Drive",
			"code":  "ERR_DOWNLOAD_FAILED",
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return badRequest(c, "File not accessible (may be private or doesn't exist)", "ERR_FILE_NOT_ACCESSIBLE")
	}

	name := importName(req.Name, resp.Header.Get("Content-Disposition"), fileID)
	if !transcription.ValidateAudioFormat(name) {
		return badRequest(c, "Unsupported audio format", "ERR_INVALID_FORMAT")
	}

	rec, err := h.workerPool.Submit(ctx, queue.NewJob(name, types.SourceGDrive, resp.Body))
	if err != nil {
		return errorResponse(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"id":     rec.ID,
	})
}

// importName picks the display name: the requested name, else the name Drive
// sends, else one derived from the file id
func importName(requested, disposition, fileID string) string {
	if requested != "" {
		return requested
	}
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return fmt.Sprintf("gdrive_%s.mp3", fileID)
}

// extractGDriveFileID extracts the file ID from various Google Drive URL formats
func extractGDriveFileID(url string) string {
	// https://drive.google.com/file/d/{ID}/view
	if matches := gdriveFilePattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	// https://drive.google.com/open?id={ID}
	if matches := gdriveIDParam.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	if matches := gdriveBareID.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	return ""
}
