package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Handlers groups everything RegisterRoutes mounts. Nil handlers are skipped.
type Handlers struct {
	Upload  *UploadHandler
	Library *LibraryHandler
	GDrive  *GDriveHandler
	Stream  *StreamHandler
	Sync    *SyncHandler
}

// RegisterRoutes mounts the library API on app
func RegisterRoutes(app *fiber.App, h Handlers) {
	if h.Upload != nil {
		app.Post("/transcribe", h.Upload.Handle)
	}
	if h.Library != nil {
		app.Get("/library", h.Library.List)
		app.Get("/audio_data/:id", h.Library.AudioData)
		app.Delete("/delete/:id", h.Library.Delete)
		app.Get("/audio/:name", h.Library.Audio)
		app.Get("/subtitles/:id/:format", h.Library.Subtitles)
	}
	if h.GDrive != nil {
		app.Post("/import/gdrive", h.GDrive.Handle)
	}

	if h.Stream != nil || h.Sync != nil {
		app.Use("/ws", upgradeOnly)
	}
	if h.Stream != nil {
		app.Get("/ws/upload", websocket.New(h.Stream.Handle))
	}
	if h.Sync != nil {
		app.Get("/ws/sync", websocket.New(h.Sync.Handle))
	}
}
