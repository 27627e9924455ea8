package handlers

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/queue"
	"github.com/codebuildervaibhav/audio-library/internal/transcription"
	"github.com/codebuildervaibhav/audio-library/internal/types"
)

const defaultStreamName = "stream_recording.webm"

// StreamHandler accepts an upload over a WebSocket: a text frame names the
// recording, binary frames carry the bytes, and "END" starts transcription
type StreamHandler struct {
	workerPool Submitter
	maxSize    int64
	log        *zap.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(workerPool Submitter, maxSize int64, log *zap.Logger) *StreamHandler {
	return &StreamHandler{
		workerPool: workerPool,
		maxSize:    maxSize,
		log:        log,
	}
}

type streamReply struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handle processes WebSocket connections
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	var (
		buffer      bytes.Buffer
		requestName string
		ended       bool
	)

	for !ended {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			h.log.Info("stream closed before END", zap.Error(err))
			return
		}

		switch messageType {
		case websocket.TextMessage:
			msg := string(message)
			if msg == "END" {
				ended = true
				continue
			}
			if len(msg) > 0 && len(msg) < 200 {
				requestName = msg
			}
		case websocket.BinaryMessage:
			if int64(buffer.Len()+len(message)) > h.maxSize {
				c.WriteJSON(streamReply{Status: "error", Error: fmt.Sprintf("stream exceeds %d bytes", h.maxSize)})
				return
			}
			buffer.Write(message)
		}
	}

	if buffer.Len() == 0 {
		c.WriteJSON(streamReply{Status: "error", Error: "no audio data received"})
		return
	}

	name := streamName(requestName)
	h.log.Info("stream received", zap.String("name", name), zap.Int("bytes", buffer.Len()))

	rec, err := h.workerPool.Submit(context.Background(), queue.NewJob(name, types.SourceStream, &buffer))
	if err != nil {
		_, _, msg := classifyError(err)
		h.log.Warn("stream upload failed", zap.String("name", name), zap.Error(err))
		c.WriteJSON(streamReply{Status: "error", Error: msg})
		return
	}
	c.WriteJSON(streamReply{Status: "ok", ID: rec.ID})
}

// streamName gives the recording a supported extension when the client did not
func streamName(requested string) string {
	if requested == "" {
		return defaultStreamName
	}
	if !transcription.ValidateAudioFormat(requested) {
		return requested + ".webm"
	}
	return requested
}

// upgradeOnly rejects plain HTTP requests on WebSocket routes
func upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
