package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/playback"
	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// Sync message types sent by the client
const (
	syncLoad    = "load"
	syncClick   = "click"
	syncTime    = "time"
	syncDeleted = "deleted"
)

// SyncHandler keeps one playback session per WebSocket connection. The
// client reports selections, clicks and time updates; the server answers
// with the highlight state to render.
type SyncHandler struct {
	library Library
	log     *zap.Logger
}

// NewSyncHandler creates a new playback sync handler
func NewSyncHandler(library Library, log *zap.Logger) *SyncHandler {
	return &SyncHandler{library: library, log: log}
}

type syncRequest struct {
	Type     string  `json:"type"`
	AudioID  string  `json:"audio_id,omitempty"`
	Index    *int    `json:"index,omitempty"`
	Position float64 `json:"position,omitempty"`
}

type syncReply struct {
	State    string                `json:"state"`
	AudioID  string                `json:"audio_id,omitempty"`
	AudioURL string                `json:"audio_url,omitempty"`
	Segments []types.Segment       `json:"segments,omitempty"`
	Active   int                   `json:"active"`
	Playing  []int                 `json:"playing"`
	Seek     *playback.SeekCommand `json:"seek,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// Handle processes WebSocket connections
func (h *SyncHandler) Handle(c *websocket.Conn) {
	defer c.Close()
	sess := playback.NewSession()

	for {
		var req syncRequest
		if err := c.ReadJSON(&req); err != nil {
			return
		}
		if err := c.WriteJSON(h.apply(context.Background(), sess, req)); err != nil {
			h.log.Info("sync write failed", zap.Error(err))
			return
		}
	}
}

// apply runs one client message against the session
func (h *SyncHandler) apply(ctx context.Context, sess *playback.Session, req syncRequest) syncReply {
	var reply syncReply

	switch req.Type {
	case syncLoad:
		detail, err := h.library.Detail(ctx, req.AudioID)
		if err != nil {
			_, _, reply.Error = classifyError(err)
			h.log.Debug("sync load failed", zap.String("audio_id", req.AudioID), zap.Error(err))
			break
		}
		sess.Load(detail.Record.ID, AudioURL(detail.Record.StoredName), detail.Segments)
		reply.AudioURL = sess.AudioURL()
		reply.Segments = sess.Segments()
	case syncClick:
		if req.Index == nil {
			reply.Error = "click requires an index"
			break
		}
		seek, err := sess.Click(*req.Index)
		if err != nil {
			reply.Error = err.Error()
			break
		}
		reply.Seek = &seek
	case syncTime:
		sess.Tick(req.Position)
	case syncDeleted:
		sess.Unload(req.AudioID)
	default:
		reply.Error = fmt.Sprintf("unknown message type %q", req.Type)
	}

	reply.State = sess.State().String()
	reply.AudioID = sess.AudioID()
	reply.Active = sess.Active()
	reply.Playing = sess.Playing()
	if reply.Playing == nil {
		reply.Playing = []int{}
	}
	return reply
}
