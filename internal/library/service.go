// Package library runs the upload workflow and serves the audio library:
// save the asset, transcribe it, persist the segments, and read or delete
// entries afterwards.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// Transcriber turns an audio file into ordered, timed segments
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) ([]types.Segment, error)
}

// Store is the relational side of the library
type Store interface {
	SaveTranscription(ctx context.Context, rec types.AudioRecord, segments []types.Segment) error
	ListAudio(ctx context.Context) ([]types.AudioSummary, error)
	GetAudio(ctx context.Context, audioID string) (*types.AudioRecord, error)
	GetAudioDetail(ctx context.Context, audioID string) (*types.AudioDetail, error)
	DeleteAudio(ctx context.Context, audioID string) (bool, error)
}

// Assets is the file side of the library
type Assets interface {
	Save(ctx context.Context, id, suggestedName string, r io.Reader) (string, error)
	Open(storedName string) (*os.File, int64, error)
	Path(storedName string) (string, error)
	Remove(ctx context.Context, storedName string) error
}

// Mirror receives a copy of every committed transcription
type Mirror interface {
	Upload(ctx context.Context, rec types.AudioRecord, segments []types.Segment) (string, error)
}

// Service ties the store, the asset directory and the transcriber together
type Service struct {
	store       Store
	assets      Assets
	transcriber Transcriber
	language    string
	mirror      Mirror
	log         *zap.Logger
	newID       func() string
}

// Option configures a Service
type Option func(*Service)

// WithMirror sets a best-effort mirror for committed transcriptions
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithIDGenerator replaces the UUID generator
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a library service transcribing in the given language
func NewService(store Store, assets Assets, transcriber Transcriber, language string, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		assets:      assets,
		transcriber: transcriber,
		language:    language,
		log:         log,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transcribe saves the upload, transcribes it and stores the result. The
// saved file is removed again if transcription or persistence fails.
func (s *Service) Transcribe(ctx context.Context, originalName string, r io.Reader) (*types.AudioRecord, error) {
	id := s.newID()
	log := s.log.With(zap.String("audio_id", id), zap.String("name", originalName))

	storedName, err := s.assets.Save(ctx, id, originalName, r)
	if err != nil {
		if errors.Is(err, types.ErrDuplicateKey) {
			return nil, err
		}
		return nil, fmt.Errorf("save upload: %w: %w", types.ErrStorage, err)
	}

	path, err := s.assets.Path(storedName)
	if err != nil {
		s.discard(ctx, log, storedName)
		return nil, fmt.Errorf("resolve upload: %w: %w", types.ErrStorage, err)
	}

	log.Info("transcribing", zap.String("stored_name", storedName), zap.String("language", s.language))
	segments, err := s.transcriber.Transcribe(ctx, path, s.language)
	if err != nil {
		s.discard(ctx, log, storedName)
		return nil, fmt.Errorf("%w: %w", types.ErrTranscription, err)
	}
	if err := ValidateSegments(segments); err != nil {
		s.discard(ctx, log, storedName)
		return nil, fmt.Errorf("%w: malformed output: %w", types.ErrTranscription, err)
	}

	rec := types.AudioRecord{ID: id, StoredName: storedName, OriginalName: originalName}
	if err := s.store.SaveTranscription(ctx, rec, segments); err != nil {
		s.discard(ctx, log, storedName)
		if errors.Is(err, types.ErrDuplicateKey) {
			return nil, err
		}
		return nil, fmt.Errorf("persist transcription: %w: %w", types.ErrStorage, err)
	}

	log.Info("transcription stored", zap.Int("segments", len(segments)))

	if s.mirror != nil {
		if url, err := s.mirror.Upload(ctx, rec, segments); err != nil {
			log.Warn("mirror upload failed", zap.Error(err))
		} else {
			log.Info("mirrored transcription", zap.String("url", url))
		}
	}

	return &rec, nil
}

// List returns every library entry
func (s *Service) List(ctx context.Context) ([]types.AudioSummary, error) {
	return s.store.ListAudio(ctx)
}

// Detail returns the record and ordered segments for audioID
func (s *Service) Detail(ctx context.Context, audioID string) (*types.AudioDetail, error) {
	return s.store.GetAudioDetail(ctx, audioID)
}

// Delete removes the asset and the store entry. It reports false, with no
// error, when audioID is unknown. The store is authoritative for library
// membership, so a failure to remove the file is only logged.
func (s *Service) Delete(ctx context.Context, audioID string) (bool, error) {
	rec, err := s.store.GetAudio(ctx, audioID)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.assets.Remove(ctx, rec.StoredName); err != nil {
		s.log.Warn("failed to remove audio file",
			zap.String("audio_id", audioID),
			zap.String("stored_name", rec.StoredName),
			zap.Error(err))
	}

	deleted, err := s.store.DeleteAudio(ctx, audioID)
	if err != nil {
		return false, fmt.Errorf("delete audio: %w: %w", types.ErrStorage, err)
	}
	if deleted {
		s.log.Info("audio deleted", zap.String("audio_id", audioID))
	}
	return deleted, nil
}

// OpenAudio opens a stored audio file for reading
func (s *Service) OpenAudio(storedName string) (*os.File, int64, error) {
	return s.assets.Open(storedName)
}

func (s *Service) discard(ctx context.Context, log *zap.Logger, storedName string) {
	// The request context may already be done; removal must still run.
	if err := s.assets.Remove(context.WithoutCancel(ctx), storedName); err != nil {
		log.Warn("failed to remove orphaned upload", zap.String("stored_name", storedName), zap.Error(err))
		return
	}
	log.Info("removed orphaned upload", zap.String("stored_name", storedName))
}

// ValidateSegments checks that every segment has finite 0 <= start <= end
// and that starts never decrease
func ValidateSegments(segments []types.Segment) error {
	prev := 0.0
	for i, seg := range segments {
		switch {
		case math.IsNaN(seg.Start) || math.IsNaN(seg.End) || math.IsInf(seg.Start, 0) || math.IsInf(seg.End, 0):
			return fmt.Errorf("segment %d: non-finite time", i)
		case seg.Start < 0:
			return fmt.Errorf("segment %d: negative start %.3f", i, seg.Start)
		case seg.End < seg.Start:
			return fmt.Errorf("segment %d: end %.3f before start %.3f", i, seg.End, seg.Start)
		case seg.Start < prev:
			return fmt.Errorf("segment %d: start %.3f before previous start %.3f", i, seg.Start, prev)
		}
		prev = seg.Start
	}
	return nil
}
