package types

import (
	"errors"
	"time"
)

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Source type constants
const (
	SourceUpload = "upload"
	SourceGDrive = "gdrive"
	SourceStream = "stream"
)

var (
	// ErrNotFound is returned when an audio record or asset does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when an audio id or stored name is already taken.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrUnknownAudio is returned when segments reference a missing audio record.
	ErrUnknownAudio = errors.New("unknown audio")
	// ErrTranscription wraps failures and malformed output from the transcriber.
	ErrTranscription = errors.New("transcription failed")
	// ErrStorage wraps disk and database write failures.
	ErrStorage = errors.New("storage failure")
	// ErrInvalidName is returned for stored names that would escape the upload directory.
	ErrInvalidName = errors.New("invalid stored name")
)

// AudioRecord is the catalog entry for one uploaded audio file
type AudioRecord struct {
	ID           string `json:"id"`
	StoredName   string `json:"stored_name"`
	OriginalName string `json:"original_name"`
}

// AudioSummary is one row of the library listing
type AudioSummary struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
}

// AudioDetail is a record together with its ordered segments
type AudioDetail struct {
	Record   AudioRecord
	Segments []Segment
}

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// AssetInfo describes a file held by the asset store
type AssetInfo struct {
	StoredName string
	Size       int64
	ModTime    time.Time
}
