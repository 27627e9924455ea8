package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// ErrClosed is returned by Transcribe after Close
var ErrClosed = errors.New("transcriber closed")

var validModels = map[string]bool{
	"tiny": true, "tiny.en": true,
	"base": true, "base.en": true,
	"small": true, "small.en": true,
	"medium": true, "medium.en": true,
	"large": true, "large-v1": true, "large-v2": true, "large-v3": true,
	"turbo": true,
}

// WhisperConfig holds the settings for the Whisper command line wrapper
type WhisperConfig struct {
	Python    string // interpreter that has the whisper package installed
	Model     string
	Device    string
	Threads   int
	TempDir   string
	Normalize bool   // run ffmpeg to 16kHz mono WAV first
	FFmpeg    string // ffmpeg binary used when Normalize is set
	Timeout   time.Duration
}

// WhisperTranscriber wraps Python's OpenAI Whisper for transcription
type WhisperTranscriber struct {
	cfg    WhisperConfig
	log    *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewWhisperTranscriber validates the configuration and checks that the
// interpreter can be found
func NewWhisperTranscriber(cfg WhisperConfig, log *zap.Logger) (*WhisperTranscriber, error) {
	if cfg.Python == "" {
		cfg.Python = "python"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.Device == "" {
		cfg.Device = "cpu"
	}
	if !validModels[cfg.Model] {
		return nil, fmt.Errorf("unknown whisper model %q", cfg.Model)
	}
	if _, err := exec.LookPath(cfg.Python); err != nil {
		return nil, fmt.Errorf("whisper interpreter %q not found: %w", cfg.Python, err)
	}
	if cfg.Normalize {
		if _, err := exec.LookPath(cfg.FFmpeg); err != nil {
			return nil, fmt.Errorf("ffmpeg %q not found: %w", cfg.FFmpeg, err)
		}
	}
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	log.Info("whisper transcriber ready",
		zap.String("model", cfg.Model),
		zap.String("device", cfg.Device),
		zap.Bool("normalize", cfg.Normalize))

	return &WhisperTranscriber{cfg: cfg, log: log}, nil
}

// Transcribe runs whisper on audioPath and returns its segments in output order
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, audioPath, language string) ([]types.Segment, error) {
	wt.mu.RLock()
	defer wt.mu.RUnlock()
	if wt.closed {
		return nil, ErrClosed
	}

	if wt.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wt.cfg.Timeout)
		defer cancel()
	}

	outDir, err := os.MkdirTemp(wt.cfg.TempDir, "whisper-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	input, err := filepath.Abs(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if wt.cfg.Normalize {
		input, err = NormalizeAudio(ctx, wt.cfg.FFmpeg, input, outDir)
		if err != nil {
			return nil, err
		}
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, wt.cfg.Python, wt.args(input, outDir, language)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w\nOutput: %s", err, string(output))
	}

	baseName := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	jsonData, err := os.ReadFile(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	segments, err := ParseWhisperOutput(jsonData)
	if err != nil {
		return nil, err
	}

	wt.log.Info("transcription completed",
		zap.String("file", filepath.Base(audioPath)),
		zap.Int("segments", len(segments)),
		zap.Duration("took", time.Since(start)))
	return segments, nil
}

func (wt *WhisperTranscriber) args(input, outDir, language string) []string {
	args := []string{"-m", "whisper",
		input,
		"--model", wt.cfg.Model,
		"--device", wt.cfg.Device,
		"--output_dir", outDir,
		"--output_format", "json",
		"--verbose", "False",
	}
	if language != "" {
		args = append(args, "--language", language)
	}
	if wt.cfg.Device == "cpu" {
		args = append(args, "--fp16", "False")
	}
	if wt.cfg.Threads > 0 {
		args = append(args, "--threads", fmt.Sprintf("%d", wt.cfg.Threads))
	}
	return args
}

// Close waits for running transcriptions and rejects new ones
func (wt *WhisperTranscriber) Close() error {
	wt.mu.Lock()
	defer wt.mu.Unlock()
	wt.closed = true
	return nil
}

// WhisperOutput matches Python Whisper's JSON output format
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from Whisper
type WhisperSegment struct {
	ID    int      `json:"id"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Text  string   `json:"text"`
}

// ParseWhisperOutput converts Whisper's JSON into segments. Text is kept verbatim.
func ParseWhisperOutput(data []byte) ([]types.Segment, error) {
	var out WhisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	segments := make([]types.Segment, 0, len(out.Segments))
	for i, seg := range out.Segments {
		if seg.Start == nil || seg.End == nil {
			return nil, fmt.Errorf("whisper segment %d has no timing", i)
		}
		segments = append(segments, types.Segment{
			Start: *seg.Start,
			End:   *seg.End,
			Text:  seg.Text,
		})
	}
	return segments, nil
}
