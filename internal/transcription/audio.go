package transcription

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// supportedFormats maps accepted upload extensions to the content type they are served with
var supportedFormats = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
	".aac":  "audio/aac",
	".wma":  "audio/x-ms-wma",
	".mp4":  "audio/mp4",
}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	_, ok := supportedFormats[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ContentType returns the content type for a stored audio file name
func ContentType(filename string) string {
	if ct, ok := supportedFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// NormalizeAudio converts any audio file to 16kHz mono WAV inside tempDir
func NormalizeAudio(ctx context.Context, ffmpeg, inputPath, tempDir string) (string, error) {
	outputPath := filepath.Join(tempDir, fmt.Sprintf("normalized_%s.wav", uuid.New().String()))

	cmd := exec.CommandContext(ctx, ffmpeg,
		"-i", inputPath,
		"-ar", "16000", // 16kHz sample rate
		"-ac", "1", // Mono
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}

	return outputPath, nil
}
