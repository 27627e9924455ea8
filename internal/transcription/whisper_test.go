package transcription

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestParseWhisperOutput(t *testing.T) {
	data := []byte(`{
		"text": "こんにちは 元気ですか",
		"language": "ja",
		"segments": [
			{"id": 0, "start": 0.0, "end": 2.5, "text": " こんにちは"},
			{"id": 1, "start": 2.5, "end": 5.0, "text": " 元気ですか"}
		]
	}`)

	segs, err := ParseWhisperOutput(data)
	if err != nil {
		t.Fatalf("ParseWhisperOutput: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments", len(segs))
	}
	if segs[0].Start != 0 || segs[0].End != 2.5 || segs[0].Text != " こんにちは" {
		t.Errorf("segment 0 = %+v", segs[0])
	}
	if segs[1].Start != 2.5 || segs[1].End != 5.0 {
		t.Errorf("segment 1 = %+v", segs[1])
	}
}

func TestParseWhisperOutput_Empty(t *testing.T) {
	segs, err := ParseWhisperOutput([]byte(`{"text": "", "segments": []}`))
	if err != nil {
		t.Fatal(err)
	}
	if segs == nil || len(segs) != 0 {
		t.Errorf("expected empty slice, got %#v", segs)
	}
}

func TestParseWhisperOutput_Malformed(t *testing.T) {
	for name, data := range map[string]string{
		"not json":      `segments: []`,
		"missing start": `{"segments": [{"end": 1.0, "text": "x"}]}`,
		"missing end":   `{"segments": [{"start": 1.0, "text": "x"}]}`,
	} {
		if _, err := ParseWhisperOutput([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestValidateAudioFormat(t *testing.T) {
	for _, name := range []string{"a.mp3", "b.WAV", "c.m4a", "d.webm", "e.flac", "f.ogg"} {
		if !ValidateAudioFormat(name) {
			t.Errorf("%s rejected", name)
		}
	}
	for _, name := range []string{"a.txt", "b", "c.mp3.exe", "archive.zip"} {
		if ValidateAudioFormat(name) {
			t.Errorf("%s accepted", name)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"id_lesson1.mp3": "audio/mpeg",
		"x.WAV":          "audio/wav",
		"x.m4a":          "audio/mp4",
		"x.bin":          "application/octet-stream",
	}
	for name, want := range tests {
		if got := ContentType(name); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestWhisperTranscriber_Args(t *testing.T) {
	wt := &WhisperTranscriber{cfg: WhisperConfig{Model: "base", Device: "cpu", Threads: 2}, log: zap.NewNop()}

	args := strings.Join(wt.args("in.wav", "/tmp/out", "ja"), " ")
	for _, want := range []string{"-m whisper in.wav", "--model base", "--output_format json", "--language ja", "--fp16 False", "--threads 2"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}

	args = strings.Join(wt.args("in.wav", "/tmp/out", ""), " ")
	if strings.Contains(args, "--language") {
		t.Errorf("empty language should auto-detect: %q", args)
	}
}
