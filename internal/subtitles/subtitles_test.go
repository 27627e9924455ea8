package subtitles

import (
	"strings"
	"testing"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

var segs = []types.Segment{
	{Start: 0.0, End: 2.5, Text: " こんにちは"},
	{Start: 2.5, End: 65.25, Text: "元気ですか"},
}

func TestRender_SRT(t *testing.T) {
	out, err := Render(segs, FormatSRT)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := string(out)
	for _, want := range []string{
		"00:00:00,000 --> 00:00:02,500",
		"こんにちは",
		"00:00:02,500 --> 00:01:05,250",
		"元気ですか",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("SRT missing %q:\n%s", want, s)
		}
	}
	if strings.Index(s, "こんにちは") > strings.Index(s, "元気ですか") {
		t.Error("segments out of order")
	}
}

func TestRender_VTT(t *testing.T) {
	out, err := Render(segs, FormatVTT)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := string(out)
	if !strings.HasPrefix(s, "WEBVTT") {
		t.Errorf("missing header:\n%s", s)
	}
	if !strings.Contains(s, "00:00:02.500 --> 00:01:05.250") {
		t.Errorf("missing cue timing:\n%s", s)
	}
}

func TestRender_Empty(t *testing.T) {
	out, err := Render(nil, FormatSRT)
	if err != nil || len(out) != 0 {
		t.Errorf("SRT = %q, %v", out, err)
	}
	out, err = Render(nil, FormatVTT)
	if err != nil || string(out) != "WEBVTT\n" {
		t.Errorf("VTT = %q, %v", out, err)
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	if _, err := Render(segs, "ass"); err == nil {
		t.Error("expected error")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("id1_lesson1.mp3", FormatSRT); got != "id1_lesson1.srt" {
		t.Errorf("FileName = %q", got)
	}
	if got := FileName("noext", FormatVTT); got != "noext.vtt" {
		t.Errorf("FileName = %q", got)
	}
}
