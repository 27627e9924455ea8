// Package subtitles renders transcript segments as subtitle files.
package subtitles

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/asticode/go-astisub"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// Supported formats
const (
	FormatSRT = "srt"
	FormatVTT = "vtt"
)

// ContentTypes maps each format to the content type it is served with
var ContentTypes = map[string]string{
	FormatSRT: "application/x-subrip",
	FormatVTT: "text/vtt",
}

// Build converts segments into subtitle items, one item per segment
func Build(segments []types.Segment) *astisub.Subtitles {
	subs := astisub.NewSubtitles()
	for _, seg := range segments {
		item := &astisub.Item{
			StartAt: seconds(seg.Start),
			EndAt:   seconds(seg.End),
		}
		for _, line := range strings.Split(strings.TrimSpace(seg.Text), "\n") {
			item.Lines = append(item.Lines, astisub.Line{Items: []astisub.LineItem{{Text: strings.TrimSpace(line)}}})
		}
		subs.Items = append(subs.Items, item)
	}
	return subs
}

// Render writes segments in the requested format
func Render(segments []types.Segment, format string) ([]byte, error) {
	subs := Build(segments)
	buf := &bytes.Buffer{}

	var err error
	switch format {
	case FormatSRT:
		err = subs.WriteToSRT(buf)
	case FormatVTT:
		err = subs.WriteToWebVTT(buf)
	default:
		return nil, fmt.Errorf("unsupported subtitle format %q", format)
	}
	if err != nil {
		// astisub refuses to write an empty subtitle list
		if len(segments) == 0 {
			return emptyDocument(format), nil
		}
		return nil, fmt.Errorf("failed to write %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// FileName returns the download name for a stored audio name
func FileName(storedName, format string) string {
	base := storedName
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base + "." + format
}

func emptyDocument(format string) []byte {
	if format == FormatVTT {
		return []byte("WEBVTT\n")
	}
	return []byte{}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
