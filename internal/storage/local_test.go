package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

func newTestAssets(t *testing.T) *AssetStore {
	t.Helper()
	as, err := NewAssetStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewAssetStore: %v", err)
	}
	return as
}

func TestAssetStore_SaveOpen(t *testing.T) {
	as := newTestAssets(t)
	ctx := context.Background()

	name, err := as.Save(ctx, "id1", "lesson1.mp3", strings.NewReader("audio bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if name != "id1_lesson1.mp3" {
		t.Errorf("stored name = %q", name)
	}

	f, size, err := as.Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "audio bytes" || size != int64(len(data)) {
		t.Errorf("read %q (size %d)", data, size)
	}
}

func TestAssetStore_Save_Duplicate(t *testing.T) {
	as := newTestAssets(t)
	ctx := context.Background()

	if _, err := as.Save(ctx, "id1", "a.mp3", strings.NewReader("one")); err != nil {
		t.Fatal(err)
	}
	_, err := as.Save(ctx, "id1", "a.mp3", strings.NewReader("two"))
	if !errors.Is(err, types.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	f, _, err := as.Open("id1_a.mp3")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "one" {
		t.Errorf("original overwritten: %q", data)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestAssetStore_Save_ReadFailureLeavesNothing(t *testing.T) {
	as := newTestAssets(t)

	if _, err := as.Save(context.Background(), "id1", "a.mp3", failingReader{}); err == nil {
		t.Fatal("expected error")
	}
	entries, err := os.ReadDir(as.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty upload dir, found %d entries", len(entries))
	}
}

func TestAssetStore_Open_NotFound(t *testing.T) {
	as := newTestAssets(t)
	_, _, err := as.Open("missing.mp3")
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAssetStore_Remove_Idempotent(t *testing.T) {
	as := newTestAssets(t)
	ctx := context.Background()

	name, err := as.Save(ctx, "id1", "a.mp3", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := as.Remove(ctx, name); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := as.Remove(ctx, name); err != nil {
		t.Errorf("second Remove: %v", err)
	}
	if _, _, err := as.Open(name); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestAssetStore_Path_RejectsEscapes(t *testing.T) {
	as := newTestAssets(t)
	for _, name := range []string{"", ".", "..", "../etc/passwd", "a/b.mp3", `a\b.mp3`, ".upload-123"} {
		if _, err := as.Path(name); !errors.Is(err, types.ErrInvalidName) {
			t.Errorf("Path(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestAssetStore_List(t *testing.T) {
	as := newTestAssets(t)
	ctx := context.Background()

	if _, err := as.Save(ctx, "id1", "a.mp3", strings.NewReader("abc")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(as.Dir(), ".upload-999"), []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	assets, err := as.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 || assets[0].StoredName != "id1_a.mp3" || assets[0].Size != 3 {
		t.Errorf("List = %+v", assets)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"lesson1.mp3", "lesson1.mp3"},
		{"dir/sub/lesson.mp3", "lesson.mp3"},
		{`C:\Users\me\talk.wav`, "talk.wav"},
		{"..", "audio"},
		{"", "audio"},
		{"日本語 の 音声.m4a", "日本語 の 音声.m4a"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in, maxNameBytes); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	id := "0b6f7c1e-9a4d-4c1b-8f3e-2d5a6b7c8d9e"
	for _, long := range []string{
		strings.Repeat("日", 90) + ".mp3",
		strings.Repeat("語", 300) + ".mp3",
		strings.Repeat("a", 400) + ".wav",
	} {
		got := StoredName(id, long)
		if len(got) > maxNameBytes {
			t.Errorf("stored name is %d bytes, limit %d", len(got), maxNameBytes)
		}
		if !utf8.ValidString(got) {
			t.Errorf("stored name split a rune: %q", got)
		}
		if filepath.Ext(got) != filepath.Ext(long) {
			t.Errorf("long name lost its extension: %q", got)
		}
	}
}

func TestAssetStore_SaveOpen_LongJapaneseName(t *testing.T) {
	as := newTestAssets(t)
	id := "0b6f7c1e-9a4d-4c1b-8f3e-2d5a6b7c8d9e"

	name, err := as.Save(context.Background(), id, strings.Repeat("日", 90)+".mp3", strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(name, id+"_日") || !strings.HasSuffix(name, ".mp3") {
		t.Errorf("stored name = %q", name)
	}

	f, size, err := as.Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if size != int64(len("audio")) {
		t.Errorf("size = %d", size)
	}
}
