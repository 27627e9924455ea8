package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// AssetStore keeps uploaded audio files in a local directory
type AssetStore struct {
	dir string
}

// NewAssetStore creates the upload directory if needed
func NewAssetStore(dir string) (*AssetStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &AssetStore{dir: abs}, nil
}

// Dir returns the absolute upload directory
func (as *AssetStore) Dir() string {
	return as.dir
}

// StoredName derives the on-disk name for an upload: {id}_{base name}
func StoredName(id, suggestedName string) string {
	return id + "_" + sanitizeFilename(suggestedName, maxNameBytes-len(id)-1)
}

// Save writes r under a name derived from id and suggestedName and returns
// that name. The file only appears under its final name once fully written.
func (as *AssetStore) Save(ctx context.Context, id, suggestedName string, r io.Reader) (string, error) {
	storedName := StoredName(id, suggestedName)
	finalPath, err := as.Path(storedName)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(as.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if copyErr != nil {
			return "", fmt.Errorf("failed to write upload: %w", copyErr)
		}
		return "", fmt.Errorf("failed to close upload: %w", closeErr)
	}

	if _, err := os.Stat(finalPath); err == nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("asset %s: %w", storedName, types.ErrDuplicateKey)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	return storedName, nil
}

// Open returns the stored file and its size
func (as *AssetStore) Open(storedName string) (*os.File, int64, error) {
	path, err := as.Path(storedName)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("asset %s: %w", storedName, types.ErrNotFound)
		}
		return nil, 0, fmt.Errorf("failed to open asset: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat asset: %w", err)
	}
	return f, info.Size(), nil
}

// Path resolves a stored name to an absolute path inside the upload directory
func (as *AssetStore) Path(storedName string) (string, error) {
	if storedName == "" || storedName == "." || storedName == ".." ||
		strings.ContainsAny(storedName, `/\`) || strings.HasPrefix(storedName, ".upload-") {
		return "", fmt.Errorf("%q: %w", storedName, types.ErrInvalidName)
	}
	return filepath.Join(as.dir, storedName), nil
}

// Remove deletes a stored file. A missing file is not an error.
func (as *AssetStore) Remove(_ context.Context, storedName string) error {
	path, err := as.Path(storedName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove asset %s: %w", storedName, err)
	}
	return nil
}

// List returns every stored asset, skipping in-progress uploads
func (as *AssetStore) List() ([]types.AssetInfo, error) {
	entries, err := os.ReadDir(as.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	var assets []types.AssetInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".upload-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		assets = append(assets, types.AssetInfo{
			StoredName: e.Name(),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
		})
	}
	return assets, nil
}

// maxNameBytes is the file name limit of common filesystems
const maxNameBytes = 255

// sanitizeFilename reduces a client-supplied name to a bare file name of at
// most maxBytes bytes, keeping the extension and whole runes
func sanitizeFilename(name string, maxBytes int) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		name = "audio"
	}
	if len(name) > maxBytes {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = truncateBytes(strings.TrimSuffix(name, ext), maxBytes-len(ext)) + ext
	}
	return name
}

// truncateBytes cuts s to at most n bytes without splitting a rune
func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ctxReader stops a copy once the context is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
