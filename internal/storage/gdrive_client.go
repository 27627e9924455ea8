package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/codebuildervaibhav/audio-library/internal/subtitles"
	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// ErrNoToken is returned when no cached OAuth token is available. The
// server never runs the interactive consent flow.
var ErrNoToken = errors.New("no cached Google Drive token")

const folderMimeType = "application/vnd.google-apps.folder"

// DriveClient mirrors finished transcripts to Google Drive
type DriveClient struct {
	service    *drive.Service
	folderName string
	folderID   string
	model      string
	language   string

	mu      sync.Mutex
	folders map[string]string
}

// NewDriveClient creates a new Google Drive client from an OAuth client
// credentials file and a previously cached token
func NewDriveClient(ctx context.Context, credentialsFile, tokenFile, folderName, model, language string) (*DriveClient, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoToken, err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	dc := &DriveClient{
		service:    srv,
		folderName: folderName,
		model:      model,
		language:   language,
		folders:    make(map[string]string),
	}

	if err := dc.ensureFolder(ctx); err != nil {
		return nil, err
	}

	return dc, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// ensureFolder finds or creates the root folder
func (dc *DriveClient) ensureFolder(ctx context.Context) error {
	id, err := dc.findOrCreateFolder(ctx, dc.folderName, "")
	if err != nil {
		return fmt.Errorf("unable to prepare folder %q: %w", dc.folderName, err)
	}
	dc.folderID = id
	return nil
}

// Upload stores the subtitles and a metadata document for one transcription
// and returns a link to the metadata file
func (dc *DriveClient) Upload(ctx context.Context, rec types.AudioRecord, segments []types.Segment) (string, error) {
	now := time.Now()
	folderID, err := dc.ensureDateFolder(ctx, now)
	if err != nil {
		return "", err
	}

	srt, err := subtitles.Render(segments, subtitles.FormatSRT)
	if err != nil {
		return "", err
	}
	srtFile := &drive.File{
		Name:    subtitles.FileName(rec.StoredName, subtitles.FormatSRT),
		Parents: []string{folderID},
	}
	if _, err := dc.service.Files.Create(srtFile).Media(bytes.NewReader(srt)).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to upload subtitles: %w", err)
	}

	metaJSON, err := json.MarshalIndent(transcriptMeta(rec, segments, dc.model, dc.language, now), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metaFile := &drive.File{
		Name:    strings.TrimSuffix(rec.StoredName, filepath.Ext(rec.StoredName)) + "_meta.json",
		Parents: []string{folderID},
	}
	created, err := dc.service.Files.Create(metaFile).Media(bytes.NewReader(metaJSON)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload metadata: %w", err)
	}

	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", created.Id), nil
}

func transcriptMeta(rec types.AudioRecord, segments []types.Segment, model, language string, at time.Time) map[string]interface{} {
	var duration float64
	if len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}
	return map[string]interface{}{
		"audio_id":         rec.ID,
		"original_name":    rec.OriginalName,
		"stored_name":      rec.StoredName,
		"duration_seconds": duration,
		"model_used":       "whisper-" + model,
		"language":         language,
		"created_at":       at,
		"segments":         segments,
	}
}

// ensureDateFolder creates nested year/month/day folders
func (dc *DriveClient) ensureDateFolder(ctx context.Context, t time.Time) (string, error) {
	parent := dc.folderID
	for _, name := range []string{
		fmt.Sprintf("%d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
	} {
		id, err := dc.findOrCreateFolder(ctx, name, parent)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

// findOrCreateFolder finds or creates a folder with the given parent. An
// empty parent searches the whole drive.
func (dc *DriveClient) findOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	key := parentID + "/" + name
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if id, ok := dc.folders[key]; ok {
		return id, nil
	}

	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(r.Files) > 0 {
		dc.folders[key] = r.Files[0].Id
		return r.Files[0].Id, nil
	}

	folder := &drive.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	file, err := dc.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}

	dc.folders[key] = file.Id
	return file.Id, nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
