package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// TranscriptStore persists audio records and their transcript segments in SQLite
type TranscriptStore struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS audio (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL UNIQUE,
	original_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS segments (
	audio_id TEXT NOT NULL REFERENCES audio(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	start REAL NOT NULL,
	"end" REAL NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (audio_id, position)
);
`

// NewTranscriptStore opens the database and creates the schema if needed
func NewTranscriptStore(dbPath string) (*TranscriptStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: writes are short and rare, and ":memory:" databases
	// are per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &TranscriptStore{db: db}, nil
}

// CreateAudio inserts a single audio record
func (s *TranscriptStore) CreateAudio(ctx context.Context, rec types.AudioRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertAudio(ctx, tx, rec)
	})
}

// AppendSegments inserts segments for an existing audio record, preserving their order
func (s *TranscriptStore) AppendSegments(ctx context.Context, audioID string, segments []types.Segment) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertSegments(ctx, tx, audioID, segments)
	})
}

// SaveTranscription inserts the record and all of its segments in one transaction
func (s *TranscriptStore) SaveTranscription(ctx context.Context, rec types.AudioRecord, segments []types.Segment) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertAudio(ctx, tx, rec); err != nil {
			return err
		}
		return insertSegments(ctx, tx, rec.ID, segments)
	})
}

// ListAudio returns all records in insertion order
func (s *TranscriptStore) ListAudio(ctx context.Context) ([]types.AudioSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, original_name FROM audio ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list audio: %w", err)
	}
	defer rows.Close()

	list := []types.AudioSummary{}
	for rows.Next() {
		var a types.AudioSummary
		if err := rows.Scan(&a.ID, &a.OriginalName); err != nil {
			return nil, fmt.Errorf("failed to scan audio row: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// GetAudio returns the record for audioID
func (s *TranscriptStore) GetAudio(ctx context.Context, audioID string) (*types.AudioRecord, error) {
	var rec types.AudioRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, original_name FROM audio WHERE id = ?`, audioID,
	).Scan(&rec.ID, &rec.StoredName, &rec.OriginalName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audio %s: %w", audioID, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audio: %w", err)
	}
	return &rec, nil
}

// GetAudioDetail returns the record and its segments in stored order
func (s *TranscriptStore) GetAudioDetail(ctx context.Context, audioID string) (*types.AudioDetail, error) {
	rec, err := s.GetAudio(ctx, audioID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT start, "end", text FROM segments WHERE audio_id = ? ORDER BY position`, audioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	segments := []types.Segment{}
	for rows.Next() {
		var seg types.Segment
		if err := rows.Scan(&seg.Start, &seg.End, &seg.Text); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read segments: %w", err)
	}

	return &types.AudioDetail{Record: *rec, Segments: segments}, nil
}

// DeleteAudio removes a record and its segments. It reports false when the
// record did not exist.
func (s *TranscriptStore) DeleteAudio(ctx context.Context, audioID string) (bool, error) {
	var deleted bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE audio_id = ?`, audioID); err != nil {
			return fmt.Errorf("failed to delete segments: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM audio WHERE id = ?`, audioID)
		if err != nil {
			return fmt.Errorf("failed to delete audio: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// StoredNames returns the set of stored file names referenced by any record
func (s *TranscriptStore) StoredNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename FROM audio`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = struct{}{}
	}
	return names, rows.Err()
}

// Close closes the database connection
func (s *TranscriptStore) Close() error {
	return s.db.Close()
}

func (s *TranscriptStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func insertAudio(ctx context.Context, tx *sql.Tx, rec types.AudioRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audio (id, filename, original_name) VALUES (?, ?, ?)`,
		rec.ID, rec.StoredName, rec.OriginalName)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("audio %s: %w", rec.ID, types.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert audio: %w", err)
	}
	return nil
}

func insertSegments(ctx context.Context, tx *sql.Tx, audioID string, segments []types.Segment) error {
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM audio WHERE id = ?`, audioID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up audio: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("audio %s: %w", audioID, types.ErrUnknownAudio)
	}

	// Appending to an audio that already has segments continues its order.
	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM segments WHERE audio_id = ?`, audioID,
	).Scan(&next); err != nil {
		return fmt.Errorf("failed to read segment position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO segments (audio_id, position, start, "end", text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for i, seg := range segments {
		if _, err := stmt.ExecContext(ctx, audioID, next+i, seg.Start, seg.End, seg.Text); err != nil {
			return fmt.Errorf("failed to insert segment %d: %w", i, err)
		}
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	// Primary and extended result codes share the low byte.
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
