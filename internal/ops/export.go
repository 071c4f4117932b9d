package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
)

// ExportSchemaVersion is written to the header line of every export.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path           string  // optional, default: ~/.palmscan/exports/<user>-<timestamp>.jsonl
	UserID         *string // optional filter by user
	IncludeDeleted bool

	// Compress selects .jsonl.zst for the default path. An explicit Path decides
	// compression by its own extension.
	Compress bool
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	Compressed bool   `json:"compressed"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader represents the header line in a JSONL export file.
type ExportHeader struct {
	PalmscanExport bool   `json:"_palmscan_export"`
	SchemaVersion  string `json:"schema_version"`
	ExportedAt     int64  `json:"exported_at"`
}

// ExportRecord is one fortune line of an export file. The header line decodes
// into the same type with PalmscanExport set.
type ExportRecord struct {
	PalmscanExport bool           `json:"_palmscan_export,omitempty"`
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Payload        map[string]any `json:"payload"`
	CreatedAt      int64          `json:"created_at"`
	DeletedAt      *int64         `json:"deleted_at,omitempty"`
}

func exportRecordFromRow(f *db.Fortune) ExportRecord {
	return ExportRecord{
		ID:        f.ID,
		UserID:    f.UserID,
		Payload:   f.Payload,
		CreatedAt: f.CreatedAt,
		DeletedAt: f.DeletedAt,
	}
}

// Export writes fortunes to a JSONL file, zstd-compressed for .jsonl.zst paths.
func Export(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	exportedAt := now.Unix()

	if input.UserID != nil {
		userID, err := cleanUserID(*input.UserID)
		if err != nil {
			return nil, err
		}
		input.UserID = &userID
	}

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(input.UserID, input.Compress, now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are validated too: they embed the user id.
	if err := ValidatePath(exportPath, PathCheckWrite, env.Config); err != nil {
		return nil, err
	}
	compressed := isZstdPath(exportPath)

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write to a temp file, then rename so an existing export survives failures.
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	buf := bufio.NewWriter(file)
	var out io.Writer = buf
	var encoder *zstd.Encoder
	if compressed {
		encoder, err = zstd.NewWriter(buf)
		if err != nil {
			return nil, errors.NewInternal(fmt.Errorf("create zstd encoder: %w", err))
		}
		defer encoder.Close()
		out = encoder
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	header := ExportHeader{
		PalmscanExport: true,
		SchemaVersion:  ExportSchemaVersion,
		ExportedAt:     exportedAt,
	}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err := db.StreamForExport(ctx, env.DB, input.UserID, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled(err)
		}

		f, err := db.ScanFortuneRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := enc.Encode(exportRecordFromRow(f)); err != nil {
			return nil, errors.NewInternal(err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("finalize compression: %w", err))
		}
	}
	if err := buf.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows os.Rename fails if the destination exists; keep the existing file
	// rather than delete-then-rename.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	env.Log.Info().Str("path", exportPath).Int("count", count).Bool("compressed", compressed).Msg("export written")
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		Compressed: compressed,
		ExportedAt: exportedAt,
	}, nil
}

// defaultExportPath generates the default export path.
// Format: ~/.palmscan/exports/<user>-<timestamp>.jsonl or all-<timestamp>.jsonl
func defaultExportPath(userID *string, compress bool, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}

	name := "all"
	if userID != nil && *userID != "" {
		name = SanitizeForFilename(*userID)
	}
	ext := ExtJSONL
	if compress {
		ext = ExtJSONLZstd
	}
	return filepath.Join(dir, name+"-"+now.Format("2006-01-02T150405")+ext), nil
}

