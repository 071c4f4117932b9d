package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/fortune"
)

// maxImportLine bounds a single JSONL line.
const maxImportLine = 16 << 20

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision (atomic)
	ImportModeReplace ImportMode = "replace" // overwrite on collision
	ImportModeSkip    ImportMode = "skip"    // keep the existing fortune
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	ID      string `json:"id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line int
	ExportRecord
}

// Import reads fortunes from a JSONL export, zstd-compressed for .jsonl.zst paths.
func Import(ctx context.Context, env *Env, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace && input.Mode != ImportModeSkip {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, skip")
	}

	if err := ValidatePath(input.Path, PathCheckRead, env.Config); err != nil {
		return nil, err
	}

	file, err := openExportFile(input.Path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	var src io.Reader = file
	if isZstdPath(input.Path) {
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("create zstd decoder: %v", err))
		}
		defer decoder.Close()
		src = decoder
	}

	records, parseErrors := parseExportFile(src)

	// mode:error is all-or-nothing, parse errors included.
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	var out *ImportOutput
	switch input.Mode {
	case ImportModeError:
		out, err = importAtomic(ctx, env, records)
	default:
		out, err = importEach(ctx, env, records, input.Mode, parseErrors)
	}
	if err != nil {
		return nil, err
	}

	env.Log.Info().Str("path", input.Path).Str("mode", string(input.Mode)).
		Int("imported", out.Imported).Int("skipped", out.Skipped).Msg("import finished")
	return out, nil
}

// parseExportFile decodes JSONL records, skipping the header line.
func parseExportFile(r io.Reader) ([]importRecord, []ImportError) {
	var records []importRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var record ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if record.PalmscanExport {
			continue
		}

		record.ID = strings.TrimSpace(record.ID)
		record.UserID = strings.TrimSpace(record.UserID)
		switch {
		case record.ID == "":
			parseErrors = append(parseErrors, invalidRecord(lineNum, record, "missing id field"))
			continue
		case record.UserID == "":
			parseErrors = append(parseErrors, invalidRecord(lineNum, record, "missing user_id field"))
			continue
		case fortune.ResolveAnswer(record.Payload) == "":
			parseErrors = append(parseErrors, invalidRecord(lineNum, record, "payload has no answer"))
			continue
		}

		records = append(records, importRecord{line: lineNum, ExportRecord: record})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum + 1,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

func invalidRecord(line int, r ExportRecord, msg string) ImportError {
	return ImportError{Line: line, ID: r.ID, UserID: r.UserID, Code: "INVALID_RECORD", Message: msg}
}

// rowFromRecord keeps the exported created_at; the payload is re-derived so the
// search columns match the answer fallback chain.
func rowFromRecord(r ExportRecord) *db.Fortune {
	row := buildRow(r.UserID, r.ID, r.Payload, timeOrNow(r.CreatedAt))
	if r.CreatedAt > 0 {
		row.CreatedAt = r.CreatedAt
	}
	row.DeletedAt = r.DeletedAt
	return row
}

func timeOrNow(unix int64) time.Time {
	if unix > 0 {
		return time.Unix(unix, 0)
	}
	return time.Now()
}

// importAtomic imports all records in one transaction, rolling back on any collision.
func importAtomic(ctx context.Context, env *Env, records []importRecord) (*ImportOutput, error) {
	tx, err := env.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	imported := 0
	for _, r := range records {
		exists, err := db.FortuneExists(ctx, tx, r.UserID, r.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return &ImportOutput{
				Errors: []ImportError{{
					Line:    r.line,
					ID:      r.ID,
					UserID:  r.UserID,
					Code:    "ID_COLLISION",
					Message: fmt.Sprintf("fortune %q of user %q already exists", r.ID, r.UserID),
				}},
			}, nil
		}

		if err := db.InsertFortune(ctx, tx, rowFromRecord(r.ExportRecord)); err != nil {
			// A duplicate inside the file itself.
			if errors.Is(err, errors.ErrAlreadyExists) {
				return &ImportOutput{
					Errors: []ImportError{{
						Line:    r.line,
						ID:      r.ID,
						UserID:  r.UserID,
						Code:    "ID_COLLISION",
						Message: fmt.Sprintf("fortune %q of user %q appears twice", r.ID, r.UserID),
					}},
				}, nil
			}
			return nil, err
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ImportOutput{Imported: imported, Errors: []ImportError{}}, nil
}

// importEach imports records one by one, replacing or skipping collisions.
func importEach(ctx context.Context, env *Env, records []importRecord, mode ImportMode, parseErrors []ImportError) (*ImportOutput, error) {
	out := &ImportOutput{Errors: append([]ImportError{}, parseErrors...)}
	out.Skipped = len(parseErrors)

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled(err)
		}
		row := rowFromRecord(r.ExportRecord)

		if mode == ImportModeReplace {
			if err := db.UpsertFortune(ctx, env.DB, row); err != nil {
				return nil, err
			}
			out.Imported++
			continue
		}

		err := db.InsertFortune(ctx, env.DB, row)
		switch {
		case err == nil:
			out.Imported++
		case errors.Is(err, errors.ErrAlreadyExists):
			out.Skipped++
		default:
			return nil, err
		}
	}

	return out, nil
}
