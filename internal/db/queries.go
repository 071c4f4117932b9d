package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/palmscan/palmscan/internal/errors"
)

// MaxSearchQueryChars bounds the search term length.
const MaxSearchQueryChars = 200

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Fortune is one stored fortune row. Payload holds the full document in the
// store's own shape, legacy fields included; the other columns are copies used
// for ordering and search.
type Fortune struct {
	ID        string
	UserID    string
	Payload   map[string]any
	Answer    string
	Language  string
	Style     string
	Period    string
	Model     string
	CreatedAt int64
	DeletedAt *int64
}

// Scan is a saved analyze result.
type Scan struct {
	ID        string
	UserID    string
	Analyze   json.RawMessage
	Meta      json.RawMessage
	CreatedAt int64
}

const fortuneColumns = `id, user_id, payload_json, answer, language, style, period, model, created_at, deleted_at`

// InsertFortune stores a new fortune. An existing (user_id, id) pair yields ALREADY_EXISTS,
// whether or not the existing row is soft-deleted.
func InsertFortune(ctx context.Context, q Querier, f *Fortune) error {
	payload, err := json.Marshal(f.Payload)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO fortunes (` + fortuneColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		f.ID, f.UserID, string(payload), f.Answer,
		toNullString(f.Language), toNullString(f.Style), toNullString(f.Period), toNullString(f.Model),
		f.CreatedAt, toNullInt64(f.DeletedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewAlreadyExists(f.UserID, f.ID)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// UpsertFortune inserts f or overwrites the row with the same (user_id, id).
// Overwriting also restores a soft-deleted row unless f itself is deleted.
func UpsertFortune(ctx context.Context, q Querier, f *Fortune) error {
	payload, err := json.Marshal(f.Payload)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO fortunes (` + fortuneColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			payload_json = excluded.payload_json,
			answer       = excluded.answer,
			language     = excluded.language,
			style        = excluded.style,
			period       = excluded.period,
			model        = excluded.model,
			created_at   = excluded.created_at,
			deleted_at   = excluded.deleted_at
	`
	_, err = q.ExecContext(ctx, query,
		f.ID, f.UserID, string(payload), f.Answer,
		toNullString(f.Language), toNullString(f.Style), toNullString(f.Period), toNullString(f.Model),
		f.CreatedAt, toNullInt64(f.DeletedAt),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports both "UNIQUE constraint failed" and
	// "PRIMARY KEY constraint failed" depending on the table definition.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// GetFortune retrieves one fortune of a user.
// If includeDeleted is false, soft-deleted fortunes are excluded.
func GetFortune(ctx context.Context, q Querier, userID, id string, includeDeleted bool) (*Fortune, error) {
	query := `SELECT ` + fortuneColumns + ` FROM fortunes WHERE user_id = ? AND id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	f, err := scanFortune(q.QueryRowContext(ctx, query, userID, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(userID, id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return f, nil
}

// FortuneExists reports whether a row exists for (userID, id), deleted or not.
func FortuneExists(ctx context.Context, q Querier, userID, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM fortunes WHERE user_id = ? AND id = ? LIMIT 1`, userID, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// ListFortunes returns a page of a user's fortunes, newest first, and the total count.
func ListFortunes(ctx context.Context, q Querier, userID string, limit, offset int, includeDeleted bool) ([]Fortune, int, error) {
	where := "user_id = ?"
	if !includeDeleted {
		where += " AND deleted_at IS NULL"
	}
	return listWhere(ctx, q, where, []any{userID}, limit, offset)
}

// SearchFortunes returns a page of a user's active fortunes whose answer contains
// term, case-insensitively, newest first.
func SearchFortunes(ctx context.Context, q Querier, userID, term string, limit, offset int) ([]Fortune, int, error) {
	// instr avoids LIKE wildcard escaping; lower() folds ASCII only, which is
	// enough since Thai script has no case.
	where := "user_id = ? AND deleted_at IS NULL AND instr(lower(answer), lower(?)) > 0"
	return listWhere(ctx, q, where, []any{userID, term}, limit, offset)
}

func listWhere(ctx context.Context, q Querier, where string, args []any, limit, offset int) ([]Fortune, int, error) {
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM fortunes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + fortuneColumns + ` FROM fortunes WHERE ` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := q.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []Fortune
	for rows.Next() {
		f, err := ScanFortuneRows(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// LatestFortune returns the newest active fortune of a user, or nil if there is none.
func LatestFortune(ctx context.Context, q Querier, userID string) (*Fortune, error) {
	query := `SELECT ` + fortuneColumns + ` FROM fortunes
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC LIMIT 1`

	f, err := scanFortune(q.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return f, nil
}

// SoftDeleteFortune marks a fortune as deleted by setting deleted_at.
func SoftDeleteFortune(ctx context.Context, q Querier, userID, id string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE fortunes SET deleted_at = ? WHERE user_id = ? AND id = ? AND deleted_at IS NULL`,
		time.Now().Unix(), userID, id,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(userID, id)
	}
	return nil
}

// PurgeDeleted permanently removes soft-deleted fortunes, optionally limited to
// one user and to rows deleted more than olderThanDays ago.
func PurgeDeleted(ctx context.Context, q Querier, userID *string, olderThanDays *int) (int, error) {
	query := `DELETE FROM fortunes WHERE deleted_at IS NOT NULL`
	var args []any
	if userID != nil {
		query += " AND user_id = ?"
		args = append(args, *userID)
	}
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		query += " AND deleted_at < ?"
		args = append(args, cutoff)
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// StreamForExport returns rows for all fortunes, or one user's, oldest first.
// The caller must close the rows and decode them with ScanFortuneRows.
func StreamForExport(ctx context.Context, q Querier, userID *string, includeDeleted bool) (*sql.Rows, error) {
	query := `SELECT ` + fortuneColumns + ` FROM fortunes WHERE 1=1`
	var args []any
	if userID != nil {
		query += " AND user_id = ?"
		args = append(args, *userID)
	}
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY user_id, created_at, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// InsertScan stores a saved analyze result.
func InsertScan(ctx context.Context, q Querier, s *Scan) error {
	var meta sql.NullString
	if len(s.Meta) > 0 {
		meta = sql.NullString{String: string(s.Meta), Valid: true}
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO scans (id, user_id, analyze_json, meta_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.UserID, string(s.Analyze), meta, s.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewInvalidRequest("scan already saved: " + s.ID)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetScan retrieves a scan of a user by id.
func GetScan(ctx context.Context, q Querier, userID, id string) (*Scan, error) {
	var (
		s    Scan
		an   string
		meta sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, analyze_json, meta_json, created_at FROM scans WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&s.ID, &s.UserID, &an, &meta, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewScanNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	s.Analyze = json.RawMessage(an)
	if meta.Valid {
		s.Meta = json.RawMessage(meta.String)
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanFortune scans a single row into a Fortune.
func scanFortune(row *sql.Row) (*Fortune, error) {
	return scanFortuneFrom(row)
}

// ScanFortuneRows scans the current row of rows into a Fortune.
func ScanFortuneRows(rows *sql.Rows) (*Fortune, error) {
	return scanFortuneFrom(rows)
}

func scanFortuneFrom(row rowScanner) (*Fortune, error) {
	var (
		f         Fortune
		payload   string
		language  sql.NullString
		style     sql.NullString
		period    sql.NullString
		model     sql.NullString
		deletedAt sql.NullInt64
	)

	err := row.Scan(
		&f.ID, &f.UserID, &payload, &f.Answer,
		&language, &style, &period, &model,
		&f.CreatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Language = language.String
	f.Style = style.String
	f.Period = period.String
	f.Model = model.String
	if deletedAt.Valid {
		f.DeletedAt = &deletedAt.Int64
	}

	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &f.Payload); err != nil {
			return nil, err
		}
	}
	if f.Payload == nil {
		f.Payload = map[string]any{}
	}

	return &f, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
