package ops

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/fortune"
	"github.com/palmscan/palmscan/internal/remote"
)

// PeriodToday is the default prediction period.
const PeriodToday = "today"

// PredictOptions selects how a fortune is generated. Empty fields take the
// configured defaults.
type PredictOptions struct {
	Language string
	Style    string
	Model    string
	Period   string
}

// ScanInput contains parameters for the Scan operation.
type ScanInput struct {
	UserID   string    // required
	Image    io.Reader // required
	Filename string    // default: hand.jpg

	// Params override the analyze tuning parameters.
	Params map[string]string
	// Meta describes the capture, e.g. {device, facing, flash, torch}.
	Meta map[string]any

	PredictOptions
}

// ScanOutput contains the result of the Scan operation.
type ScanOutput struct {
	ScanID  string `json:"scan_id"`
	Fortune Record `json:"fortune"`
}

// Scan runs the full capture flow: analyze the image, save the scan, request a
// prediction and store the returned fortune locally.
func Scan(ctx context.Context, env *Env, input ScanInput) (*ScanOutput, error) {
	userID, err := cleanUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	if input.Image == nil {
		return nil, errors.NewInvalidRequest("image is required")
	}
	svc, err := env.service()
	if err != nil {
		return nil, err
	}
	log := env.Log.With().Str("user_id", userID).Logger()

	analyzed, err := svc.Analyze(ctx, remote.AnalyzeRequest{
		Filename: input.Filename,
		Image:    input.Image,
		Params:   input.Params,
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Int("lines", len(analyzed.Lines)).Msg("palm analyzed")

	meta := input.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	scanID, err := svc.SaveScan(ctx, analyzed.Raw, meta)
	if err != nil {
		return nil, err
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := db.InsertScan(ctx, env.DB, &db.Scan{
		ID:        scanID,
		UserID:    userID,
		Analyze:   analyzed.Raw,
		Meta:      metaJSON,
		CreatedAt: time.Now().Unix(),
	}); err != nil {
		return nil, err
	}
	log.Info().Str("scan_id", scanID).Msg("scan saved")

	rec, err := predictAndStore(ctx, env, svc, userID, scanID, analyzed.Summary(), input.PredictOptions)
	if err != nil {
		return nil, err
	}
	return &ScanOutput{ScanID: scanID, Fortune: *rec}, nil
}

// PredictInput contains parameters for the Predict operation.
type PredictInput struct {
	UserID string // required
	ScanID string // required
	PredictOptions
}

// Predict requests a new fortune for an already saved scan and stores it. The
// line summary comes from the local copy of the scan when there is one.
func Predict(ctx context.Context, env *Env, input PredictInput) (*Record, error) {
	userID, err := cleanUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	scanID := strings.TrimSpace(input.ScanID)
	if scanID == "" {
		return nil, errors.NewInvalidRequest("scan_id is required")
	}
	svc, err := env.service()
	if err != nil {
		return nil, err
	}

	var summary *fortune.Summary
	scan, err := db.GetScan(ctx, env.DB, userID, scanID)
	switch {
	case err == nil:
		var analyzed remote.AnalyzeResult
		if json.Unmarshal(scan.Analyze, &analyzed) == nil {
			summary = analyzed.Summary()
		}
	case errors.Is(err, errors.ErrNotFound):
		// Saved from another device; the service still knows it.
	default:
		return nil, err
	}

	return predictAndStore(ctx, env, svc, userID, scanID, summary, input.PredictOptions)
}

func predictAndStore(ctx context.Context, env *Env, svc Remote, userID, scanID string, summary *fortune.Summary, opts PredictOptions) (*Record, error) {
	opts = withDefaults(opts, env)

	resp, err := svc.Predict(ctx, remote.PredictRequest{
		ScanID:   scanID,
		Language: opts.Language,
		Style:    opts.Style,
		Model:    opts.Model,
		Period:   opts.Period,
	})
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(resp.FortuneID)
	if id == "" {
		if id, err = generateULID(); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	now := time.Now()
	doc := fortune.Document{
		ID:         id,
		UserID:     userID,
		Answer:     resp.Answer,
		CreatedAt:  fortune.NewTimestamp(now),
		Language:   opts.Language,
		Style:      opts.Style,
		Period:     opts.Period,
		PeriodText: periodText(opts.Period),
		Summary:    summary,
		Model:      opts.Model,
	}
	payload := fortune.EncodeDocument(doc, map[string]any{"scan_id": scanID})

	// The service owns the id, so a repeat prediction overwrites rather than fails.
	if err := db.UpsertFortune(ctx, env.DB, buildRow(userID, id, payload, now)); err != nil {
		return nil, err
	}
	env.Log.Info().Str("user_id", userID).Str("scan_id", scanID).Str("fortune_id", id).Msg("fortune stored")

	rec := env.enrichDocument(doc)
	return &rec, nil
}

func withDefaults(opts PredictOptions, env *Env) PredictOptions {
	def := env.config().Defaults
	pick := func(v, d, fallback string) string {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		if d != "" {
			return d
		}
		return fallback
	}
	return PredictOptions{
		Language: pick(opts.Language, def.Language, "th"),
		Style:    pick(opts.Style, def.Style, "friendly"),
		Model:    pick(opts.Model, def.Model, "deepseek-chat"),
		Period:   pick(opts.Period, def.Period, PeriodToday),
	}
}

// periodText labels a period the way the fortune service does when it omits
// period_text: Thai "วันนี้" for today, the raw period otherwise.
func periodText(period string) *fortune.PeriodText {
	th := period
	if period == PeriodToday {
		th = "วันนี้"
	}
	return &fortune.PeriodText{TH: th, EN: period}
}
