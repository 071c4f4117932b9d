package ops

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/fortune"
	"github.com/palmscan/palmscan/internal/remote"
)

const analyzeJSON = `{"image_size":{"width":640,"height":480},"lines":{"life":{"length_px":311.6,"branch_style":"forked"},"head":{"length_px":200}}}`

type fakeRemote struct {
	image    string
	meta     map[string]any
	predicts []remote.PredictRequest
	answer   string
	err      error
}

func (f *fakeRemote) Analyze(_ context.Context, req remote.AnalyzeRequest) (*remote.AnalyzeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(req.Image)
	f.image = string(b)
	var out remote.AnalyzeResult
	if err := json.Unmarshal([]byte(analyzeJSON), &out); err != nil {
		return nil, err
	}
	out.Raw = json.RawMessage(analyzeJSON)
	return &out, nil
}

func (f *fakeRemote) SaveScan(_ context.Context, _ json.RawMessage, meta map[string]any) (string, error) {
	f.meta = meta
	return "scan-1", nil
}

func (f *fakeRemote) Predict(_ context.Context, req remote.PredictRequest) (*remote.PredictResponse, error) {
	f.predicts = append(f.predicts, req)
	return &remote.PredictResponse{FortuneID: "fortune-" + req.Period, Answer: f.answer}, nil
}

func TestScan_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	fake := &fakeRemote{answer: sampleAnswer}
	env.Service = fake
	ctx := context.Background()

	out, err := Scan(ctx, env, ScanInput{
		UserID: "u1",
		Image:  strings.NewReader("jpeg"),
		Meta:   map[string]any{"device": "cli", "facing": "back", "flash": false, "torch": false},
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if fake.image != "jpeg" || fake.meta["device"] != "cli" {
		t.Errorf("remote saw image %q meta %v", fake.image, fake.meta)
	}
	want := remote.PredictRequest{ScanID: "scan-1", Language: "th", Style: "friendly", Model: "deepseek-chat", Period: "today"}
	if len(fake.predicts) != 1 || fake.predicts[0] != want {
		t.Errorf("predict request = %+v, want %+v", fake.predicts, want)
	}

	if out.ScanID != "scan-1" || out.Fortune.ID != "fortune-today" {
		t.Errorf("output ids = %s / %s", out.ScanID, out.Fortune.ID)
	}
	if out.Fortune.PeriodText == nil || out.Fortune.PeriodText.TH != "วันนี้" || out.Fortune.PeriodText.EN != "today" {
		t.Errorf("PeriodText = %+v", out.Fortune.PeriodText)
	}
	sum := out.Fortune.Summary
	if sum == nil || sum.Life == nil || sum.Life.Describe() != "length: 312 • branch: forked" || sum.Heart != nil {
		t.Errorf("Summary = %+v", sum)
	}
	if out.Fortune.Preview != "Love: sunny • Tips: smile" {
		t.Errorf("Preview = %q", out.Fortune.Preview)
	}

	scan, err := db.GetScan(ctx, env.DB, "u1", "scan-1")
	if err != nil {
		t.Fatalf("local scan not stored: %v", err)
	}
	if string(scan.Analyze) != analyzeJSON {
		t.Errorf("analyze json = %s", scan.Analyze)
	}

	rec, err := Fetch(ctx, env, FetchInput{UserID: "u1", ID: "fortune-today"})
	if err != nil {
		t.Fatalf("stored fortune not fetchable: %v", err)
	}
	if rec.Summary == nil || rec.Summary.Head == nil || rec.Model != "deepseek-chat" {
		t.Errorf("stored record = %+v", rec.Document)
	}
}

func TestPredict_ExistingScan(t *testing.T) {
	env := newTestEnv(t)
	fake := &fakeRemote{answer: "Money: steady"}
	env.Service = fake
	env.Config.Defaults.Language = "en"
	ctx := context.Background()

	if err := db.InsertScan(ctx, env.DB, &db.Scan{ID: "s9", UserID: "u1", Analyze: json.RawMessage(analyzeJSON), CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}

	rec, err := Predict(ctx, env, PredictInput{UserID: "u1", ScanID: "s9", PredictOptions: PredictOptions{Period: "week"}})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if fake.predicts[0].Language != "en" || fake.predicts[0].Period != "week" {
		t.Errorf("request = %+v", fake.predicts[0])
	}
	if rec.PeriodText.TH != "week" || rec.Summary == nil {
		t.Errorf("record = %+v", rec.Document)
	}
	if rec.Parsed.Section(fortune.SectionFinance) == nil {
		t.Errorf("answer not parsed: %+v", rec.Parsed)
	}

	// A scan saved elsewhere still predicts, without a summary.
	rec, err = Predict(ctx, env, PredictInput{UserID: "u1", ScanID: "remote-only"})
	if err != nil {
		t.Fatalf("Predict remote-only failed: %v", err)
	}
	if rec.Summary != nil {
		t.Errorf("Summary = %+v, want nil", rec.Summary)
	}
}

func TestScan_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := Scan(ctx, env, ScanInput{UserID: "u1", Image: strings.NewReader("x")}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("no service: err = %v", err)
	}

	env.Service = &fakeRemote{err: errors.NewUpstream(remote.ServiceAnalyze, 422, "no hand detected")}
	if _, err := Scan(ctx, env, ScanInput{UserID: "u1", Image: strings.NewReader("x")}); !errors.Is(err, errors.ErrUpstream) {
		t.Errorf("upstream: err = %v", err)
	}
	if _, err := Scan(ctx, env, ScanInput{UserID: "u1"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("no image: err = %v", err)
	}
	if _, err := Predict(ctx, env, PredictInput{UserID: "u1"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("no scan id: err = %v", err)
	}
}
