// Package remote talks to the palm analyze service and the fortune service.
package remote

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/palmscan/palmscan/internal/config"
	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/fortune"
)

// Service names used in errors and logs.
const (
	ServiceAnalyze = "analyze"
	ServiceFortune = "fortune"
)

// DefaultAnalyzeParams are the lightweight tuning values sent with every analyze
// request unless overridden.
var DefaultAnalyzeParams = map[string]string{
	"max_side":             "900",
	"strong_enhance":       "0",
	"detail_binary":        "0",
	"rect_skeleton_kernel": "0",
	"min_component_pixels": "25",
	"prune_spur_iter":      "2",
	"show_hand":            "0",
	"hand_refine":          "grabcut",
	"hand_alpha":           "0.4",
}

// Client calls the remote services. It never retries.
type Client struct {
	analyze *resty.Client
	fortune *resty.Client
	tokens  TokenSource
	log     zerolog.Logger
}

// New builds a client from the service config. tokens authenticates fortune
// service calls; the analyze service is unauthenticated.
func New(cfg config.ServiceConfig, tokens TokenSource, log zerolog.Logger) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	fortuneClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	analyzeClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.AnalyzeBase(), "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{
		analyze: analyzeClient,
		fortune: fortuneClient,
		tokens:  tokens,
		log:     log,
	}
}

// ImageSize is the analyzed image size in pixels.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BBox is a rectangle in image pixels.
type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// AnalyzeResult is the palm-feature output of the analyze service. Raw keeps the
// response verbatim; it is what gets saved as the scan.
type AnalyzeResult struct {
	ImageSize               *ImageSize                 `json:"image_size,omitempty"`
	ROIBBoxSmall            *BBox                      `json:"roi_bbox_small,omitempty"`
	Lines                   map[string]json.RawMessage `json:"lines,omitempty"`
	Hand                    json.RawMessage            `json:"hand,omitempty"`
	FingerLengthRatioToHand json.RawMessage            `json:"finger_length_ratio_to_hand,omitempty"`
	Error                   string                     `json:"error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Summary extracts the life/head/heart line summaries, or nil when the result
// carries none.
func (a *AnalyzeResult) Summary() *fortune.Summary {
	if a == nil || len(a.Lines) == 0 {
		return nil
	}
	line := func(key string) *fortune.LineSummary {
		raw, ok := a.Lines[key]
		if !ok {
			return nil
		}
		var ls fortune.LineSummary
		if err := json.Unmarshal(raw, &ls); err != nil {
			return nil
		}
		if ls.LengthPx == nil && ls.BranchStyle == "" {
			return nil
		}
		return &ls
	}
	s := &fortune.Summary{Life: line("life"), Head: line("head"), Heart: line("heart")}
	if s.Life == nil && s.Head == nil && s.Heart == nil {
		return nil
	}
	return s
}

// AnalyzeRequest is one palm image upload.
type AnalyzeRequest struct {
	Filename string
	Image    io.Reader

	// Params override DefaultAnalyzeParams key by key.
	Params map[string]string
}

// Analyze uploads an image to POST /analyze as multipart form data.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if req.Image == nil {
		return nil, errors.NewInvalidRequest("image is required")
	}
	filename := req.Filename
	if filename == "" {
		filename = "hand.jpg"
	}

	form := make(map[string]string, len(DefaultAnalyzeParams)+len(req.Params))
	for k, v := range DefaultAnalyzeParams {
		form[k] = v
	}
	for k, v := range req.Params {
		form[k] = v
	}

	r := c.analyze.R().
		SetContext(ctx).
		SetFileReader("file", filename, req.Image).
		SetFormData(form)

	resp, err := c.send(ctx, ServiceAnalyze, r, "/analyze")
	if err != nil {
		return nil, err
	}

	var out AnalyzeResult
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, errors.NewUpstream(ServiceAnalyze, resp.StatusCode(), fmt.Sprintf("bad response (%d)", resp.StatusCode()))
	}
	if out.Error != "" {
		return nil, errors.NewUpstream(ServiceAnalyze, resp.StatusCode(), out.Error)
	}
	out.Raw = json.RawMessage(resp.Body())
	return &out, nil
}

type saveScanRequest struct {
	AnalyzeResult json.RawMessage `json:"analyze_result"`
	Meta          map[string]any  `json:"meta"`
}

type saveScanResponse struct {
	ID string `json:"id"`
}

// SaveScan stores an analyze result with the fortune service and returns its scan id.
func (c *Client) SaveScan(ctx context.Context, analyzeResult json.RawMessage, meta map[string]any) (string, error) {
	if len(analyzeResult) == 0 {
		return "", errors.NewInvalidRequest("analyze_result is required")
	}
	if meta == nil {
		meta = map[string]any{}
	}

	r, err := c.authed(ctx)
	if err != nil {
		return "", err
	}
	resp, err := c.send(ctx, ServiceFortune, r.SetBody(saveScanRequest{AnalyzeResult: analyzeResult, Meta: meta}), "/scan/save")
	if err != nil {
		return "", err
	}

	var out saveScanResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.ID == "" {
		return "", errors.NewUpstream(ServiceFortune, resp.StatusCode(), "save returned no scan id")
	}
	return out.ID, nil
}

// PredictRequest asks for a fortune for a saved scan.
type PredictRequest struct {
	ScanID   string `json:"scan_id"`
	Language string `json:"language"`
	Style    string `json:"style"`
	Model    string `json:"model"`
	Period   string `json:"period"`
}

// PredictResponse is the generated fortune.
type PredictResponse struct {
	FortuneID string `json:"fortune_id"`
	Answer    string `json:"answer"`
}

// Predict calls POST /fortune/predict.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	if strings.TrimSpace(req.ScanID) == "" {
		return nil, errors.NewInvalidRequest("scan_id is required")
	}

	r, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, ServiceFortune, r.SetBody(req), "/fortune/predict")
	if err != nil {
		return nil, err
	}

	var out PredictResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, errors.NewUpstream(ServiceFortune, resp.StatusCode(), fmt.Sprintf("bad response (%d)", resp.StatusCode()))
	}
	return &out, nil
}

func (c *Client) authed(ctx context.Context) (*resty.Request, error) {
	if c.tokens == nil {
		return nil, errors.NewUnauthenticated("no token source configured")
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.fortune.R().SetContext(ctx).SetAuthToken(tok), nil
}

// send posts r to path with a fresh request id and maps failures to FortuneErrors.
func (c *Client) send(ctx context.Context, service string, r *resty.Request, path string) (*resty.Response, error) {
	requestID := uuid.NewString()
	r.SetHeader("X-Request-ID", requestID)

	start := time.Now()
	resp, err := r.Post(path)
	log := c.log.With().
		Str("service_name", service).
		Str("path", path).
		Str("request_id", requestID).
		Dur("elapsed", time.Since(start)).
		Logger()

	if err != nil {
		if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
			return nil, errors.NewCancelled(err)
		}
		log.Warn().Err(err).Msg("remote call failed")
		return nil, errors.NewUpstream(service, 0, err.Error())
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		msg := upstreamMessage(resp.Body(), resp.StatusCode())
		log.Warn().Int("status", resp.StatusCode()).Str("error", msg).Msg("remote call rejected")
		return nil, errors.NewUpstream(service, resp.StatusCode(), msg)
	}

	log.Debug().Int("status", resp.StatusCode()).Msg("remote call")
	return resp, nil
}

// upstreamMessage prefers the server's detail, then its error, then the status.
func upstreamMessage(body []byte, status int) string {
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if s, ok := payload.Detail.(string); ok && s != "" {
			return s
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return "HTTP " + strconv.Itoa(status)
}
