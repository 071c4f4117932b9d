// Package fortune turns the free-text answer produced by the fortune service into
// structured, display-ready records. Everything here is pure: no I/O, no shared
// mutable state beyond the parser's swappable rule set.
package fortune

import (
	"math"
	"strconv"
	"strings"
)

// SectionKey identifies one of the four topical buckets a fortune is split into.
type SectionKey string

const (
	SectionLove    SectionKey = "love"
	SectionCareer  SectionKey = "career"
	SectionFinance SectionKey = "finance"
	SectionHealth  SectionKey = "health"
)

// SectionOrder is the canonical output order of sections, independent of the
// order in which headings appear in the source text.
var SectionOrder = []SectionKey{SectionLove, SectionCareer, SectionFinance, SectionHealth}

// IsSectionKey reports whether s names one of the four fixed sections.
func IsSectionKey(s string) bool {
	for _, k := range SectionOrder {
		if string(k) == s {
			return true
		}
	}
	return false
}

// Section is one labeled block of a parsed fortune.
type Section struct {
	Key     SectionKey `json:"key"`
	Title   string     `json:"title"`
	Content string     `json:"content"`
}

// Parsed is the structured form of a raw fortune answer.
// Raw always holds the input verbatim; it is the only lossless record.
type Parsed struct {
	Sections []Section `json:"sections"`
	Tips     []string  `json:"tips"`
	Cautions []string  `json:"cautions"`
	Raw      string    `json:"raw"`
}

// Section returns the section with the given key, or nil if it was omitted.
func (p Parsed) Section(key SectionKey) *Section {
	for i := range p.Sections {
		if p.Sections[i].Key == key {
			return &p.Sections[i]
		}
	}
	return nil
}

// PeriodText carries the localized label of the prediction period.
type PeriodText struct {
	TH string `json:"th,omitempty"`
	EN string `json:"en,omitempty"`
}

// LineSummary describes one palm line as reported by the analyze service.
type LineSummary struct {
	LengthPx    *float64 `json:"length_px,omitempty"`
	BranchStyle string   `json:"branch_style,omitempty"`
}

// Describe renders the summary as "length: 312 • branch: forked", skipping
// missing parts.
func (l *LineSummary) Describe() string {
	if l == nil {
		return ""
	}
	var parts []string
	if l.LengthPx != nil && !math.IsNaN(*l.LengthPx) && !math.IsInf(*l.LengthPx, 0) {
		parts = append(parts, "length: "+strconv.FormatInt(int64(math.Round(*l.LengthPx)), 10))
	}
	if l.BranchStyle != "" {
		parts = append(parts, "branch: "+l.BranchStyle)
	}
	return strings.Join(parts, " • ")
}

// Summary groups the three major palm lines.
type Summary struct {
	Life  *LineSummary `json:"life,omitempty"`
	Head  *LineSummary `json:"head,omitempty"`
	Heart *LineSummary `json:"heart,omitempty"`
}

// Document is a persisted fortune record as read back from the store.
// CreatedAt keeps whatever timestamp shape the store produced; see FormatDate.
type Document struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id,omitempty"`
	Answer          string         `json:"answer"`
	CreatedAt       any            `json:"createdAt,omitempty"`
	Language        string         `json:"language,omitempty"`
	Style           string         `json:"style,omitempty"`
	Period          string         `json:"period,omitempty"`
	PeriodText      *PeriodText    `json:"period_text,omitempty"`
	Summary         *Summary       `json:"summary,omitempty"`
	Model           string         `json:"model,omitempty"`
	UserProfileUsed map[string]any `json:"user_profile_used,omitempty"`
	Features        map[string]any `json:"features,omitempty"`
}

// Enriched is a Document with its derived structure. It is rebuilt on every read
// and never persisted.
type Enriched struct {
	Document
	Parsed  Parsed `json:"parsed"`
	Preview string `json:"preview"`
}

// Enrich parses doc.Answer with the default vocabulary and attaches a preview of
// DefaultPreviewChars. The input is not modified.
func Enrich(doc Document) Enriched {
	return defaultParser.Enrich(doc, DefaultPreviewChars)
}

// Enrich is the configurable form of the package-level Enrich.
func (p *Parser) Enrich(doc Document, maxChars int) Enriched {
	parsed := p.Parse(doc.Answer)
	return Enriched{
		Document: doc,
		Parsed:   parsed,
		Preview:  CreatePreview(parsed, maxChars),
	}
}
