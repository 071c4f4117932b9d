package fortune

import (
	"regexp"
	"slices"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"
)

// whitespaceRegex matches runs of whitespace, including non-breaking and other
// Unicode space separators that show up in model output.
var whitespaceRegex = regexp.MustCompile(`[\s\p{Zs}]+`)

// bulletRegex matches a leading list marker: "-", "–", "•" or "3)".
var bulletRegex = regexp.MustCompile(`^(?:[-–•]|\d+\))\s*(.+)$`)

// decoration is markdown emphasis or heading noise allowed before a heading keyword.
const decoration = `[#*_\s]*`

// terminator ends a heading keyword: a colon (ASCII or full width) or a dash with
// whitespace on both sides. A bare dash is prose, as in "Money-wise".
const terminator = `[*_]*(?:\s*[:：][*_]*\s*|\s+[-–]\s+)`

// headingEnd is a terminator or the end of the line.
const headingEnd = `(?:` + terminator + `|[*_]*\s*$)`

// parseMode is the current routing target of the line state machine.
// The zero value means no heading has been seen yet.
type parseMode string

const (
	modeNone     parseMode = ""
	modeTips     parseMode = "tips"
	modeCautions parseMode = "cautions"
)

// rule is one entry of the classification table. Rules are tried in order and the
// first match wins, regardless of the current mode.
type rule struct {
	match func(line string) (rest string, ok bool)
	apply func(st *parseState, rest string)
}

// ruleSet is an immutable compiled vocabulary.
type ruleSet struct {
	rules  []rule
	titles map[SectionKey]string
}

// Parser classifies fortune text using a compiled vocabulary. The rule set can be
// swapped at runtime; a Parse call always sees one complete rule set.
type Parser struct {
	rules atomic.Pointer[ruleSet]
}

var defaultParser = MustParser(DefaultVocabulary())

// Default returns the parser built from DefaultVocabulary.
func Default() *Parser {
	return defaultParser
}

// NewParser compiles v into a Parser.
func NewParser(v Vocabulary) (*Parser, error) {
	p := &Parser{}
	if err := p.Swap(v); err != nil {
		return nil, err
	}
	return p, nil
}

// MustParser is like NewParser but panics on an invalid vocabulary.
func MustParser(v Vocabulary) *Parser {
	p, err := NewParser(v)
	if err != nil {
		panic(err)
	}
	return p
}

// Swap compiles v and atomically replaces the parser's rules.
// On error the previous rules stay in place.
func (p *Parser) Swap(v Vocabulary) error {
	if err := v.validate(); err != nil {
		return err
	}
	rs, err := compile(v)
	if err != nil {
		return err
	}
	p.rules.Store(rs)
	return nil
}

// Parse classifies answer with the default vocabulary.
func Parse(answer string) Parsed {
	return defaultParser.Parse(answer)
}

// Parse splits answer into sections, tips and cautions. It never fails: input
// with no recognizable structure ends up in the love section, and empty input
// yields empty lists.
func (p *Parser) Parse(answer string) Parsed {
	rs := p.rules.Load()
	st := &parseState{buffers: make(map[SectionKey][]string, len(SectionOrder))}

	for _, raw := range strings.Split(answer, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if rs.classify(st, line) {
			continue
		}
		st.route(stripBullet(line))
	}

	return st.emit(rs.titles, answer)
}

func (rs *ruleSet) classify(st *parseState, line string) bool {
	for _, r := range rs.rules {
		if rest, ok := r.match(line); ok {
			r.apply(st, rest)
			return true
		}
	}
	return false
}

// parseState accumulates one Parse call. It is never shared.
type parseState struct {
	mode     parseMode
	buffers  map[SectionKey][]string
	tips     []string
	cautions []string
}

func (st *parseState) route(line string) {
	line = normalizeLine(line)
	switch st.mode {
	case modeTips:
		st.tips = append(st.tips, line)
	case modeCautions:
		st.cautions = append(st.cautions, line)
	case modeNone:
		st.buffers[SectionLove] = append(st.buffers[SectionLove], line)
	default:
		key := SectionKey(st.mode)
		st.buffers[key] = append(st.buffers[key], line)
	}
}

func (st *parseState) emit(titles map[SectionKey]string, raw string) Parsed {
	out := Parsed{
		Sections: make([]Section, 0, len(SectionOrder)),
		Tips:     nonEmpty(st.tips),
		Cautions: nonEmpty(st.cautions),
		Raw:      raw,
	}
	for _, key := range SectionOrder {
		content := strings.Join(st.buffers[key], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}
		out.Sections = append(out.Sections, Section{Key: key, Title: titles[key], Content: content})
	}
	return out
}

func compile(v Vocabulary) (*ruleSet, error) {
	rs := &ruleSet{titles: make(map[SectionKey]string, len(SectionOrder))}
	for _, key := range SectionOrder {
		rs.titles[key] = defaultTitle(key)
	}

	if len(v.Tips) > 0 {
		re, err := regexp.Compile(`(?i)^` + decoration + alternation(v.Tips))
		if err != nil {
			return nil, err
		}
		rs.rules = append(rs.rules, rule{
			match: prefixMatcher(re),
			apply: func(st *parseState, _ string) { st.mode = modeTips },
		})
	}
	if len(v.Cautions) > 0 {
		re, err := regexp.Compile(`(?i)^` + decoration + alternation(v.Cautions))
		if err != nil {
			return nil, err
		}
		rs.rules = append(rs.rules, rule{
			match: prefixMatcher(re),
			apply: func(st *parseState, _ string) { st.mode = modeCautions },
		})
	}

	// Strict heading forms of every section are tried before any loose keyword,
	// so "2) การงาน และความรัก" is a career heading. Within each group sections
	// follow canonical order.
	var strict, loose []rule
	sections := slices.Clone(v.Sections)
	slices.SortStableFunc(sections, func(a, b SectionVocabulary) int {
		return sectionIndex(a.Key) - sectionIndex(b.Key)
	})
	for _, s := range sections {
		key := SectionKey(s.Key)
		if t := strings.TrimSpace(s.Title); t != "" {
			rs.titles[key] = t
		}
		apply := enterSection(key)

		if len(s.Keywords) > 0 {
			alt := alternation(s.Keywords)
			ordinal, err := regexp.Compile(`(?i)^` + decoration + `\d+\s*[).:\-–]?\s*[*_]*` + alt + `(?:` + terminator + `)?`)
			if err != nil {
				return nil, err
			}
			terminated, err := regexp.Compile(`(?i)^` + decoration + alt + headingEnd)
			if err != nil {
				return nil, err
			}
			strict = append(strict,
				rule{match: prefixMatcher(ordinal), apply: apply},
				rule{match: prefixMatcher(terminated), apply: apply},
			)
		}
		if len(s.Loose) > 0 {
			alt := alternation(s.Loose)
			heading, err := regexp.Compile(`(?i)^` + decoration + alt + `[*_]*\s*$|` + alt + terminator)
			if err != nil {
				return nil, err
			}
			bare, err := regexp.Compile(`(?i)` + alt)
			if err != nil {
				return nil, err
			}
			loose = append(loose, rule{match: looseMatcher(heading, bare), apply: apply})
		}
	}
	rs.rules = append(rs.rules, strict...)
	rs.rules = append(rs.rules, loose...)

	return rs, nil
}

func enterSection(key SectionKey) func(st *parseState, rest string) {
	return func(st *parseState, rest string) {
		st.mode = parseMode(key)
		if rest != "" {
			st.buffers[key] = append(st.buffers[key], rest)
		}
	}
}

// prefixMatcher reports a match of re in line and returns the trimmed text after it.
func prefixMatcher(re *regexp.Regexp) func(string) (string, bool) {
	return func(line string) (string, bool) {
		loc := re.FindStringIndex(line)
		if loc == nil {
			return "", false
		}
		return strings.TrimSpace(line[loc[1]:]), true
	}
}

// looseMatcher matches a keyword anywhere in line. When the keyword has a heading
// shape ("ด้านการงาน: ...") the text up to the terminator is dropped; otherwise the
// keyword is part of a sentence and the whole line is kept as content.
func looseMatcher(heading, bare *regexp.Regexp) func(string) (string, bool) {
	return func(line string) (string, bool) {
		if loc := heading.FindStringIndex(line); loc != nil {
			return strings.TrimSpace(line[loc[1]:]), true
		}
		if !bare.MatchString(line) {
			return "", false
		}
		return strings.TrimSpace(stripBullet(line)), true
	}
}

// alternation builds a non-capturing group of the escaped words, longest first.
// Words ending in an ASCII letter or digit get a word boundary so "work" does not
// match "workload"; Thai words have no word boundary in RE2 and get none.
func alternation(words []string) string {
	sorted := slices.Clone(words)
	slices.SortStableFunc(sorted, func(a, b string) int {
		return utf8.RuneCountInString(b) - utf8.RuneCountInString(a)
	})

	parts := make([]string, 0, len(sorted))
	for _, w := range sorted {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		part := regexp.QuoteMeta(w)
		if last, _ := utf8.DecodeLastRuneInString(w); last < unicode.MaxASCII && (unicode.IsLetter(last) || unicode.IsDigit(last)) {
			part += `\b`
		}
		parts = append(parts, part)
	}
	return "(?:" + strings.Join(parts, "|") + ")"
}

func stripBullet(line string) string {
	if m := bulletRegex.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return line
}

// normalizeLine collapses whitespace runs to single spaces and trims.
func normalizeLine(line string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(line, " "))
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func sectionIndex(key string) int {
	for i, k := range SectionOrder {
		if string(k) == key {
			return i
		}
	}
	return len(SectionOrder)
}

func defaultTitle(key SectionKey) string {
	s := string(key)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
