package fortune

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Vocabulary is the keyword data that drives classification. The source model
// mixes Thai and English freely and the keyword set drifts between prompt
// revisions, so it is kept as data rather than code.
type Vocabulary struct {
	// Replace discards the defaults instead of extending them when loaded from a file.
	Replace bool `toml:"replace"`

	Tips     []string            `toml:"tips"`
	Cautions []string            `toml:"cautions"`
	Sections []SectionVocabulary `toml:"section"`
}

// SectionVocabulary lists the heading keywords for one section.
type SectionVocabulary struct {
	Key   string `toml:"key"`
	Title string `toml:"title"`

	// Keywords match as a heading: after a leading ordinal ("1)", "2.") or
	// followed by a terminator (":", "-", end of line).
	Keywords []string `toml:"keywords"`

	// Loose keywords match anywhere in a line.
	Loose []string `toml:"loose"`
}

// DefaultVocabulary returns the built-in Thai/English keyword set.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Tips:     []string{"tips", "tip", "suggestions", "suggestion", "ข้อแนะนำ", "แนวทาง"},
		Cautions: []string{"caveats", "caveat", "warnings", "warning", "ข้อควรระวัง", "สิ่งที่ต้องระวัง"},
		Sections: []SectionVocabulary{
			{Key: "love", Title: "Love", Keywords: []string{"love", "relationship", "ความรัก"}, Loose: []string{"ความรัก"}},
			{Key: "career", Title: "Career", Keywords: []string{"career", "work", "การงาน"}, Loose: []string{"การงาน"}},
			{Key: "finance", Title: "Finance", Keywords: []string{"finance", "money", "การเงิน"}, Loose: []string{"การเงิน"}},
			{Key: "health", Title: "Health", Keywords: []string{"health", "wellness", "สุขภาพ"}, Loose: []string{"สุขภาพ"}},
		},
	}
}

// LoadVocabulary reads a TOML vocabulary file and merges it over the defaults
// (or replaces them when the file sets replace = true).
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	return ParseVocabulary(string(data))
}

// ParseVocabulary decodes TOML vocabulary text. See LoadVocabulary.
func ParseVocabulary(text string) (Vocabulary, error) {
	var file Vocabulary
	if _, err := toml.Decode(text, &file); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}

	if err := file.validate(); err != nil {
		return Vocabulary{}, err
	}

	if file.Replace {
		return file, nil
	}
	return MergeVocabulary(DefaultVocabulary(), file), nil
}

// MergeVocabulary appends overlay keywords to base, deduplicating case-insensitively.
// A non-empty overlay title wins.
func MergeVocabulary(base, overlay Vocabulary) Vocabulary {
	out := Vocabulary{
		Tips:     mergeWords(base.Tips, overlay.Tips),
		Cautions: mergeWords(base.Cautions, overlay.Cautions),
	}

	byKey := make(map[string]SectionVocabulary, len(SectionOrder))
	for _, s := range base.Sections {
		byKey[s.Key] = s
	}
	for _, s := range overlay.Sections {
		cur := byKey[s.Key]
		cur.Key = s.Key
		if strings.TrimSpace(s.Title) != "" {
			cur.Title = s.Title
		}
		cur.Keywords = mergeWords(cur.Keywords, s.Keywords)
		cur.Loose = mergeWords(cur.Loose, s.Loose)
		byKey[s.Key] = cur
	}

	for _, key := range SectionOrder {
		if s, ok := byKey[string(key)]; ok {
			out.Sections = append(out.Sections, s)
		}
	}
	return out
}

func (v Vocabulary) validate() error {
	seen := make(map[string]bool)
	for _, s := range v.Sections {
		if !IsSectionKey(s.Key) {
			return fmt.Errorf("vocabulary: unknown section key %q (want one of love, career, finance, health)", s.Key)
		}
		if seen[s.Key] {
			return fmt.Errorf("vocabulary: section %q listed twice", s.Key)
		}
		seen[s.Key] = true
		if err := checkWords("section "+s.Key, s.Keywords); err != nil {
			return err
		}
		if err := checkWords("section "+s.Key+" loose", s.Loose); err != nil {
			return err
		}
	}
	if err := checkWords("tips", v.Tips); err != nil {
		return err
	}
	return checkWords("cautions", v.Cautions)
}

func checkWords(where string, words []string) error {
	for _, w := range words {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("vocabulary: empty keyword in %s", where)
		}
	}
	return nil
}

func mergeWords(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, w := range list {
			w = strings.TrimSpace(w)
			k := strings.ToLower(w)
			if w == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, w)
		}
	}
	return out
}
