package triage

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Category is one entry in the fixed taxonomy. Keywords score 1 per
// substring hit, Patterns score 2 per match. PriorityBoost feeds the
// priority scorer; Color is display metadata passed through to output
// records.
type Category struct {
	Name          string
	Keywords      []string
	Patterns      []*regexp.Regexp
	PriorityBoost float64
	Color         string
	Fallback      bool
}

// DefaultCategories returns the built-in taxonomy. Order matters: on a
// tie, the category appearing earlier in this slice wins.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:          "bug_report",
			Keywords:      []string{"bug", "error", "issue", "problem", "broken", "not working", "crash", "fail", "exception", "500", "404"},
			Patterns:      compile(`error.*code`, `exception`, `stack trace`, `500.*error`, `404.*error`, `not.*work`),
			PriorityBoost: 0.3,
			Color:         "#FF6B6B",
		},
		{
			Name:          "feature_request",
			Keywords:      []string{"feature", "enhancement", "improve", "add", "new", "request", "would like", "could we", "suggestion"},
			Patterns:      compile(`can.*we.*add`, `would.*be.*nice`, `feature.*request`),
			PriorityBoost: 0.2,
			Color:         "#4ECDC4",
		},
		{
			Name:          "question",
			Keywords:      []string{"how", "what", "where", "when", "why", "help", "question", "explain", "understand"},
			Patterns:      compile(`\?$`, `how.*to`, `what.*is`, `can.*someone`),
			PriorityBoost: 0.1,
			Color:         "#45B7D1",
		},
		{
			Name:          "urgent",
			Keywords:      []string{"urgent", "asap", "emergency", "critical", "down", "outage", "production", "immediately"},
			Patterns:      compile(`urgent.*help`, `production.*down`, `critical.*issue`),
			PriorityBoost: 0.8,
			Color:         "#FF4757",
		},
		{
			Name:          "deployment",
			Keywords:      []string{"deploy", "release", "push", "merge", "build", "ci/cd", "pipeline", "staging"},
			Patterns:      compile(`deploy.*to`, `release.*notes`, `build.*failed`),
			PriorityBoost: 0.3,
			Color:         "#FFA726",
		},
		{
			Name:          "access_request",
			Keywords:      []string{"access", "permission", "login", "password", "account", "credential", "auth"},
			Patterns:      compile(`need.*access`, `can.*t.*login`, `permission.*denied`),
			PriorityBoost: 0.4,
			Color:         "#AB47BC",
		},
		{
			Name:          "general",
			Keywords:      []string{"update", "info", "fyi", "notice", "announcement", "heads up"},
			Patterns:      compile(`fyi`, `heads.*up`, `just.*to.*let.*you.*know`),
			PriorityBoost: 0.0,
			Color:         "#66BB6A",
			Fallback:      true,
		},
	}
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// validateCategories enforces the construction invariants: a non-empty
// set, unique names, and exactly one zero-boost fallback. Violations
// are fatal at engine construction.
func validateCategories(cats []Category) error {
	if len(cats) == 0 {
		return fmt.Errorf("category set is empty")
	}
	seen := map[string]bool{}
	fallbacks := 0
	for _, c := range cats {
		if c.Name == "" {
			return fmt.Errorf("category with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		if c.Fallback {
			fallbacks++
			if c.PriorityBoost != 0 {
				return fmt.Errorf("fallback category %q must have zero priority boost, got %.2f", c.Name, c.PriorityBoost)
			}
		}
	}
	if fallbacks != 1 {
		return fmt.Errorf("expected exactly one fallback category, got %d", fallbacks)
	}
	return nil
}

// categoryFile is the YAML shape of a rules override file.
type categoryFile struct {
	Categories []struct {
		Name          string   `yaml:"name"`
		Keywords      []string `yaml:"keywords"`
		Patterns      []string `yaml:"patterns"`
		PriorityBoost float64  `yaml:"priority_boost"`
		Color         string   `yaml:"color"`
		Fallback      bool     `yaml:"fallback"`
	} `yaml:"categories"`
}

// LoadCategories reads a taxonomy from a YAML file, preserving the
// file's ordering. Pattern compilation errors are fatal here rather
// than at match time.
func LoadCategories(path string) ([]Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	cats := make([]Category, 0, len(f.Categories))
	for _, c := range f.Categories {
		cat := Category{
			Name:          c.Name,
			Keywords:      c.Keywords,
			PriorityBoost: c.PriorityBoost,
			Color:         c.Color,
			Fallback:      c.Fallback,
		}
		for _, p := range c.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("category %q: invalid pattern %q: %w", c.Name, p, err)
			}
			cat.Patterns = append(cat.Patterns, re)
		}
		cats = append(cats, cat)
	}

	if err := validateCategories(cats); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return cats, nil
}
