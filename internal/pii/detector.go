package pii

import (
	"fmt"
	"regexp"
	"sort"
)

// Match is a detected span. Start and End are byte offsets forming the half-open range [Start, End).
type Match struct {
	Kind  Kind
	Start int
	End   int
	Text  string
}

type rule struct {
	kind Kind
	re   *regexp.Regexp
	rank int
}

// Detector finds PII spans. It holds only compiled patterns and is safe for concurrent use.
type Detector struct {
	rules []rule
}

// NewDetector compiles DefaultPatterns. When kinds are given, only those rows are kept,
// in table order.
func NewDetector(kinds ...Kind) (*Detector, error) {
	if len(kinds) == 0 {
		return NewDetectorFromPatterns(DefaultPatterns)
	}
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		if !k.known() {
			return nil, fmt.Errorf("unknown PII kind: %q", k)
		}
		want[k] = true
	}
	var patterns []Pattern
	for _, p := range DefaultPatterns {
		if want[p.Kind] {
			patterns = append(patterns, p)
		}
	}
	return NewDetectorFromPatterns(patterns)
}

// NewDetectorFromPatterns compiles a custom table. Slice order is priority order.
func NewDetectorFromPatterns(patterns []Pattern) (*Detector, error) {
	d := &Detector{rules: make([]rule, 0, len(patterns))}
	for i, p := range patterns {
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s pattern: %w", p.Kind, err)
		}
		d.rules = append(d.rules, rule{kind: p.Kind, re: re, rank: i})
	}
	return d, nil
}

// Kinds returns the detected kinds in priority order.
func (d *Detector) Kinds() []Kind {
	kinds := make([]Kind, len(d.rules))
	for i, r := range d.rules {
		kinds[i] = r.kind
	}
	return kinds
}

// Detect returns non-overlapping matches sorted by start offset. Each pattern runs over
// the original text; overlaps go to the higher-priority kind.
func (d *Detector) Detect(text string) []Match {
	if text == "" {
		return nil
	}

	type candidate struct {
		Match
		rank int
	}
	var candidates []candidate
	for _, r := range d.rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] {
				continue
			}
			candidates = append(candidates, candidate{
				Match: Match{Kind: r.kind, Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]]},
				rank:  r.rank,
			})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		return candidates[i].Start < candidates[j].Start
	})

	accepted := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if overlapsAny(c.Match, accepted) {
			continue
		}
		accepted = append(accepted, c.Match)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted
}

func overlapsAny(m Match, accepted []Match) bool {
	for _, a := range accepted {
		if m.Start < a.End && a.Start < m.End {
			return true
		}
	}
	return false
}
