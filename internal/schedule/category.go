package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	appLog "poolcal/internal/log"
)

const DefaultCategory = "Öffentliches Schwimmen"

// Keyword maps a case-insensitive substring to a category label.
type Keyword struct {
	Match    string `yaml:"match" json:"match"`
	Category string `yaml:"category" json:"category"`
}

// DefaultKeywords is the built-in priority-ordered keyword table.
func DefaultKeywords() []Keyword {
	return []Keyword{
		{Match: "früh", Category: "Frühschwimmen"},
		{Match: "öffentlich", Category: "Öffentliches Schwimmen"},
		{Match: "lehr", Category: "Lehrschwimmbecken"},
	}
}

// Resolution is the outcome of resolving a block's category.
type Resolution struct {
	Category string
	// Confidence is nil unless a Labeler produced the category.
	Confidence *float64
}

// Resolver assigns a category to a text block. Implementations never fail;
// they fall back to a default label.
type Resolver interface {
	Resolve(ctx context.Context, heading, text string) Resolution
}

// Label is one ranked answer from a Labeler.
type Label struct {
	Name  string  `json:"label"`
	Score float64 `json:"score"`
}

// Labeler is an external classifier choosing among a closed set of labels.
// The returned slice may be in any order.
type Labeler interface {
	Label(ctx context.Context, text string, candidates []string) ([]Label, error)
}

// KeywordResolver resolves heading first, then the keyword table, then Default.
type KeywordResolver struct {
	Keywords []Keyword
	Default  string
}

func NewKeywordResolver(keywords []Keyword, def string) *KeywordResolver {
	if keywords == nil {
		keywords = DefaultKeywords()
	}
	if def == "" {
		def = DefaultCategory
	}
	folded := make([]Keyword, 0, len(keywords))
	for _, k := range keywords {
		if strings.TrimSpace(k.Match) == "" || k.Category == "" {
			continue
		}
		folded = append(folded, Keyword{Match: fold(k.Match), Category: k.Category})
	}
	return &KeywordResolver{Keywords: folded, Default: def}
}

func (r *KeywordResolver) Resolve(_ context.Context, heading, text string) Resolution {
	if h := strings.TrimSpace(heading); h != "" {
		return Resolution{Category: h}
	}
	body := fold(text)
	for _, k := range r.Keywords {
		if strings.Contains(body, k.Match) {
			return Resolution{Category: k.Category}
		}
	}
	return Resolution{Category: r.Default}
}

// OracleResolver resolves heading first and otherwise asks a Labeler,
// using the top-ranked label and its score.
type OracleResolver struct {
	Labeler    Labeler
	Candidates []string
	Default    string
}

func NewOracleResolver(l Labeler, candidates []string, def string) *OracleResolver {
	if def == "" {
		def = DefaultCategory
	}
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}
	return &OracleResolver{Labeler: l, Candidates: candidates, Default: def}
}

// DefaultCandidates is the closed label set offered to a Labeler.
func DefaultCandidates() []string {
	return []string{"Frühschwimmen", "Öffentliches Schwimmen", "Lehrschwimmbecken"}
}

func (r *OracleResolver) Resolve(ctx context.Context, heading, text string) Resolution {
	if h := strings.TrimSpace(heading); h != "" {
		return Resolution{Category: h}
	}
	top, err := r.top(ctx, text)
	if err != nil {
		appLog.Warn("category oracle failed; using default", "err", err, "default", r.Default)
		return Resolution{Category: r.Default}
	}
	score := top.Score
	return Resolution{Category: top.Name, Confidence: &score}
}

func (r *OracleResolver) top(ctx context.Context, text string) (Label, error) {
	if r.Labeler == nil {
		return Label{}, fmt.Errorf("%w: no labeler configured", ErrCategoryResolution)
	}
	labels, err := r.Labeler.Label(ctx, text, r.Candidates)
	if err != nil {
		return Label{}, fmt.Errorf("%w: %w", ErrCategoryResolution, err)
	}
	labels = keepCandidates(labels, r.Candidates)
	if len(labels) == 0 {
		return Label{}, fmt.Errorf("%w: no labels returned", ErrCategoryResolution)
	}
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Score > labels[j].Score })
	return labels[0], nil
}

func keepCandidates(labels []Label, candidates []string) []Label {
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c] = true
	}
	out := make([]Label, 0, len(labels))
	for _, l := range labels {
		if allowed[l.Name] {
			out = append(out, l)
		}
	}
	return out
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func containsFold(s, substr string) bool {
	return strings.Contains(fold(s), fold(substr))
}
