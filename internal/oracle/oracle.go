// Package oracle implements schedule.Labeler on top of a generative model.
package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	appLog "poolcal/internal/log"
	"poolcal/internal/schedule"
)

// maxPromptText caps the schedule text sent to the model.
const maxPromptText = 4000

var ErrInvalidResponse = errors.New("oracle: invalid model response")

// GenerateFunc sends a prompt and returns the model's raw JSON text.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Labeler classifies schedule text into one of a closed set of categories.
// Answers are cached by (candidates, text); the cache is safe for
// concurrent use.
type Labeler struct {
	name     string
	generate GenerateFunc
	timeout  time.Duration
	cache    *lru.Cache[string, []schedule.Label]
}

var _ schedule.Labeler = (*Labeler)(nil)

// New wraps an arbitrary generator. cacheSize <= 0 disables caching.
func New(name string, generate GenerateFunc, cacheSize int, timeout time.Duration) (*Labeler, error) {
	if generate == nil {
		return nil, errors.New("oracle: generate func is nil")
	}
	l := &Labeler{name: name, generate: generate, timeout: timeout}
	if cacheSize > 0 {
		cache, err := lru.New[string, []schedule.Label](cacheSize)
		if err != nil {
			return nil, err
		}
		l.cache = cache
	}
	return l, nil
}

func (l *Labeler) Name() string { return l.name }

func (l *Labeler) Label(ctx context.Context, text string, candidates []string) ([]schedule.Label, error) {
	key := cacheKey(text, candidates)
	if l.cache != nil {
		if labels, ok := l.cache.Get(key); ok {
			return labels, nil
		}
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := l.generate(ctx, buildPrompt(text, candidates))
	if err != nil {
		return nil, fmt.Errorf("oracle: %s: %w", l.name, err)
	}
	labels, err := parseLabels(raw)
	if err != nil {
		return nil, err
	}
	appLog.Debug("oracle labeled block", "model", l.name, "labels", len(labels), "elapsed", time.Since(start))

	if l.cache != nil {
		l.cache.Add(key, labels)
	}
	return labels, nil
}

func buildPrompt(text string, candidates []string) string {
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText])
	}
	var b strings.Builder
	b.WriteString("You classify sections of German swimming pool schedule pages.\n")
	b.WriteString("Some pages only say \"Öffnungszeiten\", which means general public swimming.\n")
	b.WriteString("Choose among exactly these labels:\n")
	for _, c := range candidates {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("Score every label between 0 and 1 and answer with JSON only, shaped as\n")
	b.WriteString(`{"labels":[{"label":"<label>","score":0.0}]}`)
	b.WriteString("\n\n[TEXT]\n")
	b.WriteString(text)
	return b.String()
}

type labelsResponse struct {
	Labels []schedule.Label `json:"labels"`
}

// parseLabels accepts {"labels":[...]} or a bare array, optionally inside a
// markdown code fence.
func parseLabels(raw string) ([]schedule.Label, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var resp labelsResponse
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &resp.Labels); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
	} else if err := json.Unmarshal([]byte(s), &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	out := resp.Labels[:0]
	for _, l := range resp.Labels {
		l.Name = strings.TrimSpace(l.Name)
		if l.Name == "" || l.Score < 0 || l.Score > 1 {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func cacheKey(text string, candidates []string) string {
	h := sha256.New()
	for _, c := range candidates {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
