package schedule

import (
	"context"
	"fmt"
	"time"

	appLog "poolcal/internal/log"
	"poolcal/internal/model"
)

// Mode selects how categories are resolved.
type Mode string

const (
	ModeKeywords Mode = "keywords"
	ModeOracle   Mode = "oracle"
)

// Options is everything the core needs; it is passed in explicitly per run.
type Options struct {
	TimeZone        string
	Keywords        []Keyword
	DefaultCategory string
	Mode            Mode
	// Candidates is the closed label set offered to the oracle.
	Candidates []string
}

// Pipeline wires extraction, deduplication and occurrence synthesis.
type Pipeline struct {
	extractor *Extractor
	synth     *Synthesizer
}

// Result is the outcome for one facility.
type Result struct {
	Facility    model.Facility
	Facts       []model.ScheduleFact
	Occurrences []model.CalendarOccurrence
}

// New builds a pipeline. labeler is required in ModeOracle and ignored
// otherwise.
func New(opts Options, labeler Labeler, strategies ...Strategy) (*Pipeline, error) {
	synth, err := NewSynthesizer(opts.TimeZone)
	if err != nil {
		return nil, err
	}

	var r Resolver
	switch opts.Mode {
	case ModeKeywords, "":
		r = NewKeywordResolver(opts.Keywords, opts.DefaultCategory)
	case ModeOracle:
		if labeler == nil {
			return nil, fmt.Errorf("schedule: mode %q needs a labeler", opts.Mode)
		}
		r = NewOracleResolver(labeler, opts.Candidates, opts.DefaultCategory)
	default:
		return nil, fmt.Errorf("schedule: unknown resolver mode %q", opts.Mode)
	}

	return &Pipeline{
		extractor: NewExtractor(r, strategies...),
		synth:     synth,
	}, nil
}

func (p *Pipeline) Location() *time.Location { return p.synth.Location() }

// Run processes one facility. It never fails: unusable input yields fewer
// facts, possibly none.
func (p *Pipeline) Run(ctx context.Context, facility model.Facility, blocks []model.Block, today time.Time) Result {
	raw := p.extractor.Extract(ctx, facility, blocks)
	facts := Dedupe(raw)
	occ := p.synth.SynthesizeAll(facts, today)

	appLog.Info("schedule extracted",
		"pool", facility.Name,
		"blocks", len(blocks),
		"raw_facts", len(raw),
		"facts", len(facts),
		"occurrences", len(occ),
	)

	return Result{Facility: facility, Facts: facts, Occurrences: occ}
}
