package schedule

import (
	"context"
	"strings"

	appLog "poolcal/internal/log"
	"poolcal/internal/model"
)

// Strategy is one extraction heuristic. Strategies run in order; each sees
// every block not claimed by an earlier strategy and may consume lines so
// later strategies skip them.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, b *BlockScan) []model.ScheduleFact
}

// DefaultStrategies returns daily statements first, then table rows, then
// heading/paragraph attribution.
func DefaultStrategies() []Strategy {
	return []Strategy{DailyStatement{}, TableRow{}, Paragraph{}}
}

// Extractor turns a facility's text blocks into schedule facts. It keeps no
// state between calls and may be shared across goroutines if its Resolver can.
type Extractor struct {
	resolver   Resolver
	strategies []Strategy
}

func NewExtractor(r Resolver, strategies ...Strategy) *Extractor {
	if r == nil {
		r = NewKeywordResolver(nil, "")
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Extractor{resolver: r, strategies: strategies}
}

// Extract runs every strategy over every block. The result may contain
// duplicates produced by overlapping strategies; see Dedupe.
func (e *Extractor) Extract(ctx context.Context, facility model.Facility, blocks []model.Block) []model.ScheduleFact {
	pool := facility.Name
	if pool == "" {
		pool = facility.ID
	}

	scans := make([]*BlockScan, 0, len(blocks))
	for _, b := range blocks {
		scans = append(scans, newBlockScan(b, pool, e.resolver))
	}

	var facts []model.ScheduleFact
	for _, s := range e.strategies {
		n := len(facts)
		for _, sc := range scans {
			if sc.claimed {
				continue
			}
			facts = append(facts, s.Extract(ctx, sc)...)
		}
		appLog.Debug("extraction strategy done", "pool", pool, "strategy", s.Name(), "facts", len(facts)-n)
	}
	return facts
}

// BlockScan is the per-run view of one block shared by the strategies.
type BlockScan struct {
	block    model.Block
	pool     string
	lines    []string
	consumed []bool
	claimed  bool

	resolver Resolver
	resolved *Resolution
}

func newBlockScan(b model.Block, pool string, r Resolver) *BlockScan {
	var lines []string
	for _, l := range strings.Split(b.Text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return &BlockScan{
		block:    b,
		pool:     pool,
		lines:    lines,
		consumed: make([]bool, len(lines)),
		resolver: r,
	}
}

func (b *BlockScan) Heading() string { return b.block.Heading }
func (b *BlockScan) Text() string    { return b.block.Text }
func (b *BlockScan) Lines() []string { return b.lines }
func (b *BlockScan) Pool() string    { return b.pool }

// Claim stops later strategies from looking at this block.
func (b *BlockScan) Claim() { b.claimed = true }

func (b *BlockScan) Consume(i int)       { b.consumed[i] = true }
func (b *BlockScan) Consumed(i int) bool { return b.consumed[i] }

// Category resolves the block's category once, heading first.
func (b *BlockScan) Category(ctx context.Context) Resolution {
	if b.resolved == nil {
		res := b.resolver.Resolve(ctx, b.block.Heading, b.block.Text)
		b.resolved = &res
	}
	return *b.resolved
}

// Facts builds one fact per day for a single time range.
func (b *BlockScan) Facts(ctx context.Context, days []int, r model.TimeRange, daily bool) []model.ScheduleFact {
	res := b.Category(ctx)
	out := make([]model.ScheduleFact, 0, len(days))
	for _, d := range days {
		out = append(out, model.ScheduleFact{
			Category:   res.Category,
			Weekday:    d,
			Start:      r.Start,
			End:        r.End,
			Pool:       b.pool,
			IsDaily:    daily,
			Confidence: res.Confidence,
		})
	}
	return out
}

// rangesIn scans a line and logs malformed matches.
func (b *BlockScan) rangesIn(line string) []model.TimeRange {
	ranges, rejected := ScanTimeRanges(line)
	for _, s := range rejected {
		appLog.Debug("malformed time range skipped", "pool", b.pool, "match", s)
	}
	return ranges
}
