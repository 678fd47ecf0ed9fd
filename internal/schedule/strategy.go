package schedule

import (
	"context"

	appLog "poolcal/internal/log"
	"poolcal/internal/model"
)

// DailyStatement handles blocks stating general opening hours for every day,
// e.g. "Öffnungszeiten: täglich 06:00 – 21:00". Every time range in such a
// block applies to all seven days, and the block is claimed.
type DailyStatement struct{}

func (DailyStatement) Name() string { return "daily-statement" }

func (DailyStatement) Extract(ctx context.Context, b *BlockScan) []model.ScheduleFact {
	text := b.Text()
	if !containsFold(text, OpeningHoursMarker) || !containsFold(text, DailySentinel) {
		return nil
	}
	b.Claim()

	days := allWeekdays()
	var facts []model.ScheduleFact
	for i, line := range b.Lines() {
		ranges := b.rangesIn(line)
		for _, r := range ranges {
			facts = append(facts, b.Facts(ctx, days, r, true)...)
		}
		if len(ranges) > 0 {
			b.Consume(i)
		}
	}
	return facts
}

// TableRow handles lines carrying their own day descriptor, such as
// "Montag – Freitag 06:30 – 08:00 Uhr" or a flattened table row.
type TableRow struct{}

func (TableRow) Name() string { return "table-row" }

func (TableRow) Extract(ctx context.Context, b *BlockScan) []model.ScheduleFact {
	var facts []model.ScheduleFact
	for i, line := range b.Lines() {
		if b.Consumed(i) {
			continue
		}
		ranges := b.rangesIn(line)
		if len(ranges) == 0 {
			continue
		}
		days, err := ExpandDays(line)
		if err != nil {
			continue
		}
		daily := containsFold(line, DailySentinel) || (len(days) == 7 && len(findDayTokens(line)) == 0)
		for _, r := range ranges {
			facts = append(facts, b.Facts(ctx, days, r, daily)...)
		}
		b.Consume(i)
	}
	return facts
}

// Paragraph attributes the remaining time ranges to the nearest preceding
// day-only line ("Montag – Freitag" above "06:00 – 08:00"), or failing that
// to whatever days the block names. Ranges with no attributable day are
// dropped.
type Paragraph struct{}

func (Paragraph) Name() string { return "paragraph" }

func (Paragraph) Extract(ctx context.Context, b *BlockScan) []model.ScheduleFact {
	lines := b.Lines()
	var facts []model.ScheduleFact
	for i, line := range lines {
		if b.Consumed(i) {
			continue
		}
		ranges := b.rangesIn(line)
		if len(ranges) == 0 {
			continue
		}

		descriptor := b.Text()
		for j := i - 1; j >= 0; j-- {
			if HasDayToken(lines[j]) && !HasTimeRange(lines[j]) {
				descriptor = lines[j]
				break
			}
		}

		days, err := ExpandDays(descriptor)
		if err != nil {
			appLog.Debug("time range without weekday dropped", "pool", b.Pool(), "line", line, "reason", err)
			continue
		}
		daily := containsFold(descriptor, DailySentinel)
		for _, r := range ranges {
			facts = append(facts, b.Facts(ctx, days, r, daily)...)
		}
		b.Consume(i)
	}
	return facts
}
