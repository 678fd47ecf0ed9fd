package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"poolcal/internal/config"
	"poolcal/internal/ics"
	appLog "poolcal/internal/log"
	"poolcal/internal/model"
	"poolcal/internal/schedule"
)

// runPreview prints the sessions of the next days from the calendars
// already written to the output directory.
func runPreview(w io.Writer, cfg *config.Config, days int, now time.Time) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}

	paths, err := filepath.Glob(filepath.Join(cfg.OutputDir, ics.FileName("*")))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no calendars in %s; run with -once first", cfg.OutputDir)
	}
	sort.Strings(paths)

	var occurrences []model.CalendarOccurrence
	for _, p := range paths {
		occ, err := ics.ReadFile(p)
		if err != nil {
			appLog.Error("preview: skipping calendar", err, "path", p)
			continue
		}
		occurrences = append(occurrences, occ...)
	}

	now = now.In(loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	res, err := ics.Expand(occurrences, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      from,
		RangeEnd:        from.AddDate(0, 0, days),
	})
	if err != nil {
		return err
	}

	var lastDay string
	for _, inst := range res.Instances {
		day := inst.Start.Format("2006-01-02")
		if day != lastDay {
			weekday := (int(inst.Start.Weekday()) + 6) % 7
			fmt.Fprintf(w, "%s %s\n", schedule.WeekdayName(weekday), day)
			lastDay = day
		}
		fmt.Fprintf(w, "  %s–%s  %s\n", inst.Start.Format("15:04"), inst.End.Format("15:04"), inst.Title)
	}
	return nil
}

func previewStdout(cfg *config.Config, days int) {
	if err := runPreview(os.Stdout, cfg, days, time.Now()); err != nil {
		appLog.Error("preview failed", err)
		os.Exit(1)
	}
}
