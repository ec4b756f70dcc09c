package export

import (
	"context"
	"time"
)

// RunDaily regenerates the upcoming schedule workbook once a day until the
// context is cancelled. The first export happens right away.
func (e *Exporter) RunDaily(ctx context.Context, horizonDays int) {
	if horizonDays <= 0 {
		horizonDays = 7
	}

	e.exportUpcoming(ctx, horizonDays)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.exportUpcoming(ctx, horizonDays)
		}
	}
}

func (e *Exporter) exportUpcoming(ctx context.Context, horizonDays int) {
	start := time.Now().In(e.policy.Location)
	end := start.AddDate(0, 0, horizonDays-1)
	if _, err := e.ExportSchedule(ctx, start, end); err != nil {
		e.logger.Error().Err(err).Msg("scheduled export failed")
	}
}
