package restart

import (
	"fmt"
	"time"

	"github.com/fgeck/jmx-restart/internal/models"
	"github.com/rs/zerolog"
)

// Reporter receives progress events from the orchestrator.
type Reporter interface {
	Report(event models.RestartEvent)
}

// NopReporter drops every event.
type NopReporter struct{}

// Report implements Reporter.
func (NopReporter) Report(models.RestartEvent) {}

// LogReporter renders events as log lines.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter creates a reporter writing to logger.
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report implements Reporter.
func (r *LogReporter) Report(event models.RestartEvent) {
	switch event.Kind {
	case models.EventRestartTriggered:
		r.logger.Info().Msg("restart initiated successfully, waiting for it to complete")
	case models.EventWaitTick:
		r.logger.Debug().
			Int("elapsed_seconds", int(event.Elapsed.Seconds())).
			Msg("waiting")
	case models.EventStateCheckAttempt:
		r.logger.Info().
			Int("attempt", event.Attempt).
			Int("max_attempts", event.MaxAttempts).
			Msg("checking whether the server finished restarting")
	case models.EventRestartConfirmed:
		r.logger.Info().
			Str("elapsed", FormatElapsed(event.Elapsed)).
			Msg("server has been successfully restarted")
	case models.EventRestartTimedOut:
		r.logger.Warn().
			Str("elapsed", FormatElapsed(event.Elapsed)).
			Int("max_attempts", event.MaxAttempts).
			Msg("server did not come back in time")
	}
}

// FormatElapsed renders a duration as MM:SS, rounding to whole seconds.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
