// Package restart triggers a server restart through the management console
// and waits until the console answers again.
package restart

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fgeck/jmx-restart/internal/models"
	"github.com/fgeck/jmx-restart/internal/services/console"
	"github.com/rs/zerolog"
)

const successMarker = "success"

var (
	// ErrTriggerFailed means the restart trigger could not be delivered.
	ErrTriggerFailed = errors.New("restart trigger failed")
	// ErrTimedOut means the server did not answer within the restart timeout.
	ErrTimedOut = errors.New("restart not confirmed in time")
	// ErrMarkerMissing means the trigger response never reported success.
	ErrMarkerMissing = errors.New("success marker missing from trigger response")
)

// Service defines the interface for restart operations.
type Service interface {
	Restart(ctx context.Context, settings models.RestartSettings) (*models.RestartOutcome, error)
	Probe(ctx context.Context, settings models.RestartSettings) error
}

// TriggerHook runs between the trigger and the polling phase.
type TriggerHook interface {
	AfterTrigger(ctx context.Context) error
}

// Impl implements the restart Service interface.
type Impl struct {
	httpClient console.HTTPClient
	clock      Clock
	reporter   Reporter
	hook       TriggerHook
	logger     zerolog.Logger
}

// New creates a new restart service. Every request opens a fresh connection.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: console.NewHTTPClient(),
		clock:      RealClock{},
		reporter:   NewLogReporter(logger),
		logger:     logger,
	}
}

// NewWithClients creates a new restart service with custom collaborators (for testing).
// Nil collaborators fall back to the ones New uses, except the reporter,
// which stays silent.
func NewWithClients(logger zerolog.Logger, httpClient console.HTTPClient, clock Clock, reporter Reporter) *Impl {
	if httpClient == nil {
		httpClient = console.NewHTTPClient()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Impl{
		httpClient: httpClient,
		clock:      clock,
		reporter:   reporter,
		logger:     logger,
	}
}

// WithTriggerHook sets a hook run after the trigger phase.
func (s *Impl) WithTriggerHook(hook TriggerHook) *Impl {
	s.hook = hook
	return s
}

// Restart triggers a restart and polls until the server answers again.
// The returned error is reserved for settings that do not form a valid
// endpoint; trigger failures and timeouts are reported in the outcome.
func (s *Impl) Restart(ctx context.Context, settings models.RestartSettings) (*models.RestartOutcome, error) {
	start := s.clock.Now()

	triggerEP, err := console.BuildTriggerEndpoint(settings)
	if err != nil {
		return nil, err
	}
	inspectEP, err := console.BuildInspectEndpoint(settings)
	if err != nil {
		return nil, err
	}

	outcome := &models.RestartOutcome{MaxAttempts: settings.MaxAttempts()}

	s.logger.Info().
		Str("url", triggerEP.URL.String()).
		Bool("auth", triggerEP.Authorization != "").
		Msg("triggering restart")

	accepted, err := s.trigger(ctx, settings, triggerEP)
	if err != nil {
		outcome.Status = models.OutcomeTriggerFailed
		outcome.Elapsed = s.clock.Now().Sub(start)
		outcome.Error = fmt.Errorf("%w: %w", ErrTriggerFailed, err)
		s.logger.Error().Err(err).Msg("management console not available, cannot restart")
		return outcome, nil
	}
	outcome.TriggerAccepted = accepted

	if accepted {
		s.reporter.Report(models.RestartEvent{
			Kind:        models.EventRestartTriggered,
			Elapsed:     s.clock.Now().Sub(start),
			MaxAttempts: outcome.MaxAttempts,
		})
	} else {
		if settings.TriggerPolicy == models.TriggerPolicyStrict {
			outcome.Status = models.OutcomeTriggerFailed
			outcome.Elapsed = s.clock.Now().Sub(start)
			outcome.Error = fmt.Errorf("%w: %w", ErrTriggerFailed, ErrMarkerMissing)
			s.logger.Error().Msg("trigger response did not report success")
			return outcome, nil
		}
		// The server may drop the connection while shutting down.
		s.logger.Warn().Msg("trigger response did not report success, polling anyway")
	}

	if s.hook != nil {
		if err := s.hook.AfterTrigger(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("post-trigger hook failed")
		}
	}

	s.poll(ctx, settings, inspectEP, start, outcome)
	return outcome, nil
}

// Probe performs a single liveness check.
func (s *Impl) Probe(ctx context.Context, settings models.RestartSettings) error {
	ep, err := console.BuildInspectEndpoint(settings)
	if err != nil {
		return err
	}
	return s.check(ctx, settings, ep)
}

// trigger sends the restart request and scans the response for the
// success marker. Only a failure to get a response is an error.
func (s *Impl) trigger(ctx context.Context, settings models.RestartSettings, ep models.ManagementEndpoint) (bool, error) {
	if settings.TriggerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.TriggerTimeout)
		defer cancel()
	}

	req, err := console.NewRequest(ctx, ep)
	if err != nil {
		return false, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return false, fmt.Errorf("management console returned status %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if strings.Contains(strings.ToLower(line), successMarker) {
			return true, nil
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn().Err(err).Msg("trigger response interrupted before success marker")
			}
			return false, nil
		}
	}
}

func (s *Impl) poll(
	ctx context.Context,
	settings models.RestartSettings,
	ep models.ManagementEndpoint,
	start time.Time,
	outcome *models.RestartOutcome,
) {
	maxAttempts := outcome.MaxAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		s.logger.Debug().
			Dur("interval", settings.PollInterval).
			Msg("waiting before checking whether the server finished restarting")

		if err := s.wait(ctx, settings, start); err != nil {
			s.timedOut(outcome, start, err)
			return
		}

		outcome.Attempts = attempt
		s.reporter.Report(models.RestartEvent{
			Kind:        models.EventStateCheckAttempt,
			Elapsed:     s.clock.Now().Sub(start),
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
		})

		if err := s.check(ctx, settings, ep); err != nil {
			s.logger.Debug().Err(err).Int("attempt", attempt).Msg("server not ready yet")
			continue
		}

		outcome.Status = models.OutcomeConfirmed
		outcome.Elapsed = s.clock.Now().Sub(start)
		s.reporter.Report(models.RestartEvent{
			Kind:        models.EventRestartConfirmed,
			Elapsed:     outcome.Elapsed,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
		})
		return
	}

	s.timedOut(outcome, start, nil)
}

func (s *Impl) timedOut(outcome *models.RestartOutcome, start time.Time, cause error) {
	outcome.Status = models.OutcomeTimedOut
	outcome.Elapsed = s.clock.Now().Sub(start)
	if cause != nil {
		outcome.Error = fmt.Errorf("%w: %w", ErrTimedOut, cause)
	} else {
		outcome.Error = fmt.Errorf("%w: no response after %d attempt(s)", ErrTimedOut, outcome.Attempts)
	}
	s.reporter.Report(models.RestartEvent{
		Kind:        models.EventRestartTimedOut,
		Elapsed:     outcome.Elapsed,
		Attempt:     outcome.Attempts,
		MaxAttempts: outcome.MaxAttempts,
	})
}

// wait sleeps for one poll interval in progress-interval ticks.
func (s *Impl) wait(ctx context.Context, settings models.RestartSettings, start time.Time) error {
	tick := settings.ProgressInterval
	if tick <= 0 || tick > settings.PollInterval {
		tick = settings.PollInterval
	}
	ticks := int(settings.PollInterval / tick)
	remainder := settings.PollInterval - time.Duration(ticks)*tick

	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(tick):
		}
		s.reporter.Report(models.RestartEvent{
			Kind:    models.EventWaitTick,
			Elapsed: s.clock.Now().Sub(start),
		})
	}

	if remainder > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(remainder):
		}
	}

	return nil
}

// check sends one inspect request. Any response below 400 means the
// console, and therefore the server, is up.
func (s *Impl) check(ctx context.Context, settings models.RestartSettings, ep models.ManagementEndpoint) error {
	if settings.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.AttemptTimeout)
		defer cancel()
	}

	req, err := console.NewRequest(ctx, ep)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if _, err := io.CopyN(io.Discard, resp.Body, 1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("management console returned status %d", resp.StatusCode)
	}

	return nil
}
