package models

import (
	"fmt"
	"net/url"
	"time"
)

// ManagementEndpoint is a resolved console URL plus its authorization header.
type ManagementEndpoint struct {
	URL           *url.URL
	Authorization string // empty means no Authorization header
}

// OutcomeStatus is the terminal state of a restart attempt.
type OutcomeStatus string

const (
	OutcomeConfirmed     OutcomeStatus = "confirmed"
	OutcomeTimedOut      OutcomeStatus = "timed_out"
	OutcomeTriggerFailed OutcomeStatus = "trigger_failed"
)

// RestartOutcome holds the result of a restart operation.
type RestartOutcome struct {
	Status          OutcomeStatus
	Elapsed         time.Duration
	Attempts        int
	MaxAttempts     int
	TriggerAccepted bool // success marker seen in the trigger response
	Error           error
}

// Confirmed reports whether the server came back online.
func (o *RestartOutcome) Confirmed() bool {
	return o.Status == OutcomeConfirmed
}

// Message returns the operator-facing summary of the outcome.
func (o *RestartOutcome) Message() string {
	switch o.Status {
	case OutcomeConfirmed:
		return fmt.Sprintf("server restarted successfully in %ds", int(o.Elapsed.Seconds()))
	case OutcomeTimedOut:
		return fmt.Sprintf("could not confirm restart after %d attempt(s) in %ds, consider increasing restart.timeout_seconds",
			o.Attempts, int(o.Elapsed.Seconds()))
	case OutcomeTriggerFailed:
		return "could not reach the management console to trigger restart, check host/port/credentials"
	default:
		return "unknown restart outcome"
	}
}

// EventKind identifies a progress event emitted during a restart.
type EventKind string

const (
	EventRestartTriggered  EventKind = "restart_triggered"
	EventWaitTick          EventKind = "wait_tick"
	EventStateCheckAttempt EventKind = "state_check_attempt"
	EventRestartConfirmed  EventKind = "restart_confirmed"
	EventRestartTimedOut   EventKind = "restart_timed_out"
)

// RestartEvent is a progress notification from the orchestrator.
type RestartEvent struct {
	Kind        EventKind
	Elapsed     time.Duration
	Attempt     int // set for state_check_attempt
	MaxAttempts int
}
