// Package models contains the data structures used throughout jmx-restart.
package models

import "time"

// Config holds the complete configuration for a restart run.
type Config struct {
	Restart     RestartSettings
	WOL         *WOLConfig         // nil if not configured
	SSHRelaunch *SSHRelaunchConfig // nil if not configured
	Telegram    *TelegramConfig    // nil if not configured
}

// TriggerPolicy decides what happens when the trigger response never
// contains the success marker.
type TriggerPolicy string

const (
	// TriggerPolicyLenient proceeds to polling anyway.
	TriggerPolicyLenient TriggerPolicy = "lenient"
	// TriggerPolicyStrict fails the run with a trigger failure.
	TriggerPolicyStrict TriggerPolicy = "strict"
)

// Default management console paths for JBoss AS.
const (
	DefaultTriggerPath = "/jmx-console/HtmlAdaptor?action=invokeOpByName&" +
		"name=jboss.system:type=Server&methodName=exit&argType=int&arg0=10"
	DefaultInspectPath = "/jmx-console/HtmlAdaptor?action=inspectMBean&" +
		"name=jboss.system:type=Server"
)

// RestartSettings holds everything needed for one restart attempt.
// It is never mutated once loaded.
type RestartSettings struct {
	Host     string
	Port     string
	Username string // empty disables authentication
	Password string

	Timeout          time.Duration // total budget for confirming the restart
	PollInterval     time.Duration // wait between liveness checks
	ProgressInterval time.Duration // granularity of progress ticks during a wait
	AttemptTimeout   time.Duration // bound on a single liveness check
	TriggerTimeout   time.Duration // bound on the trigger request

	TriggerPolicy TriggerPolicy
	TriggerPath   string
	InspectPath   string
}

// MaxAttempts returns how many liveness checks fit into the timeout.
func (s RestartSettings) MaxAttempts() int {
	if s.PollInterval <= 0 {
		return 0
	}
	return int(s.Timeout / s.PollInterval)
}
