package domain

// EventType identifies a monitor notification.
type EventType string

const (
	// EventWarningTriggered fires once per rule per day when usage
	// crosses the warning threshold.
	EventWarningTriggered EventType = "warning_triggered"

	// EventAppKilled fires after a matched process was terminated.
	EventAppKilled EventType = "app_killed"

	// EventAppKillFailed fires when termination was attempted but
	// failed; the user has to close the process manually.
	EventAppKillFailed EventType = "app_kill_failed"

	// EventUsageUpdated fires once per rule per cycle whenever a
	// matching process was observed.
	EventUsageUpdated EventType = "usage_updated"
)

// Event is a fire-and-forget notification from the enforcement cycle
// to the presentation layer. Events for one rule within one cycle are
// published in order: warning, kills, usage update.
type Event struct {
	Type     EventType
	RuleID   string
	RuleName string

	// ProcessName is set on kill and kill-failure events.
	ProcessName string

	// RemainingMinutes is set on warning events. May be zero or
	// negative when the warning lead is misconfigured.
	RemainingMinutes int

	// UsedSeconds and LimitSeconds are set on usage update events.
	UsedSeconds  int
	LimitSeconds int

	// Reason carries the human-readable error on kill failures.
	Reason string
}

// EventSink consumes monitor events. Publish must not block: the
// enforcement cycle never waits on the presentation layer.
type EventSink interface {
	Publish(Event)
}
