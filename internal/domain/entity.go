// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"path/filepath"
	"strings"
)

// DateLayout is the calendar-day key format used by usage records.
const DateLayout = "2006-01-02"

const (
	// DefaultPollingIntervalSeconds is used when settings carry no interval.
	DefaultPollingIntervalSeconds = 5

	// UsageRetentionDays is how long usage records are kept after their day.
	UsageRetentionDays = 7
)

// Rule is a per-application enforcement rule: which processes it covers
// and how many minutes per day they may run.
type Rule struct {
	ID                   string `json:"id"`
	ProcessNameOrPath    string `json:"processNameOrPath"`
	DisplayName          string `json:"displayName"`
	DailyLimitMinutes    int    `json:"dailyLimitMinutes"`
	WarningMinutesBefore int    `json:"warningMinutesBefore"`
	IsEnabled            bool   `json:"isEnabled"`
}

// LimitSeconds returns the daily budget in seconds.
func (r Rule) LimitSeconds() int {
	return r.DailyLimitMinutes * 60
}

// WarningThresholdSeconds returns the usage level at which the warning
// fires. The arithmetic is intentionally unclamped: a warning lead
// larger than the limit yields a negative threshold and the warning
// fires on the first accrual. Validating the lead against the limit is
// a UI concern.
func (r Rule) WarningThresholdSeconds() int {
	return (r.DailyLimitMinutes - r.WarningMinutesBefore) * 60
}

// DeriveDisplayName returns the default label for a pattern: the file
// name without its extension. Patterns may carry either separator
// style regardless of the host platform.
func DeriveDisplayName(processNameOrPath string) string {
	base := processNameOrPath
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// UsageRecord accumulates one rule's usage for one calendar day.
// Identity is (RuleID, Date); at most one record exists per pair.
type UsageRecord struct {
	RuleID           string `json:"ruleId"`
	Date             string `json:"date"`
	UsedSecondsToday int    `json:"usedSecondsToday"`
	WarningShown     bool   `json:"warningShown"`
}

// Settings are the persisted user preferences. The StartAtLogin JSON
// tag keeps the legacy document field name for compatibility.
type Settings struct {
	StartAtLogin           bool `json:"startWithWindows"`
	StartMinimized         bool `json:"startMinimized"`
	PollingIntervalSeconds int  `json:"pollingIntervalSeconds"`
}

// AppData is the single authoritative document: rules, usage ledger
// and settings. One instance exists per running monitor; all access
// is serialized by the monitor's lock.
type AppData struct {
	Rules        []*Rule        `json:"rules"`
	UsageRecords []*UsageRecord `json:"usageRecords"`
	Settings     Settings       `json:"settings"`
}

// NewAppData returns an empty document with default settings.
func NewAppData() *AppData {
	return &AppData{
		Rules:        []*Rule{},
		UsageRecords: []*UsageRecord{},
		Settings: Settings{
			PollingIntervalSeconds: DefaultPollingIntervalSeconds,
		},
	}
}

// Clone returns a deep copy, safe to hand to a save goroutine while
// the original keeps mutating under the lock.
func (d *AppData) Clone() *AppData {
	out := &AppData{
		Rules:        make([]*Rule, len(d.Rules)),
		UsageRecords: make([]*UsageRecord, len(d.UsageRecords)),
		Settings:     d.Settings,
	}
	for i, r := range d.Rules {
		c := *r
		out.Rules[i] = &c
	}
	for i, u := range d.UsageRecords {
		c := *u
		out.UsageRecords[i] = &c
	}
	return out
}

// ProcessInfo is the snapshot of one running process taken during
// enumeration. Path may be empty when the executable path could not
// be read; name matching still applies.
type ProcessInfo struct {
	PID  int32
	Name string
	Path string
}
