package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appquota/appquota/internal/domain"
)

// flushInterval bounds how often the cycle triggers a periodic save,
// independent of the polling interval.
const flushInterval = 30 * time.Second

// ErrRuleNotFound is returned by commands addressing an unknown rule id.
var ErrRuleNotFound = errors.New("rule not found")

// Monitor owns the single in-memory AppData instance and implements
// both the enforcement cycle and the user-facing command surface.
//
// All access to the document goes through one mutex. The lock is held
// only for state reads and mutations; process enumeration, process
// termination and disk saves always run outside it.
type Monitor struct {
	procs  domain.ProcessManager
	store  domain.Store
	sink   domain.EventSink
	clock  domain.Clock
	logger *zap.Logger

	mu               sync.Mutex
	data             *domain.AppData
	lastFlush        time.Time
	intervalOverride int
}

// NewMonitor loads the persisted document, purges usage records past
// the retention window and returns a monitor ready to run cycles.
func NewMonitor(
	store domain.Store,
	procs domain.ProcessManager,
	sink domain.EventSink,
	clock domain.Clock,
	logger *zap.Logger,
) *Monitor {
	data := store.Load()
	store.PurgeOlderThan(data, clock.Now(), domain.UsageRetentionDays)

	return &Monitor{
		procs:     procs,
		store:     store,
		sink:      sink,
		clock:     clock,
		logger:    logger,
		data:      data,
		lastFlush: clock.Now(),
	}
}

// RunCycle executes one enforcement pass: snapshot rules, enumerate
// processes, match, accrue, evaluate thresholds, emit events. Safe to
// interleave with command-surface calls; never called concurrently
// with itself (the scheduler is single-goroutine).
func (m *Monitor) RunCycle(ctx context.Context) {
	m.mu.Lock()
	rules := make([]domain.Rule, 0, len(m.data.Rules))
	for _, r := range m.data.Rules {
		if r.IsEnabled {
			rules = append(rules, *r)
		}
	}
	interval := m.data.Settings.PollingIntervalSeconds
	if m.intervalOverride > 0 {
		interval = m.intervalOverride
	}
	m.mu.Unlock()

	if len(rules) > 0 {
		procs, err := m.procs.Snapshot()
		if err != nil {
			m.logger.Warn("process enumeration failed", zap.Error(err))
		} else {
			today := m.clock.Now().Format(domain.DateLayout)
			for _, rule := range rules {
				matched := MatchRule(rule, procs)
				if len(matched) == 0 {
					// No time accrues and no kill is attempted while
					// the rule has no live process.
					continue
				}
				m.enforceRule(ctx, rule, matched, today, interval)
			}
		}
	}

	m.maybeFlush()
}

// enforceRule accrues usage for one rule and applies the warning/kill
// thresholds. Matched is non-empty.
func (m *Monitor) enforceRule(ctx context.Context, rule domain.Rule, matched []domain.ProcessInfo, today string, intervalSeconds int) {
	limit := rule.LimitSeconds()
	warnAt := rule.WarningThresholdSeconds()

	var warning *domain.Event
	kill := false

	m.mu.Lock()
	if !m.ruleExistsLocked(rule.ID) {
		// Removed between the cycle's rule snapshot and now; creating
		// a record here would resurrect its cascade-deleted history.
		m.mu.Unlock()
		return
	}
	rec := m.todayRecordLocked(rule.ID, today)
	if rec.UsedSecondsToday >= limit {
		// Relaunched after an earlier kill: no further accrual,
		// terminate again.
		kill = true
	} else {
		rec.UsedSecondsToday += intervalSeconds
		if rec.UsedSecondsToday >= warnAt && !rec.WarningShown {
			rec.WarningShown = true
			warning = &domain.Event{
				Type:     domain.EventWarningTriggered,
				RuleID:   rule.ID,
				RuleName: rule.DisplayName,
				// Truncating division; a lead larger than the limit
				// can make the remainder negative here.
				RemainingMinutes: (limit - rec.UsedSecondsToday) / 60,
			}
		}
		if rec.UsedSecondsToday >= limit {
			kill = true
		}
	}
	used := rec.UsedSecondsToday
	m.mu.Unlock()

	if warning != nil {
		m.sink.Publish(*warning)
	}

	if kill {
		m.killMatched(ctx, rule, matched)
	}

	m.sink.Publish(domain.Event{
		Type:         domain.EventUsageUpdated,
		RuleID:       rule.ID,
		RuleName:     rule.DisplayName,
		UsedSeconds:  used,
		LimitSeconds: limit,
	})
}

// killMatched terminates every matched process. Failures are reported
// as events and not retried this cycle; the next cycle retries while
// the rule still matches and remains over budget.
func (m *Monitor) killMatched(ctx context.Context, rule domain.Rule, matched []domain.ProcessInfo) {
	for _, p := range matched {
		if ctx.Err() != nil {
			return
		}
		if err := m.procs.Terminate(p.PID); err != nil {
			m.logger.Warn("failed to terminate process",
				zap.String("rule", rule.DisplayName),
				zap.String("process", p.Name),
				zap.Int32("pid", p.PID),
				zap.Error(err))
			m.sink.Publish(domain.Event{
				Type:        domain.EventAppKillFailed,
				RuleID:      rule.ID,
				RuleName:    rule.DisplayName,
				ProcessName: p.Name,
				Reason:      err.Error(),
			})
		} else {
			m.logger.Info("terminated process over daily limit",
				zap.String("rule", rule.DisplayName),
				zap.String("process", p.Name),
				zap.Int32("pid", p.PID))
			m.sink.Publish(domain.Event{
				Type:        domain.EventAppKilled,
				RuleID:      rule.ID,
				RuleName:    rule.DisplayName,
				ProcessName: p.Name,
			})
		}
	}
}

// ruleExistsLocked reports whether a rule id is still present.
// Caller holds the lock.
func (m *Monitor) ruleExistsLocked(id string) bool {
	for _, r := range m.data.Rules {
		if r.ID == id {
			return true
		}
	}
	return false
}

// todayRecordLocked looks up the rule's record for the given day,
// creating a zeroed one on first reference. Caller holds the lock.
func (m *Monitor) todayRecordLocked(ruleID, date string) *domain.UsageRecord {
	for _, rec := range m.data.UsageRecords {
		if rec.RuleID == ruleID && rec.Date == date {
			return rec
		}
	}
	rec := &domain.UsageRecord{RuleID: ruleID, Date: date}
	m.data.UsageRecords = append(m.data.UsageRecords, rec)
	return rec
}

// maybeFlush saves the document at most once per flushInterval. The
// save runs on its own goroutine with a deep clone; the cycle never
// blocks on disk and overlapping saves are last-write-wins.
func (m *Monitor) maybeFlush() {
	now := m.clock.Now()

	m.mu.Lock()
	if now.Sub(m.lastFlush) < flushInterval {
		m.mu.Unlock()
		return
	}
	m.lastFlush = now
	clone := m.data.Clone()
	m.mu.Unlock()

	go func() {
		if err := m.store.Save(clone); err != nil {
			m.logger.Warn("periodic save failed", zap.Error(err))
		}
	}()
}

// OverridePollingInterval makes cycles credit the given number of
// seconds instead of the persisted polling interval, so accrued time
// tracks wall time when the daemon runs at an overridden cadence.
func (m *Monitor) OverridePollingInterval(seconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intervalOverride = seconds
}

func validateRule(processNameOrPath string, dailyLimitMinutes, warningMinutesBefore int) error {
	if processNameOrPath == "" {
		return fmt.Errorf("process name or path must not be empty")
	}
	if dailyLimitMinutes <= 0 {
		return fmt.Errorf("daily limit must be positive, got %d", dailyLimitMinutes)
	}
	if warningMinutesBefore < 0 {
		return fmt.Errorf("warning lead must not be negative, got %d", warningMinutesBefore)
	}
	return nil
}

// AddRule creates and stores a new rule. An empty display name is
// derived from the pattern.
func (m *Monitor) AddRule(processNameOrPath, displayName string, dailyLimitMinutes, warningMinutesBefore int) (domain.Rule, error) {
	if err := validateRule(processNameOrPath, dailyLimitMinutes, warningMinutesBefore); err != nil {
		return domain.Rule{}, err
	}
	if displayName == "" {
		displayName = domain.DeriveDisplayName(processNameOrPath)
	}

	rule := &domain.Rule{
		ID:                   uuid.New().String(),
		ProcessNameOrPath:    processNameOrPath,
		DisplayName:          displayName,
		DailyLimitMinutes:    dailyLimitMinutes,
		WarningMinutesBefore: warningMinutesBefore,
		IsEnabled:            true,
	}

	m.mu.Lock()
	m.data.Rules = append(m.data.Rules, rule)
	clone := m.data.Clone()
	m.mu.Unlock()

	m.persist(clone)
	return *rule, nil
}

// UpdateRule replaces the stored rule with the same id. The changed
// fields apply from the next cycle's rule snapshot.
func (m *Monitor) UpdateRule(rule domain.Rule) error {
	if err := validateRule(rule.ProcessNameOrPath, rule.DailyLimitMinutes, rule.WarningMinutesBefore); err != nil {
		return err
	}

	m.mu.Lock()
	found := false
	for i, r := range m.data.Rules {
		if r.ID == rule.ID {
			c := rule
			m.data.Rules[i] = &c
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return fmt.Errorf("update rule %s: %w", rule.ID, ErrRuleNotFound)
	}
	clone := m.data.Clone()
	m.mu.Unlock()

	m.persist(clone)
	return nil
}

// RemoveRule deletes a rule and cascades to its usage records.
func (m *Monitor) RemoveRule(id string) error {
	m.mu.Lock()
	found := false
	rules := m.data.Rules[:0]
	for _, r := range m.data.Rules {
		if r.ID == id {
			found = true
			continue
		}
		rules = append(rules, r)
	}
	if !found {
		m.mu.Unlock()
		return fmt.Errorf("remove rule %s: %w", id, ErrRuleNotFound)
	}
	m.data.Rules = rules

	records := m.data.UsageRecords[:0]
	for _, rec := range m.data.UsageRecords {
		if rec.RuleID != id {
			records = append(records, rec)
		}
	}
	m.data.UsageRecords = records
	clone := m.data.Clone()
	m.mu.Unlock()

	m.persist(clone)
	return nil
}

// SetRuleEnabled toggles a rule. Disabled rules are skipped entirely
// by the enforcement cycle.
func (m *Monitor) SetRuleEnabled(id string, enabled bool) error {
	m.mu.Lock()
	found := false
	for _, r := range m.data.Rules {
		if r.ID == id {
			r.IsEnabled = enabled
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return fmt.Errorf("toggle rule %s: %w", id, ErrRuleNotFound)
	}
	clone := m.data.Clone()
	m.mu.Unlock()

	m.persist(clone)
	return nil
}

// Rules returns a copy of the current rule set.
func (m *Monitor) Rules() []domain.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Rule, len(m.data.Rules))
	for i, r := range m.data.Rules {
		out[i] = *r
	}
	return out
}

// Settings returns the current persisted settings.
func (m *Monitor) Settings() domain.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Settings
}

// UpdateSettings replaces the persisted settings.
func (m *Monitor) UpdateSettings(s domain.Settings) {
	if s.PollingIntervalSeconds <= 0 {
		s.PollingIntervalSeconds = domain.DefaultPollingIntervalSeconds
	}

	m.mu.Lock()
	m.data.Settings = s
	clone := m.data.Clone()
	m.mu.Unlock()

	m.persist(clone)
}

// TodayUsage returns (creating if absent) the rule's usage record for
// today, for display purposes.
func (m *Monitor) TodayUsage(ruleID string) (domain.UsageRecord, error) {
	today := m.clock.Now().Format(domain.DateLayout)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ruleExistsLocked(ruleID) {
		return domain.UsageRecord{}, fmt.Errorf("usage for rule %s: %w", ruleID, ErrRuleNotFound)
	}
	return *m.todayRecordLocked(ruleID, today), nil
}

// Save writes the current document synchronously (explicit save
// request from the UI layer, and final save on shutdown).
func (m *Monitor) Save() {
	m.mu.Lock()
	clone := m.data.Clone()
	m.mu.Unlock()

	m.persist(clone)
}

// persist writes a snapshot, swallowing failures: the monitor's own
// operations never fail because persistence failed.
func (m *Monitor) persist(clone *domain.AppData) {
	if err := m.store.Save(clone); err != nil {
		m.logger.Warn("save failed, in-memory state remains authoritative", zap.Error(err))
	}
}
