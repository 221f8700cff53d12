package domain

import "time"

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// Snapshot enumerates currently running processes. Processes whose
	// metadata cannot be read are silently excluded.
	Snapshot() ([]ProcessInfo, error)

	// Terminate requests OS-level termination of a process.
	Terminate(pid int32) error
}

// Store is the persistence gateway for the AppData document.
type Store interface {
	// Load reads the persisted document. It never fails visibly: a
	// missing or corrupt document yields an empty default AppData.
	Load() *AppData

	// Save writes the document. Best effort; callers log and continue
	// on error, in-memory state stays the source of truth.
	Save(data *AppData) error

	// PurgeOlderThan drops usage records whose day is more than the
	// given number of days before today. In-place filter.
	PurgeOlderThan(data *AppData, today time.Time, days int)
}

// Clock provides time information for the enforcement cycle.
// This interface allows time to be mocked in tests.
type Clock interface {
	Now() time.Time
}

// RealClock provides actual system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}
