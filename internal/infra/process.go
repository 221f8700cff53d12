// Package infra implements infrastructure concerns (process, storage, launchd).
package infra

import (
	"github.com/shirou/gopsutil/v3/process"

	"github.com/appquota/appquota/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// Snapshot enumerates running processes. A process whose name cannot
// be read (exited mid-enumeration, access denied) is skipped; a
// missing executable path is tolerated because name matching still
// applies.
func (pm *ProcessManagerImpl) Snapshot() ([]domain.ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	infos := make([]domain.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			continue
		}

		path, err := p.Exe()
		if err != nil {
			path = ""
		}

		infos = append(infos, domain.ProcessInfo{
			PID:  p.Pid,
			Name: name,
			Path: path,
		})
	}

	return infos, nil
}

// Terminate kills a process by PID.
func (pm *ProcessManagerImpl) Terminate(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
