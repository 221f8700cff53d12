package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/appquota/appquota/internal/domain"
)

func proc(pid int32, name, path string) domain.ProcessInfo {
	return domain.ProcessInfo{PID: pid, Name: name, Path: path}
}

// TestMatchRule_NameCaseInsensitive verifies bare-name matching ignores case
func TestMatchRule_NameCaseInsensitive(t *testing.T) {
	rule := domain.Rule{ProcessNameOrPath: "Firefox"}
	procs := []domain.ProcessInfo{
		proc(100, "firefox", "/usr/bin/firefox"),
		proc(101, "FIREFOX", ""),
		proc(102, "chrome", "/usr/bin/chrome"),
	}

	matched := MatchRule(rule, procs)

	assert.Len(t, matched, 2)
	assert.Equal(t, int32(100), matched[0].PID)
	assert.Equal(t, int32(101), matched[1].PID)
}

// TestMatchRule_ExtensionAgnostic verifies the .exe suffix is ignored
// on both the pattern and the candidate name
func TestMatchRule_ExtensionAgnostic(t *testing.T) {
	procs := []domain.ProcessInfo{
		proc(200, "Steam.exe", `C:\Program Files\Steam\Steam.exe`),
		proc(201, "steam", "/usr/bin/steam"),
	}

	patternWithSuffix := domain.Rule{ProcessNameOrPath: "steam.exe"}
	assert.Len(t, MatchRule(patternWithSuffix, procs), 2)

	patternBare := domain.Rule{ProcessNameOrPath: "steam"}
	assert.Len(t, MatchRule(patternBare, procs), 2)
}

// TestMatchRule_PathBranchRequiresSeparator verifies a bare-name
// pattern never matches by executable path
func TestMatchRule_PathBranchRequiresSeparator(t *testing.T) {
	rule := domain.Rule{ProcessNameOrPath: "games"}
	procs := []domain.ProcessInfo{
		proc(300, "launcher", "/opt/games"),
	}

	assert.Empty(t, MatchRule(rule, procs))
}

// TestMatchRule_FullPathExact verifies path patterns compare the full
// executable path, case-insensitively, without suffix stripping
func TestMatchRule_FullPathExact(t *testing.T) {
	rule := domain.Rule{ProcessNameOrPath: `C:\Games\Epic\Game.exe`}
	procs := []domain.ProcessInfo{
		proc(400, "helper", `c:\games\epic\game.exe`),
		proc(401, "helper", `c:\games\epic\game`),
		proc(402, "helper", `c:\games\other\game.exe`),
	}

	matched := MatchRule(rule, procs)

	assert.Len(t, matched, 1)
	assert.Equal(t, int32(400), matched[0].PID)
}

// TestMatchRule_PathPatternMissingProcPath verifies a process whose
// executable path could not be read is excluded from the path branch
func TestMatchRule_PathPatternMissingProcPath(t *testing.T) {
	rule := domain.Rule{ProcessNameOrPath: "/usr/bin/vlc"}
	procs := []domain.ProcessInfo{
		proc(500, "vlc", ""), // path unreadable, name does not equal the pattern
	}

	assert.Empty(t, MatchRule(rule, procs))
}

// TestMatchRule_EmptySnapshot verifies an empty result is returned,
// not an error condition
func TestMatchRule_EmptySnapshot(t *testing.T) {
	rule := domain.Rule{ProcessNameOrPath: "anything"}

	assert.Empty(t, MatchRule(rule, nil))
	assert.Empty(t, MatchRule(rule, []domain.ProcessInfo{}))
}
