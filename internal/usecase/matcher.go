// Package usecase contains application business logic.
package usecase

import (
	"strings"

	"github.com/appquota/appquota/internal/domain"
)

// exeSuffix is the Windows executable suffix. Name matching is
// extension-agnostic, so the suffix is stripped from both the pattern
// and the candidate short name; on Unix this is a no-op.
const exeSuffix = ".exe"

// MatchRule returns the running processes that satisfy the rule's
// pattern. The matcher is stateless and is re-run from scratch every
// cycle. An empty result means the rule is currently inactive, never
// an error.
func MatchRule(rule domain.Rule, procs []domain.ProcessInfo) []domain.ProcessInfo {
	pattern := strings.ToLower(rule.ProcessNameOrPath)

	// The path branch is only attempted for patterns that look like a
	// full executable path. No suffix stripping there: the comparison
	// is an exact lower-cased path equality.
	byPath := strings.ContainsAny(pattern, `/\`)
	namePattern := strings.TrimSuffix(pattern, exeSuffix)

	var matched []domain.ProcessInfo
	for _, p := range procs {
		short := strings.TrimSuffix(strings.ToLower(p.Name), exeSuffix)
		if short == namePattern {
			matched = append(matched, p)
			continue
		}
		if byPath && p.Path != "" && strings.ToLower(p.Path) == pattern {
			matched = append(matched, p)
		}
	}
	return matched
}
