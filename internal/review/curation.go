// Package review holds the pure index-set arithmetic behind candidate
// curation and recommendation. Everything here operates on plain values so
// the merge semantics can be exercised without a database.
package review

import (
	"sort"
	"strings"

	"github.com/baodantech/design-review-backend/internal/types"
)

// DefaultCheckReason is stored when a check result arrives without one.
const DefaultCheckReason = "automated check failed"

// CheckInput is one raw per-candidate check result as submitted by a
// caller. Pass is loosely typed because upstream check tooling reports
// booleans, numbers and strings interchangeably.
type CheckInput struct {
	Index  int    `json:"index"`
	Pass   any    `json:"pass"`
	Reason string `json:"reason"`
}

// SanitizeIndices drops negative and out-of-range values, dedupes and
// sorts. length < 0 skips the upper-bound check.
func SanitizeIndices(indices []int, length int) []int {
	seen := make(map[int]bool, len(indices))
	out := make([]int, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 {
			continue
		}
		if length >= 0 && idx >= length {
			continue
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func UnionIndices(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, idx := range a {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	for _, idx := range b {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

func SubtractIndices(a, b []int) []int {
	remove := make(map[int]bool, len(b))
	for _, idx := range b {
		remove[idx] = true
	}
	out := make([]int, 0, len(a))
	for _, idx := range a {
		if !remove[idx] {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

func ContainsIndex(indices []int, idx int) bool {
	for _, v := range indices {
		if v == idx {
			return true
		}
	}
	return false
}

// NormalizePass accepts boolean-like values: true, "true", "1", "yes",
// "pass", 1, 1.0. Anything else is a failure.
func NormalizePass(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "pass", "passed":
			return true
		}
		return false
	case int:
		return t == 1
	case int64:
		return t == 1
	case float64:
		return t == 1
	default:
		return false
	}
}

// NormalizeChecks converts raw inputs to the stored result shape, applying
// the default reason and dropping negative indices. Duplicate indices keep
// the last entry.
func NormalizeChecks(inputs []CheckInput) map[int]types.CheckResult {
	out := make(map[int]types.CheckResult, len(inputs))
	for _, in := range inputs {
		if in.Index < 0 {
			continue
		}
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			reason = DefaultCheckReason
		}
		out[in.Index] = types.CheckResult{Pass: NormalizePass(in.Pass), Reason: reason}
	}
	return out
}

// MergeChecks overlays an incoming (possibly delta) result set over what is
// already stored.
func MergeChecks(existing, incoming map[int]types.CheckResult) map[int]types.CheckResult {
	out := make(map[int]types.CheckResult, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// DiscardList returns the indices whose check result is not a pass.
func DiscardList(checks map[int]types.CheckResult) []int {
	out := make([]int, 0, len(checks))
	for idx, res := range checks {
		if !res.Pass {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// ApplyCheckRound unions this round's discard list into the existing
// excluded set. The update is additive only: indices excluded before this
// round stay excluded, and an index that passed this round can never be
// newly added by it.
func ApplyCheckRound(excluded []int, incoming map[int]types.CheckResult, candidateCount int) []int {
	toAdd := SanitizeIndices(DiscardList(incoming), candidateCount)
	passed := make([]int, 0, len(incoming))
	for idx, res := range incoming {
		if res.Pass {
			passed = append(passed, idx)
		}
	}
	toAdd = SubtractIndices(toAdd, passed)
	return UnionIndices(excluded, toAdd)
}

// ExcludedAfterReset removes exactly the indices that the just-cleared
// check results had discarded, leaving independently excluded indices in
// place. A set-difference, not a wholesale clear.
func ExcludedAfterReset(excluded []int, clearedChecks map[int]types.CheckResult) []int {
	return SubtractIndices(excluded, DiscardList(clearedChecks))
}

// ExcludedFromReferable converts the legacy "referable indices" schema to
// the canonical excluded representation: excluded = all positions minus
// referable. An empty or absent referable list means nothing is excluded.
func ExcludedFromReferable(referable []int, total int) []int {
	if len(referable) == 0 {
		return []int{}
	}
	keep := make(map[int]bool, len(referable))
	for _, idx := range referable {
		keep[idx] = true
	}
	out := make([]int, 0, total)
	for i := 0; i < total; i++ {
		if !keep[i] {
			out = append(out, i)
		}
	}
	return out
}
