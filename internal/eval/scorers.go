package eval

import (
	"strings"
	"time"

	"answerd/internal/classify"
)

// RoutingScore is 1.0 when the classifier routed the prompt to the expected
// category, 0.0 otherwise. Scenarios without a category expectation score 1.0.
func RoutingScore(s Scenario, got classify.Category) float64 {
	if s.Category == "" {
		return 1.0
	}
	if classify.Category(s.Category) == got {
		return 1.0
	}
	return 0.0
}

// ToolSelectionScore compares the capabilities a plan used against the
// scenario's expectation. Full credit for all expected tools present; a
// partial match earns half credit plus the matched fraction of the rest; no
// overlap scores zero.
func ToolSelectionScore(s Scenario, used []string) float64 {
	if len(s.ExpectedTools) == 0 {
		return 1.0
	}
	usedSet := make(map[string]bool, len(used))
	for _, u := range used {
		usedSet[strings.ToLower(u)] = true
	}
	matched := 0
	for _, want := range s.ExpectedTools {
		if usedSet[strings.ToLower(want)] {
			matched++
		}
	}
	if matched == 0 {
		return 0.0
	}
	ratio := float64(matched) / float64(len(s.ExpectedTools))
	if ratio >= 1.0 {
		return 1.0
	}
	return 0.5 + 0.5*ratio
}

// KeywordCoverage is the fraction of expected keywords present in the answer,
// case-insensitively. Scenarios without keywords score 1.0.
func KeywordCoverage(s Scenario, answer string) float64 {
	if len(s.Keywords) == 0 {
		return 1.0
	}
	lower := strings.ToLower(answer)
	found := 0
	for _, kw := range s.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			found++
		}
	}
	return float64(found) / float64(len(s.Keywords))
}

// PerformanceScore is 1.0 when the query finished within the scenario's
// duration target, decaying proportionally when it overran. Scenarios without
// a target score 1.0.
func PerformanceScore(s Scenario, took time.Duration) float64 {
	target := time.Duration(s.MaxDuration)
	if target <= 0 || took <= target {
		return 1.0
	}
	return float64(target) / float64(took)
}
