// Package classify routes queries to a processing path by pattern matching.
package classify

import (
	"regexp"
	"strings"
)

// Category is the routing decision for a query.
type Category string

const (
	CategoryFactual      Category = "factual"
	CategoryHowTo        Category = "howto"
	CategoryArchitecture Category = "architecture"
	CategoryCode         Category = "code"
	CategoryComplex      Category = "complex"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryFactual, CategoryHowTo, CategoryArchitecture, CategoryCode, CategoryComplex:
		return true
	}
	return false
}

// MaxIterations is the plan-execute-verify budget for the category.
// Factual queries bypass the loop entirely.
func (c Category) MaxIterations() int {
	switch c {
	case CategoryFactual:
		return 0
	case CategoryHowTo, CategoryCode:
		return 1
	case CategoryArchitecture:
		return 2
	default:
		return 4
	}
}

// MaxSteps caps how many steps a plan for this category may contain.
func (c Category) MaxSteps() int {
	switch c {
	case CategoryFactual, CategoryCode:
		return 1
	case CategoryHowTo, CategoryArchitecture:
		return 2
	default:
		return 4
	}
}

// DefaultCapability is the provider used when the category skips planning.
func (c Category) DefaultCapability() string {
	switch c {
	case CategoryArchitecture:
		return "architecture"
	case CategoryCode:
		return "code"
	default:
		return "research"
	}
}

var (
	complexPatterns = compileAll(
		`\band\s+(also\s+)?(write|generate|create|show|implement|design)`,
		`\bthen\s+(write|generate|create|show|implement|design|research)`,
		`\balso\s+(write|generate|create|show|explain|design)`,
		`\?\s*[A-Z]`,
		`\?\s*\w+.*\?`,
		`(design|architect).*\b(implement|code|template|bicep|terraform)`,
		`(explain|research|what).*\b(and|then)\s*(generate|write|create|show)`,
	)

	codePatterns = compileAll(
		`^generate\s+`,
		`^write\s+(a|an|the|me)?\s*`,
		`^create\s+(a|an|the)?\s*(script|code|template|command)`,
		`^show\s+me\s+(the\s+)?(code|script|template|command|cli)`,
		`^give\s+me\s+(the\s+)?(code|script|template|command|cli)`,
		`(bicep|terraform|arm)\s+(template|configuration|config|code)`,
		`^(bicep|terraform|arm)\s+`,
		`(cli|powershell|bash)\s+(command|script)`,
		`^code\s+(for|to)\s+`,
		`azure\s+cli\s+(to|for|command)`,
		`^implement\s+`,
		`\bpython\s+(code|script|function)`,
		`\bc#\s+(code|class|method)`,
		`\bjavascript\s+(code|function)`,
	)

	architecturePatterns = compileAll(
		`best\s+practices?\s+(for|of|in|when)`,
		`^design\s+(a|an|the)?\s*`,
		`^architect\s+`,
		`(how\s+)?should\s+i\s+design`,
		`^recommend\s+(a|an)?\s*`,
		`architecture\s+(for|of|pattern)`,
		`(security|reliability|performance|cost)\s+(considerations|recommendations|best)`,
		`waf\s+(pillar|framework|recommendation)`,
		`well.?architected`,
		`^what\s+is\s+the\s+(best|recommended)\s+(way|approach|pattern)`,
	)

	howtoPatterns = compileAll(
		`^how\s+(do|can|should)\s+i\s+`,
		`^how\s+to\s+`,
		`^steps\s+to\s+`,
		`^guide\s+(to|for|on)\s+`,
		`^tutorial\s+(on|for)\s+`,
		`^help\s+me\s+(with|to)\s+`,
		`^walk\s+me\s+through\s+`,
		`^show\s+me\s+how\s+to\s+`,
		`^i\s+want\s+to\s+`,
		`^i\s+need\s+to\s+`,
		`^what\s+are\s+the\s+steps\s+`,
	)

	factualPatterns = compileAll(
		`^what\s+(is|are)\s+`,
		`^explain\s+`,
		`^define\s+`,
		`^describe\s+`,
		`^tell\s+me\s+about\s+`,
		`^what\s+does\s+`,
		`^what\s+do\s+`,
		`^can\s+you\s+explain\s+`,
		`^what('s|\s+is)\s+the\s+(definition|meaning)\s+of`,
		`^overview\s+of\s+`,
		`^introduction\s+to\s+`,
	)
)

func compileAll(raw ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(raw))
	for _, r := range raw {
		out = append(out, regexp.MustCompile(`(?i)`+r))
	}
	return out
}

// Classifier assigns a Category to raw query text. It is a pure function of
// its input: the same text always yields the same category.
type Classifier struct{}

// New returns a Classifier.
func New() *Classifier { return &Classifier{} }

// Classify checks pattern groups in priority order: compound queries first,
// then code, architecture, howto, and factual. Text matching nothing is
// treated as complex so an ambiguous query keeps its verification budget
// rather than being under-routed to the fast path.
func (c *Classifier) Classify(text string) Category {
	text = strings.TrimSpace(text)
	if text == "" {
		return CategoryComplex
	}

	switch {
	case matchesAny(text, complexPatterns):
		return CategoryComplex
	case matchesAny(text, codePatterns):
		return CategoryCode
	case matchesAny(text, architecturePatterns):
		return CategoryArchitecture
	case matchesAny(text, howtoPatterns):
		return CategoryHowTo
	case matchesAny(text, factualPatterns):
		return CategoryFactual
	}
	return CategoryComplex
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
