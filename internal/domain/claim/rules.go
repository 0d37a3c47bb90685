package claim

import (
	"regexp"
)

// Capture describes how a rule's match is turned into a value.
type Capture string

const (
	// CaptureLeadingInteger parses the match minus its trailing period.
	CaptureLeadingInteger Capture = "leading_integer"
	// CapturePresence only reports whether the rule matched.
	CapturePresence Capture = "presence"
	// CaptureFirstInteger parses the first digit run inside the match.
	CaptureFirstInteger Capture = "first_integer"
	// CaptureConstantOne yields 1 on a match.
	CaptureConstantOne Capture = "constant_one"
	// CaptureBoundary uses the end offset of every match as a boundary.
	CaptureBoundary Capture = "boundary"
)

// Rule is one named extraction pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Capture Capture
	// Doc describes what a match means.
	Doc string
}

// Rule names.
const (
	RuleClaimNumber         = "claim_number"
	RuleMethodCategory      = "method_category"
	RuleExplicitDependency  = "explicit_dependency"
	RulePrecedingDependency = "preceding_dependency"
	RuleFeatureDelimiter    = "feature_delimiter"
)

var (
	claimNumberRule = Rule{
		Name:    RuleClaimNumber,
		Pattern: regexp.MustCompile(`\d+\.`),
		Capture: CaptureLeadingInteger,
		Doc:     "first run of digits followed by a period",
	}
	methodCategoryRule = Rule{
		Name:    RuleMethodCategory,
		Pattern: regexp.MustCompile(`(A|An|The)\s([\w-]+\s)*(method|process)\s(of|for)?`),
		Capture: CapturePresence,
		Doc:     "article, optional modifiers, then method or process",
	}
	explicitDependencyRule = Rule{
		Name:    RuleExplicitDependency,
		Pattern: regexp.MustCompile(`(of|to|with|in)?\s(C|c)laims?\s\d+((\sto\s\d+)|(\sor\s(C|c)laim\s\d+))?(,\swherein)?`),
		Capture: CaptureFirstInteger,
		Doc:     "reference to claim N, a range or an alternative; the first number wins",
	}
	precedingDependencyRule = Rule{
		Name:    RulePrecedingDependency,
		Pattern: regexp.MustCompile(`\s(preceding|previous)\s(C|c)laims?(,\swherein)?`),
		Capture: CaptureConstantOne,
		Doc:     "reference to any preceding claim, recorded as claim 1",
	}
	featureDelimiterRule = Rule{
		Name:    RuleFeatureDelimiter,
		Pattern: regexp.MustCompile(`(;\s*(and)?)|(,.?(and)?\n)|(:\s*)|(\.\s*$)`),
		Capture: CaptureBoundary,
		Doc:     "semicolon, comma before a line break, colon or the closing period",
	}

	ruleTable = []Rule{
		claimNumberRule,
		methodCategoryRule,
		explicitDependencyRule,
		precedingDependencyRule,
		featureDelimiterRule,
	}

	digitsPattern = regexp.MustCompile(`\d+`)
)

// Rules returns a copy of the extraction rule table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(ruleTable))
	copy(out, ruleTable)
	return out
}

// LookupRule returns the rule registered under name.
func LookupRule(name string) (Rule, bool) {
	for _, r := range ruleTable {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}
