package claim

import (
	"strconv"
	"strings"
)

// Extraction holds everything the rule table derives from raw claim text.
type Extraction struct {
	Number     int
	HasNumber  bool
	Text       string
	Category   Category
	Dependency int
	// DependencyRule names the rule that set Dependency, empty when none matched.
	DependencyRule string
}

// ExtractNumber finds the first claim-number token. When found, cleaned is the
// text after it with surrounding whitespace trimmed; otherwise cleaned is text
// unchanged and ok is false.
func ExtractNumber(text string) (number int, ok bool, cleaned string) {
	loc := claimNumberRule.Pattern.FindStringIndex(text)
	if loc == nil {
		return 0, false, text
	}
	n, err := strconv.Atoi(text[loc[0] : loc[1]-1])
	if err != nil {
		// Digit runs too long for int are not claim numbers.
		return 0, false, text
	}
	return n, true, strings.TrimSpace(text[loc[1]:])
}

// DetectCategory classifies text as a method claim or, by default, a system claim.
func DetectCategory(text string) Category {
	if methodCategoryRule.Pattern.MatchString(text) {
		return CategoryMethod
	}
	return CategorySystem
}

// DetectDependency returns the claim number text depends on, 1 for references
// to preceding claims and 0 for independent claims.
func DetectDependency(text string) int {
	dep, _ := detectDependency(text)
	return dep
}

func detectDependency(text string) (int, string) {
	if m := explicitDependencyRule.Pattern.FindString(text); m != "" {
		if n, err := strconv.Atoi(digitsPattern.FindString(m)); err == nil {
			return n, RuleExplicitDependency
		}
	}
	if precedingDependencyRule.Pattern.MatchString(text) {
		return 1, RulePrecedingDependency
	}
	return 0, ""
}

// Extract runs the number rule on raw text, then category and dependency
// detection on the cleaned text.
func Extract(raw string) Extraction {
	number, ok, cleaned := ExtractNumber(raw)
	dep, rule := detectDependency(cleaned)
	return Extraction{
		Number:         number,
		HasNumber:      ok,
		Text:           cleaned,
		Category:       DetectCategory(cleaned),
		Dependency:     dep,
		DependencyRule: rule,
	}
}
