package claim

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		number  int
		ok      bool
		cleaned string
	}{
		{"leading number", "1. A method of making a widget.", 1, true, "A method of making a widget."},
		{"no space after period", "12.The system.", 12, true, "The system."},
		{"surrounding whitespace", "  7.   A device  ", 7, true, "A device"},
		{"first match only", "3. A device as in 2. above", 3, true, "A device as in 2. above"},
		{"no number", "A method of making a widget", 0, false, "A method of making a widget"},
		{"digits without period", "claim 3 is here", 0, false, "claim 3 is here"},
		{"empty", "", 0, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok, cleaned := ExtractNumber(tt.text)
			assert.Equal(t, tt.number, n)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.cleaned, cleaned)
		})
	}
}

func TestExtractNumber_PropertyForAnyPrefix(t *testing.T) {
	for _, n := range []int{1, 2, 9, 10, 42, 137} {
		text := strconv.Itoa(n) + ". The apparatus of claim 1."
		got, ok, cleaned := ExtractNumber(text)
		require.True(t, ok)
		assert.Equal(t, n, got)
		assert.Equal(t, "The apparatus of claim 1.", cleaned)
	}
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		text string
		want Category
	}{
		{"A method of making a widget, comprising: heating a blank.", CategoryMethod},
		{"The process for curing a resin.", CategoryMethod},
		{"An improved heating method of treating steel.", CategoryMethod},
		{"A computer-implemented method for routing packets.", CategoryMethod},
		{"A system comprising a sensor.", CategorySystem},
		{"The system of claim 1, wherein the device comprises a sensor.", CategorySystem},
		{"", CategorySystem},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectCategory(tt.text), tt.text)
	}
}

func TestDetectDependency(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"single claim", "The system of claim 1, wherein the device comprises a sensor.", 1},
		{"range takes first number", "The method according to claims 2 to 5, wherein the blank is steel.", 2},
		{"alternative", "The device as claimed in claim 3 or claim 4.", 3},
		{"capitalised", "The device of Claim 6.", 6},
		{"preceding claims", "A device according to any one of the preceding claims, wherein it is red.", 1},
		{"previous claim", "The device of the previous claim.", 1},
		{"independent", "A widget comprising a blank.", 0},
		{"claimed is not claim", "The device claimed here.", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDependency(tt.text))
		})
	}
}

func TestExtract(t *testing.T) {
	ext := Extract("2. The system of claim 1, wherein the device comprises a sensor.")
	assert.True(t, ext.HasNumber)
	assert.Equal(t, 2, ext.Number)
	assert.Equal(t, "The system of claim 1, wherein the device comprises a sensor.", ext.Text)
	assert.Equal(t, CategorySystem, ext.Category)
	assert.Equal(t, 1, ext.Dependency)
	assert.Equal(t, RuleExplicitDependency, ext.DependencyRule)

	ext = Extract("3. The system of any preceding claim.")
	assert.Equal(t, RulePrecedingDependency, ext.DependencyRule)
	assert.Equal(t, 1, ext.Dependency)

	ext = Extract("A method of making a widget.")
	assert.False(t, ext.HasNumber)
	assert.Equal(t, CategoryMethod, ext.Category)
	assert.Empty(t, ext.DependencyRule)
}

func TestRules(t *testing.T) {
	rules := Rules()
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
		assert.NotNil(t, r.Pattern)
		assert.NotEmpty(t, r.Capture)
	}
	assert.Equal(t, []string{
		RuleClaimNumber,
		RuleMethodCategory,
		RuleExplicitDependency,
		RulePrecedingDependency,
		RuleFeatureDelimiter,
	}, names)

	rules[0].Name = "mutated"
	again, ok := LookupRule(RuleClaimNumber)
	require.True(t, ok)
	assert.Equal(t, RuleClaimNumber, again.Name)
	assert.Equal(t, CaptureLeadingInteger, again.Capture)

	_, ok = LookupRule("nope")
	assert.False(t, ok)
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "method", CategoryMethod.String())
	assert.True(t, CategorySystem.IsValid())
	assert.False(t, Category("use").IsValid())
}
