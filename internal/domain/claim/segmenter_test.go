package claim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinFeatures(fs []Feature) string {
	var sb strings.Builder
	for _, f := range fs {
		sb.WriteString(f.Text)
	}
	return sb.String()
}

func TestSegmentFeatures_MethodClaim(t *testing.T) {
	text := "A method of making a widget, comprising: heating a blank; and cooling the blank."
	fs := SegmentFeatures(text)
	require.Len(t, fs, 3)
	assert.Equal(t, "A method of making a widget, comprising: ", fs[0].Text)
	assert.Equal(t, "heating a blank; and", fs[1].Text)
	assert.Equal(t, " cooling the blank.", fs[2].Text)
	assert.Equal(t, text, joinFeatures(fs))
}

func TestSegmentFeatures_CommaBeforeLineBreak(t *testing.T) {
	text := "An apparatus comprising a frame,\nand a wheel."
	fs := SegmentFeatures(text)
	require.Len(t, fs, 2)
	assert.Equal(t, "An apparatus comprising a frame,\n", fs[0].Text)
	assert.Equal(t, "and a wheel.", fs[1].Text)
}

func TestSegmentFeatures_NoDelimiter(t *testing.T) {
	fs := SegmentFeatures("a widget with no punctuation")
	require.Len(t, fs, 1)
	assert.Equal(t, Feature{Start: 0, End: 28, Text: "a widget with no punctuation"}, fs[0])
}

func TestSegmentFeatures_TrailingText(t *testing.T) {
	fs := SegmentFeatures("a frame: a wheel")
	require.Len(t, fs, 2)
	assert.Equal(t, "a frame: ", fs[0].Text)
	assert.Equal(t, Feature{Start: 9, End: 16, Text: "a wheel"}, fs[1])
}

func TestSegmentFeatures_Blank(t *testing.T) {
	assert.Empty(t, SegmentFeatures(""))

	for _, text := range []string{"   ", " \n\t"} {
		fs := SegmentFeatures(text)
		require.Len(t, fs, 1, "%q", text)
		assert.Equal(t, Feature{Start: 0, End: len(text), Text: text}, fs[0])
		assert.Equal(t, text, joinFeatures(fs))
	}
}

func TestSegmentFeatures_Partition(t *testing.T) {
	texts := []string{
		"The system of claim 1, wherein the device comprises a sensor.",
		"A device comprising: a housing; a lid; and\na hinge coupling the lid to the housing.",
		"A kit comprising:\n  a first part,\nand a second part; and instructions.  ",
		"x;;;y",
		"ends with colon:",
	}
	for _, text := range texts {
		fs := SegmentFeatures(text)
		require.NotEmpty(t, fs, text)
		assert.Equal(t, text, joinFeatures(fs), "segments must reproduce the text")
		prev := 0
		for _, f := range fs {
			assert.Equal(t, prev, f.Start)
			assert.GreaterOrEqual(t, f.End, f.Start)
			assert.Equal(t, text[f.Start:f.End], f.Text)
			prev = f.End
		}
		assert.Equal(t, len(text), prev)
	}
}
