package claim

// Feature is one clause of a claim: Text == claim text[Start:End].
type Feature struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// SegmentFeatures splits text into clauses ending at each delimiter match.
// Text after the last delimiter, or the whole text when there is none, forms
// a final segment, so the segments always concatenate back to text.
// Whitespace-only text is one segment; empty text yields none.
func SegmentFeatures(text string) []Feature {
	if text == "" {
		return nil
	}
	matches := featureDelimiterRule.Pattern.FindAllStringIndex(text, -1)
	features := make([]Feature, 0, len(matches)+1)
	start := 0
	for _, m := range matches {
		end := m[1]
		if end <= start {
			continue
		}
		features = append(features, Feature{Start: start, End: end, Text: text[start:end]})
		start = end
	}
	if start < len(text) {
		features = append(features, Feature{Start: start, End: len(text), Text: text[start:]})
	}
	return features
}
