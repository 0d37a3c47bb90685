package claim

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalString(t *testing.T) {
	assert.Equal(t, "device", CanonicalString(tagged("the", "DT", "device", "NN")))
	assert.Equal(t, "outer casing", CanonicalString(tagged("its", "PRP$", "outer", "JJ", "casing", "NN")))
	assert.Equal(t, "heating element", CanonicalString(tagged("a", "DT", "heating", "VBG", "element", "NN")))
	assert.Equal(t, "device 's casing", CanonicalString(tagged("the", "DT", "device", "NN", "'s", "POS", "casing", "NN")))
	assert.Equal(t, "", CanonicalString(nil))
}

func TestPhraseMap_Resolve(t *testing.T) {
	m := NewPhraseMap()
	assert.Equal(t, 1, m.Resolve("control device"))
	assert.Equal(t, 1, m.Resolve("device"), "shorthand mention reuses the fuller phrase")
	assert.Equal(t, 1, m.Len(), "suffix matches are not stored")
	assert.Equal(t, 2, m.Resolve("sensor"))
	assert.Equal(t, 2, m.Resolve("cold sensor"), "longer phrase ending in a known one reuses it")
	assert.Equal(t, 3, m.Resolve("vice"), "suffix matching respects word boundaries")
	assert.Equal(t, 1, m.Resolve("control device"))

	assert.Equal(t, []string{"control device", "sensor", "vice"}, m.Keys())
	assert.Equal(t, []PhraseEntry{
		{Text: "control device", ID: 1},
		{Text: "sensor", ID: 2},
		{Text: "vice", ID: 3},
	}, m.Entries())

	id, ok := m.Lookup("sensor")
	assert.True(t, ok)
	assert.Equal(t, 2, id)
	_, ok = m.Lookup("device")
	assert.False(t, ok)

	text, ok := m.Text(3)
	assert.True(t, ok)
	assert.Equal(t, "vice", text)
	_, ok = m.Text(4)
	assert.False(t, ok)
	assert.False(t, m.Has(0))
}

func TestPhraseMap_FirstSeenKeyWins(t *testing.T) {
	m := NewPhraseMap()
	m.Resolve("first sensor")
	m.Resolve("second sensor")
	assert.Equal(t, 1, m.Resolve("sensor"))
}

func TestPhraseMap_SuffixMatchBothDirections(t *testing.T) {
	shorter := NewPhraseMap()
	shorter.Resolve("heat exchanger")
	assert.Equal(t, 1, shorter.Resolve("exchanger"), "known key ends with the new phrase")

	longer := NewPhraseMap()
	longer.Resolve("exchanger")
	assert.Equal(t, 1, longer.Resolve("heat exchanger"), "new phrase ends with the known key")

	assert.Equal(t, []string{"heat exchanger"}, shorter.Keys())
	assert.Equal(t, []string{"exchanger"}, longer.Keys())
}

func TestPhraseMap_Clone(t *testing.T) {
	m := NewPhraseMap()
	m.Resolve("blank")
	c := m.Clone()
	c.Resolve("widget")
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, c.Len())
}

func TestPhraseMap_JSONKeepsOrder(t *testing.T) {
	m := NewPhraseMap()
	m.Resolve("widget")
	m.Resolve("blank")
	m.Resolve("air \"gap\"")

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"widget":1,"blank":2,"air \"gap\"":3}`, string(data))

	var back PhraseMap
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.Entries(), back.Entries())

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"a":"x"}`), &back))
}

func TestResolvePhrases_KeyedBySpanIndex(t *testing.T) {
	toks := tagged(
		"a", "DT", "control", "NN", "device", "NN", "and", "CC",
		"the", "DT", "device", "NN",
	)
	spans := defaultGrammar.Chunk(toks)
	mapping, ids := ResolvePhrases(toks, spans)

	require.Len(t, spans, 3)
	assert.Equal(t, map[int]int{0: 1, 2: 1}, ids)
	assert.Equal(t, []string{"control device"}, mapping.Keys())
}

func TestResolvePhrases_Idempotent(t *testing.T) {
	toks := tagged(
		"a", "DT", "widget", "NN", "comprising", "VBG", "a", "DT", "blank", "NN",
		"and", "CC", "the", "DT", "heating", "VBG", "element", "NN",
		"wherein", "WRB", "the", "DT", "blank", "NN", "is", "VBZ", "cold", "JJ",
	)
	labeled1, map1, _ := LabelNounPhrases(nil, toks)
	labeled2, map2, _ := LabelNounPhrases(nil, toks)
	assert.Equal(t, labeled1, labeled2)
	assert.Equal(t, map1.Entries(), map2.Entries())
}

func TestFlatten(t *testing.T) {
	toks := tagged(
		"the", "DT", "control", "NN", "device", "NN", "comprises", "VBZ",
		"a", "DT", "sensor", "NN", ";", ":", "the", "DT", "device", "NN",
	)
	labeled, mapping, spans := LabelNounPhrases(defaultGrammar, toks)
	requireCoverage(t, spans, len(toks))

	require.Len(t, labeled, len(toks))
	for i, lt := range labeled {
		assert.Equal(t, toks[i].Word, lt.Word)
		assert.Equal(t, toks[i].Tag, lt.Tag)
		if lt.NP != 0 {
			assert.True(t, mapping.Has(lt.NP), "np %d must be in the mapping", lt.NP)
		}
	}
	nps := make([]int, len(labeled))
	for i, lt := range labeled {
		nps[i] = lt.NP
	}
	assert.Equal(t, []int{1, 1, 1, 0, 2, 2, 0, 1, 1}, nps)
}
