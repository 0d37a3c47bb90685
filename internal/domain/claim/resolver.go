package claim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// excludedCanonicalTags are dropped when building a phrase's lookup key.
var excludedCanonicalTags = map[string]struct{}{
	TagDeterminer:        {},
	TagPossessivePronoun: {},
}

// CanonicalString joins the words of a phrase with single spaces, skipping
// determiners and possessive pronouns.
func CanonicalString(tokens []TaggedToken) string {
	words := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, skip := excludedCanonicalTags[t.Tag]; skip {
			continue
		}
		words = append(words, t.Word)
	}
	return strings.Join(words, " ")
}

// endsWithWords reports whether s ends with suffix on a word boundary.
func endsWithWords(s, suffix string) bool {
	if suffix == "" || len(suffix) > len(s) {
		return false
	}
	if s == suffix {
		return true
	}
	return strings.HasSuffix(s, " "+suffix)
}

// ─────────────────────────────────────────────────────────────────────────────
// PhraseMap
// ─────────────────────────────────────────────────────────────────────────────

// PhraseEntry is one canonical phrase and its ID.
type PhraseEntry struct {
	Text string `json:"text"`
	ID   int    `json:"id"`
}

// PhraseMap maps canonical phrase strings to IDs, remembering insertion order.
// IDs start at 1.
type PhraseMap struct {
	keys []string
	ids  map[string]int
}

// NewPhraseMap returns an empty map.
func NewPhraseMap() *PhraseMap {
	return &PhraseMap{ids: make(map[string]int)}
}

// Len returns the number of distinct keys.
func (m *PhraseMap) Len() int { return len(m.keys) }

// Lookup returns the ID stored for an exact key.
func (m *PhraseMap) Lookup(key string) (int, bool) {
	id, ok := m.ids[key]
	return id, ok
}

// Has reports whether id was assigned.
func (m *PhraseMap) Has(id int) bool {
	return id >= 1 && id <= len(m.keys)
}

// Resolve returns the ID for canonical. An exact key wins; otherwise the first
// key (in insertion order) that ends with canonical, or that canonical ends
// with, on a word boundary lends its ID without canonical being stored;
// otherwise canonical is stored under the next ID.
func (m *PhraseMap) Resolve(canonical string) int {
	if id, ok := m.ids[canonical]; ok {
		return id
	}
	for _, key := range m.keys {
		if endsWithWords(key, canonical) || endsWithWords(canonical, key) {
			return m.ids[key]
		}
	}
	id := len(m.keys) + 1
	m.keys = append(m.keys, canonical)
	m.ids[canonical] = id
	return id
}

// Keys returns the keys in insertion order.
func (m *PhraseMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Entries returns the keys and IDs in insertion order.
func (m *PhraseMap) Entries() []PhraseEntry {
	out := make([]PhraseEntry, len(m.keys))
	for i, k := range m.keys {
		out[i] = PhraseEntry{Text: k, ID: m.ids[k]}
	}
	return out
}

// Text returns the canonical string stored under id.
func (m *PhraseMap) Text(id int) (string, bool) {
	if !m.Has(id) {
		return "", false
	}
	return m.keys[id-1], true
}

// Clone returns an independent copy.
func (m *PhraseMap) Clone() *PhraseMap {
	c := NewPhraseMap()
	for _, k := range m.keys {
		c.keys = append(c.keys, k)
		c.ids[k] = m.ids[k]
	}
	return c
}

// MarshalJSON renders the map as a JSON object with keys in insertion order.
func (m *PhraseMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		fmt.Fprintf(&buf, ":%d", m.ids[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object written by MarshalJSON, keeping key order.
func (m *PhraseMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("phrase map: expected object")
	}
	fresh := NewPhraseMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("phrase map: expected string key")
		}
		var id int
		if err := dec.Decode(&id); err != nil {
			return fmt.Errorf("phrase map: key %q: %w", key, err)
		}
		if _, dup := fresh.ids[key]; !dup {
			fresh.keys = append(fresh.keys, key)
		}
		fresh.ids[key] = id
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = *fresh
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Resolution and flattening
// ─────────────────────────────────────────────────────────────────────────────

// ResolvePhrases assigns an ID to every phrase span. The returned map is keyed
// by the span's index in spans.
func ResolvePhrases(tokens []TaggedToken, spans []Span) (*PhraseMap, map[int]int) {
	mapping := NewPhraseMap()
	spanIDs := make(map[int]int)
	for i, s := range spans {
		if s.Kind != SpanPhrase {
			continue
		}
		spanIDs[i] = mapping.Resolve(CanonicalString(tokens[s.Start:s.End]))
	}
	return mapping, spanIDs
}

// Flatten walks spans once and labels every token with its span's phrase ID,
// or 0 outside phrases.
func Flatten(tokens []TaggedToken, spans []Span, spanIDs map[int]int) []LabeledToken {
	out := make([]LabeledToken, 0, len(tokens))
	for i, s := range spans {
		id := spanIDs[i]
		for _, t := range tokens[s.Start:s.End] {
			out = append(out, LabeledToken{Word: t.Word, Tag: t.Tag, NP: id})
		}
	}
	return out
}

// LabelNounPhrases chunks tokens with g, resolves phrase identities and
// flattens the result.
func LabelNounPhrases(g *Grammar, tokens []TaggedToken) ([]LabeledToken, *PhraseMap, []Span) {
	if g == nil {
		g = defaultGrammar
	}
	spans := g.Chunk(tokens)
	mapping, spanIDs := ResolvePhrases(tokens, spans)
	return Flatten(tokens, spans, spanIDs), mapping, spans
}
