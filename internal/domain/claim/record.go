package claim

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Record is the stored form of an annotated claim.
type Record struct {
	ID         uuid.UUID     `json:"id"`
	SetID      *uuid.UUID    `json:"set_id,omitempty"`
	Number     *int          `json:"number,omitempty"`
	Category   Category      `json:"category"`
	Dependency int           `json:"dependency"`
	Text       string        `json:"text"`
	RawText    string        `json:"raw_text"`
	Words      []WordRecord  `json:"words"`
	Features   []Feature     `json:"features"`
	Phrases    []PhraseEntry `json:"phrases"`
	Source     string        `json:"source,omitempty"`
	TextHash   string        `json:"text_hash"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewRecord snapshots c under a fresh ID. The text hash covers the raw text
// and any supplied overrides.
func NewRecord(c *Claim, source string, number, dependency *int) *Record {
	r := &Record{
		ID:         uuid.New(),
		Category:   c.Category(),
		Dependency: c.Dependency(),
		Text:       c.Text(),
		RawText:    c.RawText(),
		Words:      c.View().Claim.Words,
		Features:   c.Features(),
		Phrases:    c.NounPhrases(),
		Source:     source,
		TextHash:   Fingerprint(c.RawText(), number, dependency),
		CreatedAt:  time.Now().UTC(),
	}
	if n, ok := c.Number(); ok {
		r.Number = &n
	}
	return r
}

// View rebuilds the per-token output document.
func (r *Record) View() View {
	return View{Claim: ViewBody{Words: append([]WordRecord(nil), r.Words...)}}
}

func (r *Record) IsIndependent() bool { return r.Dependency == 0 }

// Fingerprint is a hex SHA-256 over text and the optional overrides. Equal
// inputs always give equal fingerprints.
func Fingerprint(text string, number, dependency *int) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	if number != nil {
		h.Write([]byte("n=" + strconv.Itoa(*number)))
	}
	h.Write([]byte{0})
	if dependency != nil {
		h.Write([]byte("d=" + strconv.Itoa(*dependency)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
