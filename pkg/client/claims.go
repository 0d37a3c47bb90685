package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClaimsClient calls the /api/v1/claims endpoints.
type ClaimsClient struct {
	client *Client
}

// ─────────────────────────────────────────────────────────────────────────────
// Types
// ─────────────────────────────────────────────────────────────────────────────

// Word is one token of an annotated claim. NP is 0 outside noun phrases.
type Word struct {
	ID   int    `json:"id"`
	Word string `json:"word"`
	POS  string `json:"pos"`
	NP   int    `json:"np"`
}

// UnmarshalJSON accepts np as an integer or "".
func (w *Word) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   int             `json:"id"`
		Word string          `json:"word"`
		POS  string          `json:"pos"`
		NP   json.RawMessage `json:"np"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = Word{ID: raw.ID, Word: raw.Word, POS: raw.POS}
	np := strings.TrimSpace(string(raw.NP))
	if np == "" || np == `""` || np == "null" {
		return nil
	}
	n, err := strconv.Atoi(np)
	if err != nil {
		return fmt.Errorf("word %d: np must be an integer or \"\": %w", raw.ID, err)
	}
	w.NP = n
	return nil
}

type Feature struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

type NounPhrase struct {
	Text string `json:"text"`
	ID   int    `json:"id"`
}

// Claim is a persisted, annotated claim.
type Claim struct {
	ID         uuid.UUID    `json:"id"`
	SetID      *uuid.UUID   `json:"set_id,omitempty"`
	Number     *int         `json:"number,omitempty"`
	Category   string       `json:"category"`
	Dependency int          `json:"dependency"`
	Text       string       `json:"text"`
	RawText    string       `json:"raw_text"`
	Words      []Word       `json:"words"`
	Features   []Feature    `json:"features"`
	Phrases    []NounPhrase `json:"phrases"`
	Source     string       `json:"source,omitempty"`
	TextHash   string       `json:"text_hash"`
	CreatedAt  time.Time    `json:"created_at"`
}

// View is the word-level document of a claim.
type View struct {
	Claim struct {
		Words []Word `json:"words"`
	} `json:"claim"`
}

type AnnotateRequest struct {
	Text       string `json:"text"`
	Number     *int   `json:"number,omitempty"`
	Dependency *int   `json:"dependency,omitempty"`
	Source     string `json:"source,omitempty"`
}

type AnnotateResult struct {
	Claim      *Claim   `json:"record"`
	View       View     `json:"view"`
	Cached     bool     `json:"cached"`
	ArchiveKey string   `json:"archive_key,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// AnnotateSetRequest carries a claims block in Text or pre-split Claims.
type AnnotateSetRequest struct {
	Text   string   `json:"text,omitempty"`
	Claims []string `json:"claims,omitempty"`
	Source string   `json:"source,omitempty"`
}

type DependencyTree struct {
	Roots    []int         `json:"roots"`
	Children map[int][]int `json:"children"`
	Depth    int           `json:"depth"`
	Orphans  []int         `json:"orphans,omitempty"`
}

type AnnotateSetResult struct {
	SetID       uuid.UUID       `json:"set_id"`
	Claims      []*Claim        `json:"records"`
	Tree        *DependencyTree `json:"tree"`
	Links       int             `json:"links"`
	WordCount   int             `json:"word_count"`
	ReadingTime float64         `json:"reading_time_minutes"`
	ArchiveKey  string          `json:"archive_key,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
}

type SearchHit struct {
	ID       uuid.UUID `json:"id"`
	Number   *int      `json:"number,omitempty"`
	Category string    `json:"category"`
	Text     string    `json:"text"`
	Score    float64   `json:"score"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Calls
// ─────────────────────────────────────────────────────────────────────────────

// Annotate parses and stores one claim. Re-submitting the same text and
// overrides returns the stored claim with Cached set.
func (cc *ClaimsClient) Annotate(ctx context.Context, req AnnotateRequest) (*AnnotateResult, error) {
	var res AnnotateResult
	if err := cc.client.post(ctx, "/api/v1/claims/annotate", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AnnotateSet parses and stores a claim set and links its dependencies.
func (cc *ClaimsClient) AnnotateSet(ctx context.Context, req AnnotateSetRequest) (*AnnotateSetResult, error) {
	var res AnnotateSetResult
	if err := cc.client.post(ctx, "/api/v1/claimsets/annotate", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (cc *ClaimsClient) Get(ctx context.Context, id uuid.UUID) (*Claim, error) {
	var res Claim
	if err := cc.client.get(ctx, "/api/v1/claims/"+id.String(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (cc *ClaimsClient) View(ctx context.Context, id uuid.UUID) (*View, error) {
	var res View
	if err := cc.client.get(ctx, "/api/v1/claims/"+id.String()+"/view", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Search finds claims containing phrase. A limit of 0 uses the server
// default.
func (cc *ClaimsClient) Search(ctx context.Context, phrase string, limit int) ([]SearchHit, error) {
	q := url.Values{"q": {phrase}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var hits []SearchHit
	if err := cc.client.get(ctx, "/api/v1/claims/search?"+q.Encode(), &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// Dependents lists the claims that depend on id, directly or transitively.
func (cc *ClaimsClient) Dependents(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := cc.client.get(ctx, "/api/v1/claims/"+id.String()+"/dependents", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Mentioning lists claims whose noun phrases include phrase.
func (cc *ClaimsClient) Mentioning(ctx context.Context, phrase string, limit int) ([]uuid.UUID, error) {
	q := url.Values{"np": {phrase}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var ids []uuid.UUID
	if err := cc.client.get(ctx, "/api/v1/claims/mentioning?"+q.Encode(), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
