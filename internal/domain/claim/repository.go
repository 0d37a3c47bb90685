package claim

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists annotated claims.
type Repository interface {
	Save(ctx context.Context, r *Record) error
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)
	FindByHash(ctx context.Context, hash string) (*Record, error)
	FindBySet(ctx context.Context, setID uuid.UUID) ([]*Record, error)
	List(ctx context.Context, limit, offset int) ([]*Record, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GraphRepository projects claims into a property graph: claims, the claims
// they depend on, and the noun phrases they mention.
type GraphRepository interface {
	UpsertClaim(ctx context.Context, r *Record) error
	LinkDependencies(ctx context.Context, setID uuid.UUID) (int, error)
	FindDependents(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	FindClaimsMentioning(ctx context.Context, phrase string, limit int) ([]uuid.UUID, error)
}

// SearchHit is one phrase search result.
type SearchHit struct {
	ID       uuid.UUID `json:"id"`
	Number   *int      `json:"number,omitempty"`
	Category Category  `json:"category"`
	Text     string    `json:"text"`
	Score    float64   `json:"score"`
}

// SearchIndex indexes claims for full-text phrase search.
type SearchIndex interface {
	Index(ctx context.Context, r *Record) error
	SearchPhrase(ctx context.Context, phrase string, limit int) ([]SearchHit, error)
}

// Archive stores the serialized view document of a claim.
type Archive interface {
	Put(ctx context.Context, r *Record) (string, error)
	Get(ctx context.Context, id uuid.UUID) (*View, error)
}

// BatchRepository is implemented by repositories that can store a whole
// claimset atomically.
type BatchRepository interface {
	SaveAll(ctx context.Context, recs []*Record) error
}

// SetArchive is implemented by archives that can store a claimset as one
// document.
type SetArchive interface {
	PutSet(ctx context.Context, setID uuid.UUID, recs []*Record) (string, error)
}
