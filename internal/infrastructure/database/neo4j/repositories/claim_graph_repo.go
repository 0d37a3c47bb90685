// Package repositories projects annotated claims into Neo4j.
package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/ClaimLens/internal/domain/claim"
	driver "github.com/turtacn/ClaimLens/internal/infrastructure/database/neo4j"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

const defaultMentionLimit = 50

const upsertClaimCypher = `
MERGE (c:Claim {id: $id})
SET c.number = $number,
    c.category = $category,
    c.dependency = $dependency,
    c.set_id = $set_id,
    c.text_hash = $text_hash
WITH c
OPTIONAL MATCH (c)-[old:MENTIONS]->(:NounPhrase)
DELETE old
WITH DISTINCT c
UNWIND $phrases AS phrase
MERGE (np:NounPhrase {text: phrase.text})
MERGE (c)-[m:MENTIONS]->(np)
SET m.np = phrase.np`

const linkDependenciesCypher = `
MATCH (c:Claim {set_id: $set_id})
WHERE c.dependency > 0
MATCH (p:Claim {set_id: $set_id, number: c.dependency})
MERGE (c)-[:DEPENDS_ON]->(p)
RETURN count(*) AS links`

const findDependentsCypher = `
MATCH (d:Claim)-[:DEPENDS_ON*1..]->(:Claim {id: $id})
RETURN DISTINCT d.id AS id, d.number AS number
ORDER BY number`

const findMentioningCypher = `
MATCH (c:Claim)-[:MENTIONS]->(:NounPhrase {text: $phrase})
RETURN c.id AS id
ORDER BY c.id
LIMIT $limit`

type ClaimGraphRepo struct {
	exec driver.Executor
	log  logging.Logger
}

func NewClaimGraphRepo(exec driver.Executor, log logging.Logger) *ClaimGraphRepo {
	return &ClaimGraphRepo{exec: exec, log: logging.OrNop(log)}
}

// UpsertClaim writes the claim node and replaces its MENTIONS edges.
func (r *ClaimGraphRepo) UpsertClaim(ctx context.Context, rec *claim.Record) error {
	if rec == nil {
		return errors.InvalidParam("claim record is required")
	}
	params := map[string]any{
		"id":         rec.ID.String(),
		"number":     nil,
		"category":   rec.Category.String(),
		"dependency": int64(rec.Dependency),
		"set_id":     nil,
		"text_hash":  rec.TextHash,
		"phrases":    phraseRows(rec.Phrases),
	}
	if rec.Number != nil {
		params["number"] = int64(*rec.Number)
	}
	if rec.SetID != nil {
		params["set_id"] = rec.SetID.String()
	}

	_, err := r.exec.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, upsertClaimCypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return err
	}
	r.log.Debug("claim projected", logging.String("id", rec.ID.String()), logging.Int("phrases", len(rec.Phrases)))
	return nil
}

// LinkDependencies connects every dependent claim of a set to the claim it
// references and returns the number of DEPENDS_ON edges matched.
func (r *ClaimGraphRepo) LinkDependencies(ctx context.Context, setID uuid.UUID) (int, error) {
	out, err := r.exec.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, linkDependenciesCypher, map[string]any{"set_id": setID.String()})
		if err != nil {
			return nil, err
		}
		return driver.ExtractSingleRecord(ctx, res, func(rec *neo4j.Record) (int64, error) {
			v, _, err := neo4j.GetRecordValue[int64](rec, "links")
			return v, err
		})
	})
	if err != nil {
		return 0, err
	}
	return int(out.(int64)), nil
}

// FindDependents returns every claim that depends on id, directly or
// through a chain, ordered by claim number.
func (r *ClaimGraphRepo) FindDependents(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return r.collectIDs(ctx, findDependentsCypher, map[string]any{"id": id.String()})
}

func (r *ClaimGraphRepo) FindClaimsMentioning(ctx context.Context, phrase string, limit int) ([]uuid.UUID, error) {
	if phrase == "" {
		return nil, errors.InvalidParam("phrase is required")
	}
	if limit <= 0 {
		limit = defaultMentionLimit
	}
	return r.collectIDs(ctx, findMentioningCypher, map[string]any{"phrase": phrase, "limit": int64(limit)})
}

func (r *ClaimGraphRepo) collectIDs(ctx context.Context, cypher string, params map[string]any) ([]uuid.UUID, error) {
	out, err := r.exec.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, res, recordID)
	})
	if err != nil {
		return nil, err
	}
	ids, _ := out.([]uuid.UUID)
	return ids, nil
}

func recordID(rec *neo4j.Record) (uuid.UUID, error) {
	raw, _, err := neo4j.GetRecordValue[string](rec, "id")
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("claim node id %q: %w", raw, err)
	}
	return id, nil
}

func phraseRows(phrases []claim.PhraseEntry) []map[string]any {
	rows := make([]map[string]any, 0, len(phrases))
	for _, p := range phrases {
		rows = append(rows, map[string]any{"text": p.Text, "np": int64(p.ID)})
	}
	return rows
}

var _ claim.GraphRepository = (*ClaimGraphRepo)(nil)
