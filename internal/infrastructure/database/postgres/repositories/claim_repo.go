// Package repositories holds the PostgreSQL implementations of the domain
// repository interfaces.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/internal/infrastructure/database/postgres"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

const claimColumns = `id, set_id, number, category, dependency, text, raw_text,
	words, features, phrases, source, text_hash, created_at`

type postgresClaimRepo struct {
	conn    *postgres.Connection
	tx      *sql.Tx
	log     logging.Logger
	metrics *prometheus.ClaimMetrics
}

var (
	_ claim.Repository      = (*postgresClaimRepo)(nil)
	_ claim.BatchRepository = (*postgresClaimRepo)(nil)
)

// NewPostgresClaimRepo returns a claim.Repository over conn. metrics may be nil.
func NewPostgresClaimRepo(conn *postgres.Connection, log logging.Logger, metrics *prometheus.ClaimMetrics) claim.Repository {
	return &postgresClaimRepo{conn: conn, log: logging.OrNop(log), metrics: metrics}
}

func (r *postgresClaimRepo) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

func (r *postgresClaimRepo) observe(op string, start time.Time) {
	prometheus.RecordDBQuery(r.metrics, "postgres", op, time.Since(start))
}

func (r *postgresClaimRepo) Save(ctx context.Context, rec *claim.Record) error {
	defer r.observe("insert", time.Now())

	words, err := json.Marshal(rec.Words)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal claim words")
	}
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal claim features")
	}
	phrases, err := json.Marshal(rec.Phrases)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal claim phrases")
	}

	query := `INSERT INTO claims (` + claimColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = r.executor().ExecContext(ctx, query,
		rec.ID, rec.SetID, rec.Number, string(rec.Category), rec.Dependency, rec.Text, rec.RawText,
		words, features, phrases, rec.Source, rec.TextHash, rec.CreatedAt,
	)
	if err != nil {
		r.log.Error("insert claim", logging.String("id", rec.ID.String()), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert claim")
	}
	return nil
}

func (r *postgresClaimRepo) FindByID(ctx context.Context, id uuid.UUID) (*claim.Record, error) {
	defer r.observe("select", time.Now())
	row := r.executor().QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	return scanClaim(row)
}

// FindByHash returns the most recent record with the given fingerprint.
func (r *postgresClaimRepo) FindByHash(ctx context.Context, hash string) (*claim.Record, error) {
	defer r.observe("select", time.Now())
	row := r.executor().QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE text_hash = $1 ORDER BY created_at DESC LIMIT 1`, hash)
	return scanClaim(row)
}

// FindBySet returns the claims of one claimset ordered by claim number.
func (r *postgresClaimRepo) FindBySet(ctx context.Context, setID uuid.UUID) ([]*claim.Record, error) {
	defer r.observe("select", time.Now())
	rows, err := r.executor().QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE set_id = $1 ORDER BY number NULLS LAST, created_at`, setID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query claimset")
	}
	defer rows.Close()
	return collectClaims(rows)
}

func (r *postgresClaimRepo) List(ctx context.Context, limit, offset int) ([]*claim.Record, int64, error) {
	defer r.observe("select", time.Now())
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := r.executor().QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count claims")
	}

	rows, err := r.executor().QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list claims")
	}
	defer rows.Close()
	recs, err := collectClaims(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (r *postgresClaimRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.observe("delete", time.Now())
	res, err := r.executor().ExecContext(ctx, `DELETE FROM claims WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete claim")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return claim.ErrClaimNotFound.WithDetail(id.String())
	}
	return nil
}

// SaveAll stores recs in one transaction.
func (r *postgresClaimRepo) SaveAll(ctx context.Context, recs []*claim.Record) error {
	defer r.observe("insert_batch", time.Now())
	return SaveAll(ctx, r.conn, r.log, recs)
}

// SaveAll inserts every record in one transaction.
func SaveAll(ctx context.Context, conn *postgres.Connection, log logging.Logger, recs []*claim.Record) error {
	return conn.WithTransaction(ctx, func(tx *sql.Tx) error {
		txRepo := &postgresClaimRepo{conn: conn, tx: tx, log: logging.OrNop(log)}
		for _, rec := range recs {
			if err := txRepo.Save(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func collectClaims(rows *sql.Rows) ([]*claim.Record, error) {
	var out []*claim.Record
	for rows.Next() {
		rec, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate claims")
	}
	return out, nil
}

func scanClaim(row scanner) (*claim.Record, error) {
	var (
		rec                      claim.Record
		setID                    uuid.NullUUID
		number                   sql.NullInt64
		category                 string
		words, features, phrases []byte
	)
	err := row.Scan(&rec.ID, &setID, &number, &category, &rec.Dependency, &rec.Text, &rec.RawText,
		&words, &features, &phrases, &rec.Source, &rec.TextHash, &rec.CreatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, claim.ErrClaimNotFound
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan claim")
	}
	if setID.Valid {
		id := setID.UUID
		rec.SetID = &id
	}
	if number.Valid {
		n := int(number.Int64)
		rec.Number = &n
	}
	rec.Category = claim.Category(category)
	if err := unmarshalColumn(words, &rec.Words); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(features, &rec.Features); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(phrases, &rec.Phrases); err != nil {
		return nil, err
	}
	return &rec, nil
}

func unmarshalColumn(data []byte, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode claim column")
	}
	return nil
}
