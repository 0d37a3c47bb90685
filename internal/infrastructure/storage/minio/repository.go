package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

var ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "archived claim not found")

const contentTypeJSON = "application/json"

// ArchiveRepository stores each claim's view document as
// <prefix><claim id>.json in the archive bucket.
type ArchiveRepository struct {
	client *Client
	logger logging.Logger
}

func NewArchiveRepository(client *Client, log logging.Logger) *ArchiveRepository {
	return &ArchiveRepository{client: client, logger: logging.OrNop(log)}
}

// ObjectKey is the key under which the view of id is stored.
func (r *ArchiveRepository) ObjectKey(id uuid.UUID) string {
	return r.client.Prefix() + id.String() + ".json"
}

func (r *ArchiveRepository) setKey(setID uuid.UUID) string {
	return r.client.Prefix() + "sets/" + setID.String() + ".json"
}

// Put uploads the view of rec and returns its object key.
func (r *ArchiveRepository) Put(ctx context.Context, rec *claim.Record) (string, error) {
	if rec == nil {
		return "", errors.InvalidParam("claim record is required")
	}
	data, err := json.Marshal(rec.View())
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal claim view")
	}

	meta := map[string]string{
		"claim-id":   rec.ID.String(),
		"category":   rec.Category.String(),
		"dependency": strconv.Itoa(rec.Dependency),
	}
	if rec.Number != nil {
		meta["number"] = strconv.Itoa(*rec.Number)
	}
	key := r.ObjectKey(rec.ID)
	if err := r.upload(ctx, key, data, meta); err != nil {
		return "", err
	}
	r.logger.Debug("claim archived", logging.String("key", key), logging.Int("bytes", len(data)))
	return key, nil
}

// PutSet uploads every record of a claimset as one JSON array of records.
func (r *ArchiveRepository) PutSet(ctx context.Context, setID uuid.UUID, recs []*claim.Record) (string, error) {
	data, err := json.Marshal(recs)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal claimset")
	}
	key := r.setKey(setID)
	if err := r.upload(ctx, key, data, map[string]string{
		"set-id": setID.String(),
		"claims": strconv.Itoa(len(recs)),
	}); err != nil {
		return "", err
	}
	return key, nil
}

func (r *ArchiveRepository) upload(ctx context.Context, key string, data []byte, meta map[string]string) error {
	api, err := r.client.objectAPI()
	if err != nil {
		return err
	}
	_, err = api.PutObject(ctx, r.client.Bucket(), key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentTypeJSON,
		UserMetadata: meta,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "archive upload failed")
	}
	return nil
}

// Get downloads and decodes the archived view of id.
func (r *ArchiveRepository) Get(ctx context.Context, id uuid.UUID) (*claim.View, error) {
	data, err := r.download(ctx, r.ObjectKey(id))
	if err != nil {
		return nil, err
	}
	var v claim.View
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode archived view")
	}
	return &v, nil
}

func (r *ArchiveRepository) download(ctx context.Context, key string) ([]byte, error) {
	api, err := r.client.objectAPI()
	if err != nil {
		return nil, err
	}
	obj, err := api.GetObject(ctx, r.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapObjectError(err, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapObjectError(err, key)
	}
	return data, nil
}

// Exists reports whether a view of id has been archived.
func (r *ArchiveRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	api, err := r.client.objectAPI()
	if err != nil {
		return false, err
	}
	_, err = api.StatObject(ctx, r.client.Bucket(), r.ObjectKey(id), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeStorageError, "archive stat failed")
}

func (r *ArchiveRepository) Delete(ctx context.Context, id uuid.UUID) error {
	api, err := r.client.objectAPI()
	if err != nil {
		return err
	}
	if err := api.RemoveObject(ctx, r.client.Bucket(), r.ObjectKey(id), minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "archive delete failed")
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func mapObjectError(err error, key string) error {
	if isNoSuchKey(err) {
		return ErrObjectNotFound.WithDetail(key)
	}
	return errors.Wrap(err, errors.ErrCodeStorageError, "archive download failed")
}

var (
	_ claim.Archive    = (*ArchiveRepository)(nil)
	_ claim.SetArchive = (*ArchiveRepository)(nil)
)
