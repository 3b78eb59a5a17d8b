// Package scansession caches scan results in Redis between a scan and the
// merges it drives
package scansession

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	clerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const keyPrefix = "clover:scan:"

// Repository stores scan sessions with a TTL
type Repository struct {
	client *redis.Client
	ttl    time.Duration
	logger ectologger.Logger
}

func NewRepository(client *redis.Client, ttl time.Duration, logger ectologger.Logger) *Repository {
	return &Repository{client: client, ttl: ttl, logger: logger}
}

func key(id string) string {
	return keyPrefix + id
}

// Save writes the session, replacing any earlier copy
func (r *Repository) Save(ctx context.Context, session *models.ScanSession) error {
	ctx, span := tracing.StartSpan(ctx, "scansession.Repository.Save", tracing.ScanID(session.ID), tracing.Table(session.Table))
	defer span.End()

	if err := r.client.SetJSON(ctx, key(session.ID), session, r.ttl); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to save scan session")
		return clerrors.WrapExternalIO(err, "save scan session")
	}
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"scan_id": session.ID,
		"table":   session.Table,
		"groups":  len(session.Groups),
		"ttl":     r.ttl,
	}).Info("Saved scan session")
	return nil
}

// Get loads a session. Expired and unknown sessions are NotFound.
func (r *Repository) Get(ctx context.Context, id string) (*models.ScanSession, error) {
	ctx, span := tracing.StartSpan(ctx, "scansession.Repository.Get", tracing.ScanID(id))
	defer span.End()

	var session models.ScanSession
	if err := r.client.GetJSON(ctx, key(id), &session); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, clerrors.NewNotFoundError("scan session %q not found or expired", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load scan session")
		return nil, clerrors.WrapExternalIO(err, "load scan session")
	}
	return &session, nil
}

// Delete drops a session once its merges are done
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "scansession.Repository.Delete", tracing.ScanID(id))
	defer span.End()

	if err := r.client.Del(ctx, key(id)); err != nil {
		return clerrors.WrapExternalIO(err, "delete scan session")
	}
	return nil
}
