package realtime

import (
	"context"
	"time"

	"github.com/flowstate/agency/internal/domain/realtime"
	"github.com/flowstate/agency/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultDedupTTL is how long an ingested event id is remembered
const DefaultDedupTTL = 10 * time.Minute

// IngestResult reports what happened to an ingested event
type IngestResult struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// IngestService accepts invalidation events from the persistence collaborator and fans them out
type IngestService struct {
	publisher Publisher
	dedup     shared.IdempotencyStore
	ttl       time.Duration
	logger    *zap.Logger
}

// NewIngestService creates the service. A nil dedup store disables duplicate suppression.
func NewIngestService(publisher Publisher, dedup shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) *IngestService {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{publisher: publisher, dedup: dedup, ttl: ttl, logger: logger}
}

// Ingest validates evt and publishes it. Redelivered event ids are acknowledged without republishing.
func (s *IngestService) Ingest(ctx context.Context, evt realtime.InvalidationEvent) (*IngestResult, error) {
	if err := evt.Validate(); err != nil {
		return nil, err
	}

	result := &IngestResult{EventID: evt.EventID.String()}
	if s.dedup != nil {
		fresh, err := s.dedup.MarkProcessed(ctx, evt.EventID.String(), s.ttl)
		if err != nil {
			// dedup is best effort
			s.logger.Warn("Dedup store unavailable", zap.Error(err))
		} else if !fresh {
			result.Duplicate = true
			return result, nil
		}
	}

	if err := s.publisher.Publish(ctx, evt); err != nil {
		return nil, err
	}
	return result, nil
}
