package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flowstate/agency/internal/domain/realtime"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type setDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *setDedup) MarkProcessed(_ context.Context, id string, _ time.Duration) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *setDedup) IsProcessed(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *setDedup) Close() error { return nil }

func TestIngestService_Ingest(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()

	t.Run("publishes new events once", func(t *testing.T) {
		pub := &capturePublisher{}
		svc := NewIngestService(pub, &setDedup{}, 0, nil)
		evt := mustEvent(t, realtime.EventProjectUpdated, orgID, "7")

		first, err := svc.Ingest(ctx, evt)
		require.NoError(t, err)
		assert.False(t, first.Duplicate)

		second, err := svc.Ingest(ctx, evt)
		require.NoError(t, err)
		assert.True(t, second.Duplicate)

		assert.Len(t, pub.events, 1)
	})

	t.Run("dedup outage still publishes", func(t *testing.T) {
		pub := &capturePublisher{}
		svc := NewIngestService(pub, &setDedup{err: errors.New("redis down")}, time.Minute, nil)

		_, err := svc.Ingest(ctx, mustEvent(t, realtime.EventReportUpdated, orgID, ""))
		require.NoError(t, err)
		assert.Len(t, pub.events, 1)
	})

	t.Run("rejects invalid events", func(t *testing.T) {
		svc := NewIngestService(&capturePublisher{}, nil, 0, nil)
		_, err := svc.Ingest(ctx, realtime.InvalidationEvent{Name: "invoice_updated", OrganizationID: orgID})
		assert.ErrorIs(t, err, realtime.ErrUnknownEvent)
	})

	t.Run("publish failure is returned", func(t *testing.T) {
		svc := NewIngestService(&capturePublisher{err: errors.New("closed")}, nil, 0, nil)
		_, err := svc.Ingest(ctx, mustEvent(t, realtime.EventAnalyticsUpdated, orgID, ""))
		assert.Error(t, err)
	})
}
