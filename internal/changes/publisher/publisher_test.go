package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"tlwatch/internal/trustlist/models"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func strPtr(s string) *string { return &s }

func TestNew(t *testing.T) {
	_, err := New(nil, "tlwatch.changes")
	assert.EqualError(t, err, "kafka producer is required")

	_, err = New(&fakeProducer{}, "")
	assert.EqualError(t, err, "kafka topic is required")
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	detectedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eventID := uuid.MustParse("6f1c1c5e-3d4b-4a3e-9a57-2f8f3c1b9a10")

	t.Run("one keyed message per record", func(t *testing.T) {
		producer := &fakeProducer{}
		pub, err := New(producer, "tlwatch.changes", WithIDGenerator(func() uuid.UUID { return eventID }))
		require.NoError(t, err)

		err = pub.Publish(ctx, []models.ChangeRecord{
			{
				RunID:       9,
				Kind:        models.ChangeStatusChanged,
				ServiceKey:  "k1",
				CountryCode: "HR",
				OldValue:    strPtr("http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/granted"),
				NewValue:    strPtr("http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/withdrawn"),
				DetectedAt:  detectedAt,
			},
			{RunID: 9, Kind: models.ChangeServiceAdded, ServiceKey: "k2", CountryCode: "SI", NewValue: strPtr(""), DetectedAt: detectedAt},
		})
		require.NoError(t, err)
		require.Len(t, producer.records, 2)

		msg := producer.records[0]
		assert.Equal(t, "tlwatch.changes", msg.Topic)
		assert.Equal(t, []byte("k1"), msg.Key)
		assert.Contains(t, msg.Headers, kgo.RecordHeader{Key: "event_type", Value: []byte("status_changed")})

		var event Event
		require.NoError(t, json.Unmarshal(msg.Value, &event))
		assert.Equal(t, eventID.String(), event.EventID)
		assert.Equal(t, int64(9), event.RunID)
		assert.Equal(t, "GRANTED", event.OldStatusLabel)
		assert.Equal(t, "WITHDRAWN", event.NewStatusLabel)
		assert.True(t, detectedAt.Equal(event.DetectedAt))

		var added map[string]any
		require.NoError(t, json.Unmarshal(producer.records[1].Value, &added))
		assert.Nil(t, added["old_status"], "added services carry no old status")
		assert.Equal(t, "", added["new_status"])
	})

	t.Run("nothing to publish", func(t *testing.T) {
		producer := &fakeProducer{}
		pub, err := New(producer, "tlwatch.changes")
		require.NoError(t, err)
		require.NoError(t, pub.Publish(ctx, nil))
		assert.Empty(t, producer.records)
	})

	t.Run("broker error", func(t *testing.T) {
		boom := errors.New("not enough replicas")
		pub, err := New(&fakeProducer{err: boom}, "tlwatch.changes")
		require.NoError(t, err)

		err = pub.Publish(ctx, []models.ChangeRecord{{Kind: models.ChangeServiceRemoved, ServiceKey: "k1"}})
		assert.ErrorIs(t, err, boom)
	})
}
