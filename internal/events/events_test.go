package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakeMessageClient struct {
	name, key, id string
	ttl           time.Duration
	vars          interface{}
}

func (f *fakeMessageClient) PublishMessage(_ context.Context, name, key, id string, ttl time.Duration, vars interface{}) error {
	f.name, f.key, f.id, f.ttl, f.vars = name, key, id, ttl, vars
	return nil
}

func sampleEvent() StatusChanged {
	return NewStatusChanged(42, "submit_candidate", models.StatusWaitingForCandidate, models.StatusWaitingForHR,
		models.CandidateActor(), time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC))
}

func TestKafkaPublisher_KeysByRequestID(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "onboarding.status-changed", logger.NewTestLogger(t))

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))
	var got StatusChanged
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, models.StatusWaitingForHR, got.To)
	assert.Equal(t, "candidate", got.Actor)
}

func TestZeebePublisher_CorrelatesByRequestID(t *testing.T) {
	c := &fakeMessageClient{}
	p := NewZeebePublisher(c, "onboarding-status-changed", time.Hour)
	e := sampleEvent()

	require.NoError(t, p.Publish(context.Background(), e))

	assert.Equal(t, "onboarding-status-changed", c.name)
	assert.Equal(t, "42", c.key)
	assert.Equal(t, e.EventID, c.id)
	assert.Equal(t, "WAITING_FOR_HR", c.vars.(map[string]interface{})["status"])
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	rec := &Recorder{}
	m := NewMulti(logger.NewTestLogger(t)).
		Add("kafka", newKafkaPublisher(&fakeWriter{err: errors.New("broker down")}, "t", logger.NewNoOpLogger())).
		Add("recorder", rec)
	assert.Equal(t, 2, m.Len())

	err := m.Publish(context.Background(), sampleEvent())

	assert.ErrorContains(t, err, "broker down")
	assert.Len(t, rec.Events(), 1)
}
