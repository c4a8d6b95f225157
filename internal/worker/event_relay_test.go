package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/notes-service/internal/events"
	"github.com/spec-kit/notes-service/internal/observability"
)

type recordingSink struct {
	got []events.Event
	err error
}

func (s *recordingSink) Publish(_ context.Context, e events.Event) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, e)
	return nil
}

func scrape(metrics *observability.Metrics) string {
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestEventRelay_ForwardsAllTypes(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	sink := &recordingSink{}
	metrics := observability.NewMetrics()
	StartEventRelay(dispatcher, sink, zap.NewNop(), metrics)

	for _, eventType := range events.AllEventTypes {
		require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(eventType, "u1", nil)))
	}
	require.Len(t, sink.got, len(events.AllEventTypes))
	assert.Equal(t, events.EventUserRegistered, sink.got[0].Type)
	assert.Contains(t, scrape(metrics), `notes_events_relayed_total{result="published",type="note_created"} 1`)
}

func TestEventRelay_SinkFailureIsCounted(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	metrics := observability.NewMetrics()
	StartEventRelay(dispatcher, &recordingSink{err: errors.New("broker down")}, zap.NewNop(), metrics)

	assert.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventNoteDeleted, "u1", nil)))
	assert.Contains(t, scrape(metrics), `notes_events_relayed_total{result="error",type="note_deleted"} 1`)
}

func TestEventRelay_LogsWithoutSink(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	metrics := observability.NewMetrics()
	StartEventRelay(dispatcher, nil, zap.NewNop(), metrics)

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventUserLoggedOut, "u1", nil)))
	assert.Contains(t, scrape(metrics), `notes_events_relayed_total{result="logged",type="user_logged_out"} 1`)
}
