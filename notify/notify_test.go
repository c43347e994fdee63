package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qmedic/stock-ledger/ledger"
)

func testNotification() ledger.Notification {
	exp := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, time.November, 24, 8, 0, 0, 0, time.UTC)
	return ledger.Notification{
		ID:         42,
		ItemID:     7,
		AlertType:  ledger.AlertExpiryWarning,
		ItemCode:   "MED001",
		ItemName:   "Epinephrine",
		Location:   "Ambulance 1",
		ExpiryDate: &exp,
		Details:    "Expires on 2024-12-01, 7 days left.",
		AlertDay:   ledger.DateOf(now),
		CreatedAt:  now,
	}
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(testNotification(), time.Now())
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, EventType, ev.Type)
	assert.Equal(t, int64(42), ev.Notification.ID)
	assert.Equal(t, "Expiry Warning", ev.Notification.AlertType)
	assert.Equal(t, "2024-12-01", ev.Notification.ExpiryDate)
	assert.Equal(t, "2024-11-24", ev.Notification.AlertDay)

	other := NewEvent(testNotification(), time.Now())
	assert.NotEqual(t, ev.EventID, other.EventID)
}

func TestStream_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	s := NewStream(client, "")
	id, err := s.Publish(ctx, testNotification())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "MED001", msgs[0].Values["item_code"])
	assert.Equal(t, "Expiry Warning", msgs[0].Values["alert_type"])

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &ev))
	assert.Equal(t, int64(42), ev.Notification.ID)
	assert.Equal(t, msgs[0].Values["event_id"], ev.EventID)
}

func TestStream_DispatchFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewStream(client, "alerts").Dispatch(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alerts")
}

func TestWebhook_PostsEvent(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, got.EventID, r.Header.Get("X-Event-ID"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	wh := NewWebhook(WebhookConfig{URL: srv.URL}, zap.NewNop())
	require.NoError(t, wh.Dispatch(context.Background(), testNotification()))
	assert.Equal(t, "MED001", got.Notification.ItemCode)
}

func TestWebhook_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(WebhookConfig{URL: srv.URL, RetryCount: 3, RetryWait: time.Millisecond}, nil)
	require.NoError(t, wh.Dispatch(context.Background(), testNotification()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhook_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := NewWebhook(WebhookConfig{URL: srv.URL, RetryCount: 3, RetryWait: time.Millisecond}, nil)
	err := wh.Dispatch(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) Dispatch(context.Context, ledger.Notification) error {
	s.calls++
	return s.err
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	a, b, c := &stubSink{}, &stubSink{err: boom}, &stubSink{}
	m := Multi{a, b, NewLog(nil), c}

	err := m.Dispatch(context.Background(), testNotification())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)

	assert.NoError(t, Multi{a, c}.Dispatch(context.Background(), testNotification()))
}
