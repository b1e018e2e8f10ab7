package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/self-labs/hass-stack/monitor/internal/models"
)

func testAlert() *models.Alert {
	return &models.Alert{
		ID:        "a-1",
		Level:     models.LevelCritical,
		Source:    "coordinator",
		Metric:    "queue_depth",
		Message:   "P0 lane backlog above limit",
		Value:     1500,
		Threshold: 1000,
		RaisedAt:  time.Now().UTC(),
	}
}

func TestWebhookChannelPosts(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, 5*time.Second)
	require.NoError(t, ch.Send(context.Background(), testAlert()))

	assert.Equal(t, "a-1", received["alert_id"])
	assert.Equal(t, "CRITICAL", received["level"])
	assert.Equal(t, "queue_depth", received["metric"])
	assert.Equal(t, 1500.0, received["value"])
}

func TestWebhookChannelErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, 5*time.Second)
	err := ch.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSlackChannelPayload(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewSlackChannel(srv.URL, 5*time.Second)
	require.NoError(t, ch.Send(context.Background(), testAlert()))

	attachments, ok := received["attachments"].([]interface{})
	require.True(t, ok)
	require.Len(t, attachments, 1)
	attachment := attachments[0].(map[string]interface{})
	assert.Equal(t, "#8B0000", attachment["color"])
}

func TestLogChannel(t *testing.T) {
	var logged string
	ch := NewLogChannel(func(format string, v ...interface{}) {
		logged = fmt.Sprintf(format, v...)
	})

	require.NoError(t, ch.Send(context.Background(), testAlert()))
	assert.Contains(t, logged, "queue_depth")
	assert.Contains(t, logged, "CRITICAL")
}

func TestMultiChannelPartialFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	multi := NewMultiChannel(
		NewWebhookChannel(bad.URL, time.Second),
		NewWebhookChannel(good.URL, time.Second),
	)
	// One working channel is enough.
	assert.NoError(t, multi.Send(context.Background(), testAlert()))
}

func TestMultiChannelAllFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	multi := NewMultiChannel(NewWebhookChannel(bad.URL, time.Second))
	err := multi.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all notification channels failed")
}
