package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-eye/phoenix-eye-api/api/handlers"
)

func TestEventHubPublish(t *testing.T) {
	hub := handlers.NewEventHub()

	srv := httptest.NewServer(http.HandlerFunc(hub.SubscribeHandler))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server side a beat to register the subscriber.
	time.Sleep(100 * time.Millisecond)

	hub.Publish(handlers.EventReportAssigned, map[string]string{"reportId": "abc"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event handlers.DispatchEvent
	require.NoError(t, conn.ReadJSON(&event))

	assert.Equal(t, handlers.EventReportAssigned, event.Event)
	payload := event.Payload.(map[string]interface{})
	assert.Equal(t, "abc", payload["reportId"])
}

func TestEventHubDropsClosedClients(t *testing.T) {
	hub := handlers.NewEventHub()

	srv := httptest.NewServer(http.HandlerFunc(hub.SubscribeHandler))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	conn.Close()

	// Publishing after the client is gone must not panic or block.
	hub.Publish(handlers.EventReportCompleted, nil)
	hub.Publish(handlers.EventReportCompleted, nil)
}
