package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(logger.Discard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.MustParse(r.URL.Query().Get("id"))
		hub.HandleWebSocket(w, r, id, models.Role(r.URL.Query().Get("role")))
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, id uuid.UUID, role models.Role) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?id=" + id.String() + "&role=" + string(role)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) notify.Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var n notify.Notification
	require.NoError(t, json.Unmarshal(data, &n))
	return n
}

func TestHubRoutesByRoleAndUser(t *testing.T) {
	hub, srv := startHub(t)
	adminID, driverID, otherID := uuid.New(), uuid.New(), uuid.New()

	admin := dial(t, srv, adminID, models.RoleAdmin)
	driver := dial(t, srv, driverID, models.RoleDriver)
	other := dial(t, srv, otherID, models.RoleDriver)

	require.Eventually(t, func() bool { return hub.GetConnectedClients() == 3 }, 2*time.Second, 10*time.Millisecond)

	hub.NotifyDriver(context.Background(), driverID, notify.Notification{Type: notify.TypeTripAssigned, Title: "New trip"})
	hub.NotifyAdmins(context.Background(), notify.Notification{Type: notify.TypeShiftStarted})

	assert.Equal(t, notify.TypeTripAssigned, readNotification(t, driver).Type)
	assert.Equal(t, notify.TypeShiftStarted, readNotification(t, admin).Type)

	// The other driver receives nothing.
	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, uuid.New(), models.RoleDriver)
	require.Eventually(t, func() bool { return hub.GetConnectedClients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.GetConnectedClients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://admin.mooveit.co.ke"})

	r := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	r.Header.Set("Origin", "https://admin.mooveit.co.ke")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(r))

	r.Header.Del("Origin")
	assert.True(t, check(r))

	assert.True(t, originChecker(nil)(r))
}

func TestHubReleasesConnectionsAfterStop(t *testing.T) {
	hub := NewHub(logger.Discard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	handled := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, uuid.New(), models.RoleDriver)
		handled <- struct{}{}
	}))
	t.Cleanup(srv.Close)

	live := dial(t, srv, uuid.New(), models.RoleDriver)
	require.Eventually(t, func() bool { return hub.GetConnectedClients() == 1 }, 2*time.Second, 10*time.Millisecond)
	<-handled

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	require.NoError(t, live.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := live.ReadMessage()
	assert.Error(t, err)

	late := dial(t, srv, uuid.New(), models.RoleDriver)
	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("connection after stop was not released")
	}
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.GetConnectedClients())
}
