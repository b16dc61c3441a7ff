package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/changefeed"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, hub *Hub, actor models.Actor) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, actor)
	}))
	t.Cleanup(srv.Close)

	before := hub.Clients()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Clients() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestHubRoutesByOwnership(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()

	owner := uuid.New()
	generator := dial(t, hub, models.Actor{UserID: owner, Role: models.RoleGenerator})
	controller := dial(t, hub, models.Actor{UserID: uuid.New(), Role: models.RoleController})

	foreign := changefeed.Event{Table: changefeed.TableWasteRecords, Op: changefeed.OpInsert, RecordID: uuid.New(), OwnerID: uuid.New()}
	own := changefeed.Event{Table: changefeed.TableWasteRecords, Op: changefeed.OpUpdate, RecordID: uuid.New(), OwnerID: owner}
	hub.Broadcast(foreign)
	hub.Broadcast(own)

	var msg Message
	require.NoError(t, generator.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, generator.ReadJSON(&msg))
	assert.Equal(t, MessageTypeChange, msg.Type)
	assert.Equal(t, own.RecordID, msg.Event.RecordID)

	require.NoError(t, controller.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, controller.ReadJSON(&msg))
	assert.Equal(t, foreign.RecordID, msg.Event.RecordID)
	require.NoError(t, controller.ReadJSON(&msg))
	assert.Equal(t, own.RecordID, msg.Event.RecordID)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()

	conn := dial(t, hub, models.Actor{UserID: uuid.New(), Role: models.RoleAdmin})
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCloseIsIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop())
	dial(t, hub, models.Actor{UserID: uuid.New(), Role: models.RoleAdmin})

	hub.Close()
	hub.Close()
	assert.Zero(t, hub.Clients())

	hub.Broadcast(changefeed.Event{Table: changefeed.TableCenters})
}
