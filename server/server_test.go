package server

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtnptrsn/zon/broadcast"
	"github.com/mtnptrsn/zon/config"
	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/mapgen"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/network"
	"github.com/mtnptrsn/zon/persistence"
	"github.com/mtnptrsn/zon/room"
	"github.com/mtnptrsn/zon/services"
	"github.com/mtnptrsn/zon/session"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	store := persistence.NewMemoryStore()
	sessions := session.NewManager()
	game := config.DefaultGame()
	rooms := room.NewService(
		store,
		mapgen.NewRandomGenerator(config.MapGenConfig{Points: 6, MinFactor: 0.15, Seed: 7}),
		broadcast.NewSessionBroadcaster(sessions, game.HomeHitbox),
		game,
	)
	gs := NewGameServer("", rooms, services.NewStatsService(store), sessions, WithHeartbeat(5*time.Second))
	srv := httptest.NewServer(gs.Handler())
	t.Cleanup(func() {
		_ = gs.Shutdown(t.Context())
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *network.WSConnection {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn := network.NewWSConnection(c)
	conn.SetHeartbeat(5 * time.Second)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *network.WSConnection, msgID uint16, body any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	require.NoError(t, conn.Send(msgID, data))
}

// response skips pushes until the next response frame.
func response(t *testing.T, conn *network.WSConnection) network.Response {
	t.Helper()
	for {
		packet, err := conn.ReadPacket()
		require.NoError(t, err)
		if packet.MsgID != network.MsgTypeResponse {
			continue
		}
		var resp network.Response
		require.NoError(t, json.Unmarshal(packet.Data, &resp))
		return resp
	}
}

func push(t *testing.T, conn *network.WSConnection) network.Push {
	t.Helper()
	for {
		packet, err := conn.ReadPacket()
		require.NoError(t, err)
		if packet.MsgID != network.MsgTypePush {
			continue
		}
		var p network.Push
		require.NoError(t, json.Unmarshal(packet.Data, &p))
		return p
	}
}

func roomOf(t *testing.T, resp network.Response) *models.Room {
	t.Helper()
	require.Empty(t, resp.Code, resp.Error)
	var r models.Room
	require.NoError(t, json.Unmarshal(resp.Data, &r))
	return &r
}

func TestGameServer_RoomFlow(t *testing.T) {
	url := newTestServer(t)
	host := dial(t, url)
	guest := dial(t, url)

	send(t, host, network.MsgTypeCreateRoom, map[string]any{
		"seq":    1,
		"player": map[string]string{"id": "alice", "name": "Alice"},
	})
	resp := response(t, host)
	assert.Equal(t, uint16(network.MsgTypeCreateRoom), resp.Request)
	assert.Equal(t, uint32(1), resp.Seq)
	created := roomOf(t, resp)
	assert.Equal(t, models.StatusArranging, created.Status)

	send(t, guest, network.MsgTypeJoinRoom, map[string]any{
		"seq":    2,
		"room":   strings.ToLower(created.ShortID),
		"player": map[string]string{"id": "bob", "name": "Bob"},
	})
	joined := roomOf(t, response(t, guest))
	assert.Len(t, joined.Players, 2)

	update := push(t, host)
	assert.Equal(t, network.RoomTopic(created.ID), update.Topic)

	start := map[string]any{
		"roomId":       created.ID,
		"hostLocation": geo.Coordinate{Longitude: 18.0686, Latitude: 59.3293},
		"radius":       1000,
		"duration":     "30m",
	}
	send(t, guest, network.MsgTypeStartRoom, start)
	assert.Equal(t, CodeNotHost, response(t, guest).Code)

	send(t, host, network.MsgTypeStartRoom, start)
	started := roomOf(t, response(t, host))
	assert.Equal(t, models.StatusCountdown, started.Status)
	require.NotNil(t, started.Map)
	assert.Len(t, started.Map.Points, 6)
	assert.Equal(t, 30*time.Minute, started.FinishedAt.Sub(started.StartedAt))

	send(t, guest, network.MsgTypeJoinRoom, map[string]any{
		"room":   created.ShortID,
		"player": map[string]string{"id": "carol"},
	})
	assert.Equal(t, CodeRoomNotJoinable, response(t, guest).Code)
}

func TestGameServer_Errors(t *testing.T) {
	url := newTestServer(t)
	conn := dial(t, url)

	send(t, conn, network.MsgTypeJoinRoom, map[string]any{"seq": 9, "room": "ZZZZZZ", "player": map[string]string{"id": "bob"}})
	resp := response(t, conn)
	assert.Equal(t, CodeNotFound, resp.Code)
	assert.Equal(t, uint32(9), resp.Seq)

	require.NoError(t, conn.Send(999, []byte("{}")))
	assert.Equal(t, CodeInvalidArgument, response(t, conn).Code)

	require.NoError(t, conn.Send(network.MsgTypeGetRoom, []byte("not json")))
	assert.Equal(t, CodeInvalidArgument, response(t, conn).Code)

	send(t, conn, network.MsgTypeStartRoom, map[string]any{"roomId": "x", "duration": "soon"})
	assert.Equal(t, CodeInvalidArgument, response(t, conn).Code)
}

func TestGameServer_GetRoomBindsMember(t *testing.T) {
	url := newTestServer(t)
	first := dial(t, url)

	send(t, first, network.MsgTypeCreateRoom, map[string]any{"player": map[string]string{"id": "alice"}})
	created := roomOf(t, response(t, first))

	// a second connection for the same player picks up the room's pushes
	second := dial(t, url)
	send(t, second, network.MsgTypeGetRoom, map[string]any{"room": created.ID, "playerId": "alice"})
	roomOf(t, response(t, second))

	guest := dial(t, url)
	send(t, guest, network.MsgTypeJoinRoom, map[string]any{"room": created.ShortID, "player": map[string]string{"id": "bob"}})
	roomOf(t, response(t, guest))

	assert.Equal(t, network.RoomTopic(created.ID), push(t, second).Topic)

	send(t, second, network.MsgTypeRoomHistory, map[string]any{})
	var history []*models.Room
	resp := response(t, second)
	require.Empty(t, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	assert.Len(t, history, 1)
}

func TestErrorCode(t *testing.T) {
	cases := map[error]string{
		models.ErrInvalidArgument:     CodeInvalidArgument,
		models.ErrRoomNotJoinable:     CodeRoomNotJoinable,
		models.ErrNotHost:             CodeNotHost,
		models.ErrWrongPhase:          CodeWrongPhase,
		models.ErrRoomNotFound:        CodeNotFound,
		models.ErrPlayerNotInRoom:     CodeNotFound,
		models.ErrStoreUnavailable:    CodeStoreUnavailable,
		models.ErrMapGenerationFailed: CodeMapGenerationFailed,
		fmt.Errorf("boom"):            CodeInternal,
	}
	for err, code := range cases {
		assert.Equal(t, code, ErrorCode(fmt.Errorf("wrapped: %w", err)), err.Error())
	}
}
