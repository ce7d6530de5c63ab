package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/network"
	"github.com/mtnptrsn/zon/session"
)

type frame struct {
	msgID uint16
	push  network.Push
}

// MockConnection captures pushed frames.
type MockConnection struct {
	mu     sync.Mutex
	frames []frame
	fail   bool
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	if m.fail {
		return errors.New("connection closed")
	}
	var p network.Push
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frame{msgID: msgID, push: p})
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func bound(m *session.Manager, id, playerID, roomID string, conn *MockConnection) {
	s := session.NewSession(id, conn)
	s.Bind(playerID, roomID)
	m.Add(s)
}

func TestSessionBroadcaster_BroadcastRoom(t *testing.T) {
	sessions := session.NewManager()
	alice, bob, other := &MockConnection{}, &MockConnection{}, &MockConnection{}
	bound(sessions, "s1", "alice", "r1", alice)
	bound(sessions, "s2", "bob", "r1", bob)
	bound(sessions, "s3", "carol", "r2", other)

	home := geo.Coordinate{Longitude: 18, Latitude: 59}
	r := &models.Room{
		ID:     "r1",
		Status: models.StatusPlaying,
		Players: []models.Player{
			{ID: "alice", IsHost: true, Location: &home},
			{ID: "bob"},
		},
		Map: &models.GameMap{Radius: 1000, Homes: []models.Point{{ID: "h", Location: home}}},
	}

	b := NewSessionBroadcaster(sessions, 50)
	require.NoError(t, b.BroadcastRoom(context.Background(), r))

	require.Len(t, alice.frames, 1)
	require.Len(t, bob.frames, 1)
	assert.Empty(t, other.frames)
	assert.Equal(t, uint16(network.MsgTypePush), alice.frames[0].msgID)
	assert.Equal(t, "room:r1:onUpdate", alice.frames[0].push.Topic)

	var got models.Room
	require.NoError(t, json.Unmarshal(alice.frames[0].push.Data, &got))
	assert.True(t, got.Players[0].IsWithinHome, "proximity is derived before sending")
	assert.False(t, r.Players[0].IsWithinHome, "the caller's room is not modified")
}

func TestSessionBroadcaster_SendEvent(t *testing.T) {
	sessions := session.NewManager()
	phone, tablet, bob := &MockConnection{}, &MockConnection{}, &MockConnection{}
	bound(sessions, "s1", "alice", "r1", phone)
	bound(sessions, "s2", "alice", "r1", tablet)
	bound(sessions, "s3", "bob", "r1", bob)

	b := NewSessionBroadcaster(sessions, 50)
	ev := models.CaptureEvent{PointID: "p1", PlayerID: "alice", Weight: 2}
	require.NoError(t, b.SendEvent(context.Background(), "alice", ev))

	require.Len(t, phone.frames, 1)
	require.Len(t, tablet.frames, 1)
	assert.Empty(t, bob.frames)
	assert.Equal(t, "player:alice:onEvent", phone.frames[0].push.Topic)
	assert.JSONEq(t,
		`{"type":"capture","data":{"pointId":"p1","playerId":"alice","weight":2,"ghost":false}}`,
		string(phone.frames[0].push.Data))
}

func TestSessionBroadcaster_SkipsFailedSessions(t *testing.T) {
	sessions := session.NewManager()
	broken, ok := &MockConnection{fail: true}, &MockConnection{}
	bound(sessions, "s1", "alice", "r1", broken)
	bound(sessions, "s2", "alice", "r1", ok)

	b := NewSessionBroadcaster(sessions, 50)
	err := b.SendEvent(context.Background(), "alice", models.Announcement{Message: "10 minutes left"})
	require.NoError(t, err)
	assert.Len(t, ok.frames, 1)
}
