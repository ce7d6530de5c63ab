package session

import (
	"net"
	"testing"
	"time"

	"github.com/mtnptrsn/zon/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	sent []uint16
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByPlayerAndRoom(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", &MockConnection{})
	sess1.Bind("alice", "room1")

	sess2 := NewSession("session2", &MockConnection{})
	sess2.Bind("bob", "room1")

	// alice on a second device, looking at an older room
	sess3 := NewSession("session3", &MockConnection{})
	sess3.Bind("alice", "room0")

	manager.Add(sess1)
	manager.Add(sess2)
	manager.Add(sess3)

	if got := len(manager.GetByPlayerID("alice")); got != 2 {
		t.Errorf("Expected 2 sessions for alice, got %d", got)
	}
	if got := len(manager.GetByRoomID("room1")); got != 2 {
		t.Errorf("Expected 2 sessions in room1, got %d", got)
	}
	if got := len(manager.GetByPlayerID("carol")); got != 0 {
		t.Errorf("Expected 0 sessions for carol, got %d", got)
	}

	sess3.Bind("alice", "room1")
	if got := len(manager.GetByRoomID("room1")); got != 3 {
		t.Errorf("Expected rebinding to move the session, got %d in room1", got)
	}
	if got := len(manager.GetAll()); got != 3 {
		t.Errorf("Expected 3 sessions in total, got %d", got)
	}
}

func TestSession_Set_Get(t *testing.T) {
	sess := NewSession("test_session", &MockConnection{})
	key := "test_key"
	value := "test_value"

	sess.Set(key, value)

	retrievedValue := sess.Get(key)
	if retrievedValue != value {
		t.Errorf("Expected value %v, got %v", value, retrievedValue)
	}

	nilValue := sess.Get("non_existent_key")
	if nilValue != nil {
		t.Errorf("Expected nil for non-existent key, got %v", nilValue)
	}
}

func TestSession_SendTouches(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s", conn)
	before := sess.LastActive

	time.Sleep(time.Millisecond)
	if err := sess.Send(network.MsgTypePush, []byte("{}")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(conn.sent) != 1 || conn.sent[0] != network.MsgTypePush {
		t.Errorf("Expected one push frame, got %v", conn.sent)
	}
	if !sess.LastActive.After(before) {
		t.Error("Send should refresh LastActive")
	}
}
