// broadcast/broadcast.go
package broadcast

import (
	"context"
	"encoding/json"

	"github.com/mtnptrsn/zon/logger"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/network"
	"github.com/mtnptrsn/zon/room"
	"github.com/mtnptrsn/zon/session"
)

var _ room.Broadcaster = (*SessionBroadcaster)(nil)

// SessionBroadcaster 基于会话的广播器
//
// Room updates go to sessions bound to the room, events to sessions bound to
// the player. A failed send is logged and skipped.
type SessionBroadcaster struct {
	sessionManager *session.Manager
	homeHitbox     float64
}

func NewSessionBroadcaster(sessionManager *session.Manager, homeHitbox float64) *SessionBroadcaster {
	return &SessionBroadcaster{
		sessionManager: sessionManager,
		homeHitbox:     homeHitbox,
	}
}

func (b *SessionBroadcaster) BroadcastRoom(ctx context.Context, r *models.Room) error {
	snapshot := r.Clone()
	snapshot.DeriveHomeProximity(b.homeHitbox)
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return b.push(ctx, network.RoomTopic(r.ID), data, b.sessionManager.GetByRoomID(r.ID))
}

func (b *SessionBroadcaster) SendEvent(ctx context.Context, playerID string, event models.Event) error {
	data, err := models.MarshalEvent(event)
	if err != nil {
		return err
	}
	return b.push(ctx, network.PlayerTopic(playerID), data, b.sessionManager.GetByPlayerID(playerID))
}

func (b *SessionBroadcaster) push(ctx context.Context, topic string, data []byte, sessions []*session.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	frame, err := json.Marshal(network.Push{Topic: topic, Data: data})
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Send(network.MsgTypePush, frame); err != nil {
			// 处理发送错误，连接关闭后由服务器移除会话
			logger.Log.Debugw("push failed", "topic", topic, "session", s.ID, "error", err)
			continue
		}
	}
	return nil
}
