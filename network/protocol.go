package network

import "encoding/json"

// Message ids carried in the first two bytes of every frame.
const (
	MsgTypeHeartbeat      = 1
	MsgTypeCreateRoom     = 101
	MsgTypeJoinRoom       = 102
	MsgTypeLeaveRoom      = 103
	MsgTypeStartRoom      = 104
	MsgTypeEndRoom        = 105
	MsgTypeUpdatePosition = 201
	MsgTypeGetRoom        = 202
	MsgTypeRoomHistory    = 203
	MsgTypePlayerStats    = 204
	MsgTypeResponse       = 301
	MsgTypePush           = 302
)

func RoomTopic(roomID string) string {
	return "room:" + roomID + ":onUpdate"
}

func PlayerTopic(playerID string) string {
	return "player:" + playerID + ":onEvent"
}

// Push is the body of a MsgTypePush frame.
type Push struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// Response answers one request frame. Code is empty on success.
type Response struct {
	Request uint16          `json:"request"`
	Seq     uint32          `json:"seq,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
