package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/logger"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/monitor"
	"github.com/mtnptrsn/zon/network"
	"github.com/mtnptrsn/zon/room"
	"github.com/mtnptrsn/zon/services"
	"github.com/mtnptrsn/zon/session"
)

// Error codes carried in network.Response.Code.
const (
	CodeInvalidArgument     = "invalid_argument"
	CodeRoomNotJoinable     = "room_not_joinable"
	CodeNotHost             = "not_host"
	CodeWrongPhase          = "wrong_phase"
	CodeNotFound            = "not_found"
	CodeStoreUnavailable    = "store_unavailable"
	CodeMapGenerationFailed = "map_generation_failed"
	CodeInternal            = "internal"
)

type handler func(ctx context.Context, sess *session.Session, data []byte) (any, error)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	rooms          *room.Service
	stats          *services.StatsService
	sessionManager *session.Manager
	monitor        *monitor.Monitor
	heartbeat      time.Duration
	handlers       map[uint16]handler
	httpServer     *http.Server
	ctx            context.Context
	cancel         context.CancelFunc
	shutdownOnce   sync.Once
}

type Option func(*GameServer)

func WithMonitor(m *monitor.Monitor) Option {
	return func(s *GameServer) { s.monitor = m }
}

// WithHeartbeat sets the read deadline applied to every connection.
func WithHeartbeat(d time.Duration) Option {
	return func(s *GameServer) { s.heartbeat = d }
}

func NewGameServer(addr string, rooms *room.Service, stats *services.StatsService, sessions *session.Manager, opts ...Option) *GameServer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &GameServer{
		addr:           addr,
		rooms:          rooms,
		stats:          stats,
		sessionManager: sessions,
		heartbeat:      time.Minute,
		ctx:            ctx,
		cancel:         cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handlers = map[uint16]handler{
		network.MsgTypeCreateRoom:     s.handleCreateRoom,
		network.MsgTypeJoinRoom:       s.handleJoinRoom,
		network.MsgTypeLeaveRoom:      s.handleLeaveRoom,
		network.MsgTypeStartRoom:      s.handleStartRoom,
		network.MsgTypeEndRoom:        s.handleEndRoom,
		network.MsgTypeUpdatePosition: s.handleUpdatePosition,
		network.MsgTypeGetRoom:        s.handleGetRoom,
		network.MsgTypeRoomHistory:    s.handleRoomHistory,
		network.MsgTypePlayerStats:    s.handlePlayerStats,
	}
	return s
}

func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start blocks until the server is shut down.
func (s *GameServer) Start() error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cancel()
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
		for _, sess := range s.sessionManager.GetAll() {
			sess.Close()
		}
	})
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.heartbeat)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlineSessions()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlineSessions()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	sess.Touch()
	if packet.MsgID == network.MsgTypeHeartbeat {
		return
	}

	start := time.Now()
	s.monitor.IncMessagesReceived()
	defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()

	var env struct {
		Seq uint32 `json:"seq"`
	}
	if len(packet.Data) > 0 {
		// a malformed body is reported by the handler's own decode
		_ = json.Unmarshal(packet.Data, &env)
	}

	resp := network.Response{Request: packet.MsgID, Seq: env.Seq}
	h, ok := s.handlers[packet.MsgID]
	if !ok {
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		resp.Code, resp.Error = CodeInvalidArgument, fmt.Sprintf("unknown message type %d", packet.MsgID)
		s.reply(sess, resp)
		return
	}

	result, err := h(s.ctx, sess, packet.Data)
	if err != nil {
		resp.Code, resp.Error = ErrorCode(err), err.Error()
		if resp.Code == CodeInternal || resp.Code == CodeStoreUnavailable {
			logger.Log.Errorf("Session %s message %d: %v", sess.GetID(), packet.MsgID, err)
		}
	} else if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			resp.Code, resp.Error = CodeInternal, err.Error()
		} else {
			resp.Data = data
		}
	}
	s.reply(sess, resp)
}

func (s *GameServer) reply(sess *session.Session, resp network.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Errorf("Failed to encode response: %v", err)
		return
	}
	if err := sess.Send(network.MsgTypeResponse, data); err != nil {
		logger.Log.Debugf("Failed to reply to session %s: %v", sess.GetID(), err)
	}
}

// ErrorCode maps a service error onto the wire code clients switch on.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, models.ErrRoomNotJoinable):
		return CodeRoomNotJoinable
	case errors.Is(err, models.ErrNotHost):
		return CodeNotHost
	case errors.Is(err, models.ErrWrongPhase):
		return CodeWrongPhase
	case errors.Is(err, models.ErrRoomNotFound), errors.Is(err, models.ErrPlayerNotInRoom):
		return CodeNotFound
	case errors.Is(err, models.ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, models.ErrMapGenerationFailed):
		return CodeMapGenerationFailed
	default:
		return CodeInternal
	}
}

func decode[T any](data []byte) (T, error) {
	var req T
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	return req, nil
}

// caller prefers the player bound to the session over the one claimed in
// the request.
func caller(sess *session.Session, claimed string) string {
	if id := sess.Player(); id != "" {
		return id
	}
	return claimed
}

type createRequest struct {
	Player          room.NewPlayer `json:"player"`
	ChallengeRoomID string         `json:"challengeRoomId"`
}

func (s *GameServer) handleCreateRoom(ctx context.Context, sess *session.Session, data []byte) (any, error) {
	req, err := decode[createRequest](data)
	if err != nil {
		return nil, err
	}
	if req.Player.ID == "" {
		req.Player.ID = caller(sess, uuid.New().String())
	}
	r, err := s.rooms.Create(ctx, req.Player, req.ChallengeRoomID)
	if err != nil {
		return nil, err
	}
	sess.Bind(req.Player.ID, r.ID)
	logger.Log.Infof("Session %s created room %s", sess.GetID(), r.ID)
	return r, nil
}

type joinRequest struct {
	// Room is an id or a short id.
	Room   string         `json:"room"`
	Player room.NewPlayer `json:"player"`
}

func (s *GameServer) handleJoinRoom(ctx context.Context, sess *session.Session, data []byte) (any, error) {
	req, err := decode[joinRequest](data)
	if err != nil {
		return nil, err
	}
	if req.Player.ID == "" {
		req.Player.ID = caller(sess, uuid.New().String())
	}
	r, err := s.rooms.Join(ctx, req.Room, req.Player)
	if err != nil {
		return nil, err
	}
	sess.Bind(req.Player.ID, r.ID)
	logger.Log.Infof("Session %s joined room %s", sess.GetID(), r.ID)
	return r, nil
}

type playerRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

func (s *GameServer) handleLeaveRoom(ctx context.Context, sess *session.Session, data []byte) (any, error) {
	req, err := decode[playerRequest](data)
	if err != nil {
		return nil, err
	}
	player := caller(sess, req.PlayerID)
	r, err := s.rooms.Leave(ctx, req.RoomID, player)
	if err != nil {
		return nil, err
	}
	if sess.Room() == req.RoomID {
		sess.Bind(player, "")
	}
	return r, nil
}

type startRequest struct {
	RoomID       string         `json:"roomId"`
	PlayerID     string         `json:"playerId"`
	HostLocation geo.Coordinate `json:"hostLocation"`
	Radius       float64        `json:"radius"`
	// Duration is a Go duration string such as "45m".
	Duration string `json:"duration"`
}

func (s *GameServer) handleStartRoom(ctx context.Context, sess *session.Session, data []byte) (any, error) {
	req, err := decode[startRequest](data)
	if err != nil {
		return nil, err
	}
	duration, err := time.ParseDuration(req.Duration)
	if err != nil {
		return nil, fmt.Errorf("%w: duration: %v", models.ErrInvalidArgument, err)
	}
	return s.rooms.Start(ctx, room.StartRequest{
		RoomID:       req.RoomID,
		CallerID:     caller(sess, req.PlayerID),
		HostLocation: req.HostLocation,
		Radius:       req.Radius,
		Duration:     duration,
	})
}

func (s *GameServer) handleEndRoom(ctx context.Context, sess *session.Session, data []byte) (any, error) {
	req, err := decode[playerRequest](data)
	if err != nil {
		return nil, err
	}
	r, _, err := s.rooms.End(ctx, req.RoomID, caller(sess, req.PlayerID), models.EndHostRequested)
	return r, err
}

type positionRequest struct {
	RoomID   string         `json:"roomId"`
	PlayerID string         `json:"playerId"`
	Location geo.Coordinate `json:"location"`
}

type positionReply struct {
	Room     *models.Room          `json:"room"`
	Captures []models.CaptureEvent `json:"captures"`
}

func (s *GameServer) handleUpdatePosition(ctx context.Context, sess *session.Session, data []byte) (any, error) {
	req, err := decode[positionRequest](data)
	if err != nil {
		return nil, err
	}
	r, captures, err := s.rooms.UpdatePosition(ctx, req.RoomID, caller(sess, req.PlayerID), req.Location)
	if err != nil {
		return nil, err
	}
	return positionReply{Room: r, Captures: captures}, nil
}

type getRequest struct {
	Room     string `json:"room"`
	PlayerID string `json:"playerId"`
}

// handleGetRoom also subscribes the session to the room when the player is a
// member, which is how clients reconnect.
func (s *GameServer) handleGetRoom(ctx context.Context, sess *session.Session, data []byte) (any, error) {
	req, err := decode[getRequest](data)
	if err != nil {
		return nil, err
	}
	r, err := s.rooms.Get(ctx, req.Room)
	if err != nil {
		return nil, err
	}
	player := caller(sess, req.PlayerID)
	if _, ok := r.Player(player); ok {
		sess.Bind(player, r.ID)
	}
	return r, nil
}

func (s *GameServer) handleRoomHistory(ctx context.Context, sess *session.Session, data []byte) (any, error) {
	req, err := decode[playerRequest](data)
	if err != nil {
		return nil, err
	}
	player := caller(sess, req.PlayerID)
	if player == "" {
		return nil, fmt.Errorf("%w: player id is required", models.ErrInvalidArgument)
	}
	rooms, err := s.rooms.RoomsForPlayer(ctx, player)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []*models.Room{}
	}
	return rooms, nil
}

func (s *GameServer) handlePlayerStats(ctx context.Context, sess *session.Session, data []byte) (any, error) {
	req, err := decode[playerRequest](data)
	if err != nil {
		return nil, err
	}
	return s.stats.PlayerStats(ctx, req.RoomID, caller(sess, req.PlayerID))
}
