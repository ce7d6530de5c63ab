package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/mtnptrsn/zon/logger"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/room"
	"github.com/mtnptrsn/zon/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr. Services are added with Register before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpc.NewServer(),
	}, nil
}

func (s *Server) Register(service any) error {
	return s.rpc.Register(service)
}

func (s *Server) Addr() string { return s.address }

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService is the read-only API for tooling and dashboards.
type GameService struct {
	rooms   *room.Service
	stats   *services.StatsService
	timeout time.Duration
}

func NewGameService(rooms *room.Service, stats *services.StatsService, timeout time.Duration) *GameService {
	return &GameService{rooms: rooms, stats: stats, timeout: timeout}
}

func (gs *GameService) withTimeout() (context.Context, context.CancelFunc) {
	if gs.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), gs.timeout)
}

// net/rpc signature: exported method, exported arguments, second argument is
// a pointer, return type is error.
type GetRoomArgs struct {
	// Ref is a room id or short id.
	Ref string
}

type GetRoomReply struct {
	Room *models.Room
}

func (gs *GameService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	ctx, cancel := gs.withTimeout()
	defer cancel()

	r, err := gs.rooms.Get(ctx, args.Ref)
	if err != nil {
		return err
	}
	reply.Room = r
	return nil
}

type PlayerRoomsArgs struct {
	PlayerID string
}

type PlayerRoomsReply struct {
	Rooms []*models.Room
}

func (gs *GameService) GetPlayerRooms(args *PlayerRoomsArgs, reply *PlayerRoomsReply) error {
	ctx, cancel := gs.withTimeout()
	defer cancel()

	rooms, err := gs.rooms.RoomsForPlayer(ctx, args.PlayerID)
	if err != nil {
		return err
	}
	reply.Rooms = rooms
	return nil
}

type PlayerStatsArgs struct {
	RoomID   string
	PlayerID string
}

type PlayerStatsReply struct {
	Stats services.PlayerStats
}

func (gs *GameService) GetPlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	ctx, cancel := gs.withTimeout()
	defer cancel()

	stats, err := gs.stats.PlayerStats(ctx, args.RoomID, args.PlayerID)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}
