package rpc

import (
	"context"
	"net/rpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtnptrsn/zon/config"
	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/persistence"
	"github.com/mtnptrsn/zon/room"
	"github.com/mtnptrsn/zon/services"
)

func TestGameService_OverTCP(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	rooms := room.NewService(store, nil, nil, config.DefaultGame())

	created, err := rooms.Create(ctx, room.NewPlayer{ID: "alice"}, "")
	require.NoError(t, err)
	require.NoError(t, store.AppendPosition(ctx, models.PlayerPosition{
		RoomID: created.ID, PlayerID: "alice",
		Coordinate: geo.Coordinate{Longitude: 18, Latitude: 59}, CreatedAt: time.Now(),
	}))

	srv, err := NewServer("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, srv.Register(NewGameService(rooms, services.NewStatsService(store), time.Second)))
	go srv.Start()
	t.Cleanup(srv.Stop)

	client, err := rpc.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer client.Close()

	var roomReply GetRoomReply
	require.NoError(t, client.Call("GameService.GetRoom", &GetRoomArgs{Ref: created.ShortID}, &roomReply))
	require.NotNil(t, roomReply.Room)
	assert.Equal(t, created.ID, roomReply.Room.ID)
	assert.Equal(t, models.StatusArranging, roomReply.Room.Status)

	var roomsReply PlayerRoomsReply
	require.NoError(t, client.Call("GameService.GetPlayerRooms", &PlayerRoomsArgs{PlayerID: "alice"}, &roomsReply))
	assert.Len(t, roomsReply.Rooms, 1)

	var statsReply PlayerStatsReply
	require.NoError(t, client.Call("GameService.GetPlayerStats", &PlayerStatsArgs{RoomID: created.ID, PlayerID: "alice"}, &statsReply))
	assert.Equal(t, 1, statsReply.Stats.Samples)

	err = client.Call("GameService.GetRoom", &GetRoomArgs{Ref: "missing"}, &roomReply)
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.ErrRoomNotFound.Error())
}
