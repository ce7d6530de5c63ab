package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/network"
)

type client struct {
	conn     *network.WSConnection
	playerID string

	mu     sync.Mutex
	roomID string
	seq    uint32
}

func (c *client) send(msgID uint16, body map[string]any) {
	c.mu.Lock()
	c.seq++
	body["seq"] = c.seq
	if _, ok := body["roomId"]; !ok && c.roomID != "" {
		body["roomId"] = c.roomID
	}
	c.mu.Unlock()
	body["playerId"] = c.playerID

	data, err := json.Marshal(body)
	if err != nil {
		log.Println("Encode error:", err)
		return
	}
	if err := c.conn.Send(msgID, data); err != nil {
		log.Println("Write error:", err)
	}
}

// track remembers the room from any response that carries one.
func (c *client) track(resp network.Response) {
	var r models.Room
	if json.Unmarshal(resp.Data, &r) != nil || r.ID == "" {
		log.Printf("<- OK (request %d): %s", resp.Request, string(resp.Data))
		return
	}
	c.mu.Lock()
	c.roomID = r.ID
	c.mu.Unlock()
	log.Printf("Room %s (%s) is %s with %d players", r.ShortID, r.ID, r.Status, len(r.Players))
}

func (c *client) readLoop(done chan<- struct{}) {
	defer close(done)
	for {
		packet, err := c.conn.ReadPacket()
		if err != nil {
			log.Println("Read error:", err)
			return
		}
		switch packet.MsgID {
		case network.MsgTypeResponse:
			var resp network.Response
			if err := json.Unmarshal(packet.Data, &resp); err != nil {
				log.Printf("Bad response: %v", err)
				continue
			}
			if resp.Code != "" {
				log.Printf("<- ERROR (request %d, seq %d): %s %s", resp.Request, resp.Seq, resp.Code, resp.Error)
				continue
			}
			c.track(resp)
		case network.MsgTypePush:
			var p network.Push
			if err := json.Unmarshal(packet.Data, &p); err != nil {
				log.Printf("Bad push: %v", err)
				continue
			}
			log.Printf("<- PUSH %s: %s", p.Topic, string(p.Data))
		default:
			log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		}
	}
}

func parseCoordinate(lat, lon string) (geo.Coordinate, bool) {
	la, err1 := strconv.ParseFloat(lat, 64)
	lo, err2 := strconv.ParseFloat(lon, 64)
	return geo.Coordinate{Latitude: la, Longitude: lo}, err1 == nil && err2 == nil
}

const usage = `commands:
  create                      create a room and become its host
  join CODE                   join a room by short id
  leave                       leave the current room
  start LAT LON RADIUS DUR    start the room, e.g. start 59.33 18.07 1500 45m
  pos LAT LON                 send a position
  end                         end the game
  get | history | stats`

func main() {
	addr := flag.String("addr", "localhost:8080", "game server address")
	player := flag.String("player", "", "player id")
	name := flag.String("name", "", "display name")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	c := &client{conn: network.NewWSConnection(ws), playerID: *player}
	defer c.conn.Close()

	done := make(chan struct{})
	go c.readLoop(done)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	log.Println(usage)
	self := map[string]string{"id": *player, "name": *name}
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			return
		case line := <-lines:
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "create":
				c.send(network.MsgTypeCreateRoom, map[string]any{"player": self})
			case "join":
				if len(fields) != 2 {
					log.Println(usage)
					continue
				}
				c.send(network.MsgTypeJoinRoom, map[string]any{"room": fields[1], "player": self})
			case "leave":
				c.send(network.MsgTypeLeaveRoom, map[string]any{})
			case "start":
				if len(fields) != 5 {
					log.Println(usage)
					continue
				}
				at, ok := parseCoordinate(fields[1], fields[2])
				radius, err := strconv.ParseFloat(fields[3], 64)
				if !ok || err != nil {
					log.Println(usage)
					continue
				}
				c.send(network.MsgTypeStartRoom, map[string]any{"hostLocation": at, "radius": radius, "duration": fields[4]})
			case "pos":
				if len(fields) != 3 {
					log.Println(usage)
					continue
				}
				at, ok := parseCoordinate(fields[1], fields[2])
				if !ok {
					log.Println(usage)
					continue
				}
				c.send(network.MsgTypeUpdatePosition, map[string]any{"location": at})
			case "end":
				c.send(network.MsgTypeEndRoom, map[string]any{})
			case "get":
				c.mu.Lock()
				roomID := c.roomID
				c.mu.Unlock()
				c.send(network.MsgTypeGetRoom, map[string]any{"room": roomID})
			case "history":
				c.send(network.MsgTypeRoomHistory, map[string]any{})
			case "stats":
				c.send(network.MsgTypePlayerStats, map[string]any{})
			default:
				log.Println(usage)
			}
		}
	}
}
