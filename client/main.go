package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeLogin      = 2
	MsgTypeCreateRoom = 101
	MsgTypeJoinRoom   = 102
	MsgTypeGuess      = 201
	MsgTypeWildcard   = 202
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func sendJSON(c *websocket.Conn, msgID uint16, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return send(c, msgID, data)
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: client <user_id> [name]")
	}
	userID := os.Args[1]
	name := userID
	if len(os.Args) > 2 {
		name = os.Args[2]
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	if err := sendJSON(c, MsgTypeLogin, map[string]string{"user_id": userID, "name": name}); err != nil {
		log.Fatalf("Login send failed: %v", err)
	}

	fmt.Println("Commands:")
	fmt.Println("  create <solo|friends>       open a room")
	fmt.Println("  join <code>                 join a friend's room")
	fmt.Println("  guess <row> <col> <player>  answer a cell")
	fmt.Println("  hint <player>               wildcard hint")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "create":
				mode := "solo"
				if len(fields) > 1 {
					mode = fields[1]
				}
				err = sendJSON(c, MsgTypeCreateRoom, map[string]interface{}{"mode": mode, "pool": "overall", "difficulty": "normal"})
			case "join":
				if len(fields) < 2 {
					continue
				}
				err = sendJSON(c, MsgTypeJoinRoom, map[string]string{"code": fields[1]})
			case "guess":
				if len(fields) < 4 {
					continue
				}
				row, _ := strconv.Atoi(fields[1])
				col, _ := strconv.Atoi(fields[2])
				err = sendJSON(c, MsgTypeGuess, map[string]interface{}{
					"row": row, "col": col, "answer": strings.Join(fields[3:], " "),
				})
			case "hint":
				if len(fields) < 2 {
					continue
				}
				err = sendJSON(c, MsgTypeWildcard, map[string]string{"player": strings.Join(fields[1:], " ")})
			default:
				log.Printf("Unknown command: %s", fields[0])
				continue
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
