package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	grocernet "github.com/yyashhp/sim-exchange/internal/net"
)

// A minimal interactive client for manual play. Commands:
//
//	create
//	join <name>
//	start
//	buy|sell <product> <qty> [price]   (price omitted = market order)
//	cancel <order_id>
//	leave | reset | quit
//
// Names are unique among currently joined players (case-insensitive); a
// name freed by a leave can be taken again.
func main() {
	serverAddr := flag.String("server", "ws://127.0.0.1:8080/ws", "Exchange websocket URL")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*serverAddr, nil)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	// Print server frames (replies and events) as they come.
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				fmt.Println("connection closed:", err)
				os.Exit(0)
			}
			fmt.Printf("<- %s\n", raw)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	reqID := 0
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		reqID++
		cmd, err := buildCommand(fields, strconv.Itoa(reqID))
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if cmd == nil {
			return
		}
		if err := conn.WriteJSON(cmd); err != nil {
			log.Fatalf("write failed: %v", err)
		}
	}
}

func buildCommand(fields []string, reqID string) (*grocernet.Command, error) {
	cmd := &grocernet.Command{ReqID: reqID}
	switch fields[0] {
	case "quit":
		return nil, nil
	case "create":
		cmd.Cmd = grocernet.CmdCreateSession
	case "join":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: join <name>")
		}
		cmd.Cmd = grocernet.CmdJoin
		cmd.Payload = marshal(grocernet.JoinPayload{Name: fields[1]})
	case "start":
		cmd.Cmd = grocernet.CmdStart
	case "leave":
		cmd.Cmd = grocernet.CmdLeave
	case "reset":
		cmd.Cmd = grocernet.CmdReset
	case "cancel":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: cancel <order_id>")
		}
		cmd.Cmd = grocernet.CmdCancelOrder
		cmd.Payload = marshal(grocernet.CancelOrderPayload{OrderID: fields[1]})
	case "buy", "sell":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: %s <product> <qty> [price]", fields[0])
		}
		qty, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad quantity %q", fields[2])
		}
		payload := grocernet.SubmitOrderPayload{
			Product:  fields[1],
			Side:     fields[0],
			Type:     "market",
			Quantity: qty,
		}
		if len(fields) > 3 {
			price, err := strconv.ParseInt(fields[3], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad price %q", fields[3])
			}
			payload.Type = "limit"
			payload.Price = price
		}
		cmd.Cmd = grocernet.CmdSubmitOrder
		cmd.Payload = marshal(payload)
	default:
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}
	return cmd, nil
}

func marshal(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
