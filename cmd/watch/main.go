package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/gorilla/websocket"

	"realmclock.ai/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "event stream url")
		name   = flag.String("name", "watch", "observer name")
		worlds = flag.String("worlds", "", "comma-separated world ids (default: all)")
		key    = flag.String("key", "", "only print events with this content key")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[watch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(helloFor(*name, *worlds)); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Printf("read: %v", err)
			}
			return
		}
		line, err := render(msg, *key)
		if err != nil {
			logger.Printf("decode: %v", err)
			continue
		}
		if line != "" {
			fmt.Println(line)
		}
	}
}

func helloFor(name, worlds string) protocol.HelloMsg {
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ObserverName:    name,
	}
	for _, id := range strings.Split(worlds, ",") {
		if id = strings.TrimSpace(id); id != "" {
			hello.WorldIDs = append(hello.WorldIDs, id)
		}
	}
	return hello
}

// render formats one stream message. It returns "" for messages that should not be printed.
func render(msg []byte, key string) (string, error) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return "", err
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return "", err
		}
		scope := "all"
		if len(w.WorldIDs) > 0 {
			scope = strings.Join(w.WorldIDs, ",")
		}
		return fmt.Sprintf("WELCOME observer_id=%s worlds=%s", w.ObserverID, scope), nil

	case protocol.TypeEvent:
		var ev protocol.EventMsg
		if err := json.Unmarshal(msg, &ev); err != nil {
			return "", err
		}
		if key != "" && ev.Event.ContentKey != key {
			return "", nil
		}
		return fmt.Sprintf("#%d %s %s %s", ev.Cursor, ev.ObservedAt, ev.WorldID, formatEvent(ev.Event)), nil
	}
	return "", nil
}

func formatEvent(ev protocol.Event) string {
	var b strings.Builder
	b.WriteString(ev.ContentKey)
	keys := make([]string, 0, len(ev.Tokens))
	for k := range ev.Tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, ev.Tokens[k])
	}
	return b.String()
}
