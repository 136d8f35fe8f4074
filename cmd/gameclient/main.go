// Command gameclient is an interactive websocket client for manual
// testing of the game server. It connects, joins a game, prints every
// frame the server sends, and turns stdin lines into game events:
//
//	start            start a round
//	pass             pass the current round
//	extend           ask for a time extension
//	anime <id>       relay the next anime id
//	say <text>       send a message-with-ack probe
//
// Run two instances with the same -game id to exercise pairing and
// broadcasts end to end.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	addr   = flag.String("addr", "localhost:3000", "server host:port")
	gameID = flag.String("game", "", "game id to join (required)")
	player = flag.String("player", "", "player id to join as (required)")
)

// envelope mirrors the server's wire frame.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   int64           `json:"ack,omitempty"`
}

func main() {
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *gameID == "" || *player == "" {
		flag.Usage()
		os.Exit(2)
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", u.String()).Msg("dial failed")
	}
	defer conn.Close()

	// Print everything the server sends.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				log.Info().Err(err).Msg("connection closed")
				return
			}
			log.Info().Str("event", env.Event).RawJSON("data", dataOrNull(env.Data)).Int64("ack", env.Ack).Msg("received")
		}
	}()

	join, _ := json.Marshal(map[string]string{"game_id": *gameID, "player_id": *player})
	send(conn, envelope{Event: "join_game", Data: join, Ack: 1})

	scanner := bufio.NewScanner(os.Stdin)
	ack := int64(1)
	for scanner.Scan() {
		select {
		case <-done:
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
		case "start":
			send(conn, envelope{Event: "start game"})
		case "pass":
			send(conn, envelope{Event: "pass"})
		case "extend":
			send(conn, envelope{Event: "extend"})
		case "anime":
			id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
			if err != nil {
				fmt.Fprintln(os.Stderr, "usage: anime <id>")
				continue
			}
			data, _ := json.Marshal(id)
			send(conn, envelope{Event: "send anime", Data: data})
		case "say":
			ack++
			data, _ := json.Marshal(arg)
			send(conn, envelope{Event: "message-with-ack", Data: data, Ack: ack})
		case "quit", "exit":
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (start, pass, extend, anime <id>, say <text>)\n", cmd)
		}
	}
}

func send(conn *websocket.Conn, env envelope) {
	if err := conn.WriteJSON(env); err != nil {
		log.Fatal().Err(err).Msg("write failed")
	}
}

func dataOrNull(data json.RawMessage) []byte {
	if len(data) == 0 {
		return []byte("null")
	}
	return data
}
