// chatcli is a terminal chat client used for poking at a running chat
// service: it connects the websocket facade, falls back to REST when the
// socket is down, and prints inbound events as they arrive.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/auth"
	"github.com/gaurabsunargs-sudo/HMS-sub002/pkg/chatclient"
)

func main() {
	var (
		wsURL     = flag.String("ws", "ws://localhost:8085/v1/ws", "websocket endpoint")
		apiURL    = flag.String("api", "http://localhost:8085", "REST base URL for the fallback path")
		userID    = flag.String("user", "", "this user's id (required)")
		peerID    = flag.String("peer", "", "counterpart user id (required)")
		token     = flag.String("token", "", "session token; signed locally from -jwt-secret when empty")
		jwtSecret = flag.String("jwt-secret", os.Getenv("CHAT_JWT_SECRET"), "secret for local token signing")
		e2eSecret = flag.String("secret", os.Getenv("CHAT_E2E_SECRET"), "end-to-end message secret; empty disables encryption")
	)
	flag.Parse()

	if *userID == "" || *peerID == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *token == "" {
		if *jwtSecret == "" {
			log.Fatal("either -token or -jwt-secret is required")
		}
		signed, err := auth.NewValidator(*jwtSecret).Sign(*userID)
		if err != nil {
			log.Fatalf("token signing: %v", err)
		}
		*token = signed
	}

	zl := zap.NewNop().Sugar()

	client, err := chatclient.NewClient(chatclient.Config{
		URL:     *wsURL,
		Token:   *token,
		UserID:  *userID,
		Secret:  *e2eSecret,
		Handler: printEvent(*userID),
		Logger:  zl,
	})
	if err != nil {
		log.Fatalf("client init: %v", err)
	}

	rest := chatclient.NewRestClient(chatclient.RestConfig{BaseURL: *apiURL, Token: *token}, zl)
	sender, err := chatclient.NewSender(*userID, client, rest, nil, *e2eSecret, zl)
	if err != nil {
		log.Fatalf("sender init: %v", err)
	}

	if err := client.Connect(context.Background()); err != nil {
		fmt.Printf("! socket unavailable (%v), sends go over REST\n", err)
	}
	defer client.Disconnect()

	fmt.Printf("chatting with %s. /read marks their messages read, /who lists online users, /quit exits.\n", *peerID)

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/read":
			client.MarkMessagesRead(*peerID)
		case line == "/who":
			client.RequestOnlineUsers()
		default:
			client.TypingStop(*peerID)
			if err := sender.Send(context.Background(), *peerID, line); err != nil {
				fmt.Printf("! send failed: %v\n", err)
			}
		}
	}
}

func printEvent(self string) chatclient.Handler {
	return func(e chatclient.Event) {
		switch ev := e.(type) {
		case chatclient.NewMessage:
			if ev.Unavailable {
				fmt.Printf("< [%s] (message unavailable)\n", ev.Message.SenderID)
				return
			}
			fmt.Printf("< [%s] %s\n", ev.Message.SenderID, ev.Message.Content)
		case chatclient.MessageSent:
			fmt.Printf("  sent %s\n", ev.Message.ID)
		case chatclient.UserTyping:
			if ev.Typing {
				fmt.Printf("  %s is typing...\n", ev.UserID)
			}
		case chatclient.UserOnline:
			fmt.Printf("  %s is online\n", ev.UserID)
		case chatclient.UserOffline:
			fmt.Printf("  %s went offline (last seen %s)\n", ev.UserID, ev.LastSeen.Format("15:04:05"))
		case chatclient.OnlineUsers:
			fmt.Printf("  online: %s\n", strings.Join(ev.UserIDs, ", "))
		case chatclient.MessagesRead:
			if ev.SenderID == self {
				fmt.Printf("  %d message(s) read by %s\n", len(ev.MessageIDs), ev.ReceiverID)
			}
		case chatclient.Disconnected:
			fmt.Printf("! disconnected: %v (sends fall back to REST)\n", ev.Err)
		}
	}
}
