package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Message types matching the server
type ClientMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type UtterancePayload struct {
	Text string `json:"text"`
}

type ServerMessage struct {
	Type    string          `json:"type"`
	CallID  string          `json:"callId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type PromptPayload struct {
	Text      string            `json:"text"`
	State     string            `json:"state"`
	Valid     bool              `json:"isValid"`
	Data      map[string]string `json:"collectedData"`
	Complete  bool              `json:"isComplete"`
	Escalated bool              `json:"isEscalated"`
}

type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func main() {
	// Flags
	serverURL := flag.String("server", "ws://localhost:8080/ws", "WebSocket server URL")
	script := flag.String("script", "", "Comma-separated answers to send instead of reading stdin")
	flag.Parse()

	log.Printf("🔌 Connecting to %s...", *serverURL)

	// Connect to server
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Println("✅ Connected!")

	// Handle interrupt
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	prompts := make(chan struct{}, 1)

	// Read responses from server
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}

			var msg ServerMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				log.Println("Parse error:", err)
				continue
			}

			switch msg.Type {
			case "prompt":
				var payload PromptPayload
				json.Unmarshal(msg.Payload, &payload)
				marker := "🤖"
				if !payload.Valid {
					marker = "🔁"
				}
				fmt.Printf("%s [%s] %s\n", marker, payload.State, payload.Text)
				select {
				case prompts <- struct{}{}:
				default:
				}

			case "summary":
				fmt.Printf("📋 Summary: %s\n", string(msg.Payload))

			case "status":
				var payload StatusPayload
				json.Unmarshal(msg.Payload, &payload)
				log.Printf("📊 Status: %s %s", payload.Status, payload.Message)

			case "error":
				log.Printf("❌ Error: %s", string(msg.Payload))
			}
		}
	}()

	answers := make(chan string)
	go func() {
		defer close(answers)
		if *script != "" {
			for _, a := range strings.Split(*script, ",") {
				answers <- strings.TrimSpace(a)
			}
			return
		}
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			answers <- scanner.Text()
		}
	}()

	for {
		// Wait for the next question before answering
		select {
		case <-prompts:
		case <-done:
			log.Println("Connection closed")
			return
		case <-interrupt:
			log.Println("\n👋 Interrupted, closing...")
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-time.After(30 * time.Second):
			log.Println("⏰ Timeout waiting for prompt")
			return
		}

		answer, ok := <-answers
		if !ok {
			end := ClientMessage{Type: "control", Payload: map[string]string{"action": "end"}}
			_ = conn.WriteJSON(end)
			<-done
			return
		}
		fmt.Printf("🗣️  %s\n", answer)
		if err := conn.WriteJSON(ClientMessage{Type: "utterance", Payload: UtterancePayload{Text: answer}}); err != nil {
			log.Printf("Send error: %v", err)
			return
		}
	}
}
