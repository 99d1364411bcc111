package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/room4-2/callintake/callflow"
	"github.com/room4-2/callintake/config"
	"github.com/room4-2/callintake/engine"
	"github.com/room4-2/callintake/gemini"
	"github.com/room4-2/callintake/profile"
	"github.com/room4-2/callintake/session"
	"go.uber.org/zap"
)

// Runs one intake call in-process against stdin, rephrasing prompts with
// Gemini when GEMINI_API_KEY is set.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	key := cfg.BusinessProfile
	if key == "" {
		key = profile.ForFlow(cfg.Flow)
	}
	biz, err := profile.Get(key)
	if err != nil {
		log.Fatal(err)
	}
	flow, err := callflow.Lookup(cfg.Flow, biz.Name, cfg.MaxAttempts)
	if err != nil {
		log.Fatal(err)
	}

	store, err := session.NewStore(session.StoreTypeMemory)
	if err != nil {
		log.Fatalf("Failed to create session store: %v", err)
	}
	sessions := session.NewManager(cfg, store, logger)
	defer sessions.Shutdown()

	ctx := context.Background()
	opts := []engine.Option{engine.WithLogger(logger), engine.WithRephraseTimeout(cfg.RephraseTimeout)}
	if cfg.GeminiAPIKey != "" {
		r, err := gemini.NewRephraser(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, biz)
		if err != nil {
			log.Fatalf("Failed to create rephraser: %v", err)
		}
		opts = append(opts, engine.WithEnhancer(r))
	}
	eng := engine.New(flow, sessions, opts...)
	defer eng.Close()

	start, err := eng.StartCall(ctx)
	if err != nil {
		log.Fatalf("Failed to start call: %v", err)
	}
	fmt.Printf("🤖 %s\n", start.Prompt)

	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Print("> "); scanner.Scan(); fmt.Print("> ") {
		turn, err := eng.SubmitInput(ctx, start.CallID, scanner.Text())
		if err != nil {
			log.Fatalf("Failed to submit input: %v", err)
		}
		fmt.Printf("🤖 %s\n", turn.Prompt)
		if turn.State.Terminal() {
			break
		}
	}

	end, err := eng.EndCall(ctx, start.CallID)
	if err != nil {
		log.Fatalf("Failed to end call: %v", err)
	}
	fmt.Println("\n📋 Collected:")
	for _, field := range flow.RequiredFields() {
		fmt.Printf("  %-12s %s\n", field, end.Data[field])
	}
	fmt.Printf("  %-12s %s\n", "complete", strings.ToUpper(fmt.Sprint(end.Complete)))
}
