// Command watch follows one TTS request until it reaches a terminal status,
// merging the polled status endpoint with realtime change notifications.
//
// Usage:
//
//	watch -request <request-id> -token <jwt>
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"voiceclone-backend/internal/config"
	"voiceclone-backend/internal/models"
	"voiceclone-backend/internal/queue"
	"voiceclone-backend/internal/supabase"
)

func main() {
	requestID := flag.String("request", "", "request id to watch")
	token := flag.String("token", "", "bearer token for the status endpoint")
	flag.Parse()

	if *requestID == "" {
		log.Fatal("-request is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var subscriber queue.Subscriber
	if cfg.DatabaseURL != "" {
		realtimeClient, err := supabase.NewRealtimeClient(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: realtime unavailable, polling only: %v", err)
		} else {
			defer realtimeClient.Close()
			subscriber = queue.NewRealtimeSubscriber(realtimeClient)
		}
	}

	fetcher := queue.NewHTTPFetcher(cfg.BaseURL, *token)

	monitor := queue.NewMonitor(*requestID, fetcher, subscriber, queue.Options{
		OnChange: func(snap queue.Snapshot) {
			log.Printf("[%s] %s", snap.Status, queue.StatusMessage(snap.Status, snap.Position))
			if snap.IsCompleted() && snap.AudioURL != "" {
				log.Printf("audio: %s", snap.AudioURL)
			}
			if snap.Status == models.StatusFailed && snap.ErrorMessage != "" {
				log.Printf("error: %s", snap.ErrorMessage)
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	monitor.Start(ctx)
	defer monitor.Stop()

	select {
	case <-monitor.Done():
	case <-ctx.Done():
	}

	snap := monitor.Snapshot()
	if !snap.IsTerminal() {
		log.Printf("stopped before terminal status (last: %s)", snap.Status)
	}
}
