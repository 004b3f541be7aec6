// pepper-sim: demo rig for the pepper orchestrator. Serves a fake
// robot bridge and a fake dialogue engine, and plays a scripted
// visitor against the daemon's perception gateway, so the whole
// pipeline runs on one machine with no robot and no Rasa.
//
// Start the daemon against the sim:
//
//	pepper -robot-url ws://localhost:9090 -dialogue-url http://localhost:5005
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"
)

var (
	gatewayURL  = flag.String("gateway", "ws://localhost:8080", "pepper gateway base URL")
	bridgeAddr  = flag.String("bridge-listen", ":9090", "fake robot bridge listen address")
	engineAddr  = flag.String("engine-listen", ":5005", "fake dialogue engine listen address")
	skipVisitor = flag.Bool("no-visitor", false, "serve bridge and engine only, no scripted visitor")
	loopVisitor = flag.Bool("loop", false, "replay the visitor scenario until interrupted")
)

func main() {
	flag.Parse()

	fmt.Println()
	fmt.Println("🎭 pepper-sim")
	fmt.Println("   Fake robot bridge, fake dialogue engine, scripted visitor")
	fmt.Println()

	go serveBridge(*bridgeAddr)
	go serveEngine(*engineAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*skipVisitor {
		go visitorLoop(ctx, *gatewayURL, *loopVisitor)
	}

	<-ctx.Done()
	fmt.Println("\n👋 Bye")
}

func visitorLoop(ctx context.Context, gateway string, loop bool) {
	// Give the operator a moment to start the daemon.
	if !pause(ctx, 3*time.Second) {
		return
	}

	for {
		if err := runVisitor(ctx, gateway); err != nil {
			fmt.Printf("⚠️  Visitor script: %v\n", err)
		}
		if !loop {
			fmt.Println("🎬 Scenario complete; bridge and engine stay up (Ctrl+C to exit)")
			return
		}
		fmt.Println("🎬 Scenario complete; next visitor in 10s")
		if !pause(ctx, 10*time.Second) {
			return
		}
	}
}

func pause(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
