// pepper: interaction orchestrator daemon for a social humanoid robot.
// Accepts perception pushes from detector and speech collaborators over
// WebSocket, tracks people and attention, runs per-person dialogue
// sessions and drives the robot bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/socialrobotics/go-pepper/internal/config"
	"github.com/socialrobotics/go-pepper/internal/log"
	"github.com/socialrobotics/go-pepper/pkg/actuation"
	"github.com/socialrobotics/go-pepper/pkg/dialogue"
	"github.com/socialrobotics/go-pepper/pkg/gateway"
	"github.com/socialrobotics/go-pepper/pkg/orchestrator"
	"github.com/socialrobotics/go-pepper/pkg/visitlog"
	"github.com/socialrobotics/go-pepper/pkg/web"
)

var version = "1.0.0"

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)

	fmt.Println()
	fmt.Println("🤖 pepper v" + version)
	fmt.Println("   Interaction orchestrator")
	fmt.Println()

	if err := run(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// parseFlags layers configuration: defaults, then the config file, then
// environment, then explicit flags.
func parseFlags() (config.Config, error) {
	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "Path to YAML config file")
	listen := flag.String("listen", cfg.ListenAddr, "Gateway and dashboard listen address")
	robot := flag.Bool("robot", cfg.RobotEnabled, "Dial the robot bridge (false runs without a robot)")
	robotURL := flag.String("robot-url", cfg.RobotURL, "Robot bridge WebSocket URL")
	dialogueURL := flag.String("dialogue-url", cfg.DialogueURL, "Dialogue engine base URL")
	visitDriver := flag.String("visits", cfg.VisitDriver, "Visit journal driver: off, memory, sqlite, postgres")
	visitDSN := flag.String("visit-dsn", cfg.VisitDSN, "Visit journal DSN (sqlite path or postgres DSN)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	debug := flag.Bool("debug", false, "Shorthand for -log-level debug")

	flag.Parse()

	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			return cfg, err
		}
	}
	cfg.LoadEnvConfig()

	// Explicit flags beat the file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = *listen
		case "robot":
			cfg.RobotEnabled = *robot
		case "robot-url":
			cfg.RobotURL = *robotURL
		case "dialogue-url":
			cfg.DialogueURL = *dialogueURL
		case "visits":
			cfg.VisitDriver = *visitDriver
		case "visit-dsn":
			cfg.VisitDSN = *visitDSN
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if *debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func run(cfg *config.Config) error {
	store, err := openVisitStore(cfg)
	if err != nil {
		return fmt.Errorf("open visit journal: %w", err)
	}
	if store != nil {
		defer store.Close()
		fmt.Printf("📒 Visit journal: %s\n", cfg.VisitDriver)
	}

	act, err := openActuator(cfg)
	if err != nil {
		return fmt.Errorf("connect robot bridge: %w", err)
	}
	defer act.Close()

	engine, err := dialogue.NewClient(cfg.DialogueURL, cfg.DialogueDeadline)
	if err != nil {
		return fmt.Errorf("dialogue engine: %w", err)
	}
	fmt.Printf("💬 Dialogue engine: %s\n", cfg.DialogueURL)

	orch := orchestrator.New(cfg, engine, act, store)
	gw := gateway.New(orch)
	dash := web.NewServer(orch, store)
	orch.SetNotify(dash.PushStatus)

	app := fiber.New(fiber.Config{
		AppName:               "pepper",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	gw.RegisterRoutes(app)
	gw.RegisterAPIRoutes(app.Group("/api"))
	dash.RegisterRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version,
			"sources": gw.SourceCount(),
		})
	})

	dash.Start()
	defer dash.Stop()

	serveErr := make(chan error, 1)
	go func() {
		fmt.Printf("🚀 Listening on %s\n", cfg.ListenAddr)
		fmt.Printf("   Perception: ws://localhost%s/ws/perception\n", cfg.ListenAddr)
		fmt.Printf("   Dashboard:  http://localhost%s/api/status\n", cfg.ListenAddr)
		fmt.Println()
		if err := app.Listen(cfg.ListenAddr); err != nil {
			serveErr <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- orch.Run(ctx) }()

	select {
	case err := <-serveErr:
		stop()
		<-runErr
		return fmt.Errorf("server: %w", err)

	case err := <-runErr:
		fmt.Println("\n👋 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := app.ShutdownWithContext(shutdownCtx); serr != nil {
			log.Warn("server shutdown", "error", serr)
		}
		return err
	}
}

func openVisitStore(cfg *config.Config) (visitlog.Store, error) {
	switch cfg.VisitDriver {
	case "off":
		return nil, nil
	case "memory":
		return visitlog.NewMemoryStore(), nil
	default:
		store, err := visitlog.NewGormStore(cfg.VisitDriver, cfg.VisitDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func openActuator(cfg *config.Config) (actuation.Actuator, error) {
	if !cfg.RobotEnabled {
		fmt.Println("🔌 Robot bridge disabled; commands complete instantly")
		return actuation.NewNop(), nil
	}

	link := actuation.NewLink(cfg.RobotURL, cfg.RobotDeadline)
	if err := link.Connect(); err != nil {
		return nil, err
	}
	fmt.Printf("🔌 Robot bridge: %s\n", cfg.RobotURL)
	return link, nil
}
