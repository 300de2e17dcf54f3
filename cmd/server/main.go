package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ink-blade/internal/api"
	"ink-blade/internal/config"
	"ink-blade/internal/game"
	"ink-blade/internal/render"
	"ink-blade/internal/tuning"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🗡️ ================================")
	log.Println("🗡️  INK BLADE - COMBAT SERVER")
	log.Println("🗡️ ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	loopCfg := appConfig.Loop
	paths := appConfig.Paths
	serverCfg := appConfig.Server

	// Tuning is fatal at startup; later reloads fall back to what is running
	tune, err := tuning.Load(paths.Tuning)
	if err != nil {
		log.Fatalf("❌ Invalid tuning: %v", err)
	}
	if paths.Tuning != "" {
		log.Printf("🎚️ Tuning: %s (tier %s)", paths.Tuning, tune.Tier)
	} else {
		log.Printf("🎚️ Tuning: embedded defaults (tier %s)", tune.Tier)
	}

	engine, err := game.NewEngine(game.EngineConfig{
		TickRate: loopCfg.TickRate,
		Tuning:   tune,
		Seed:     loopCfg.Seed,
		Store:    game.NewFileScoreStore(paths.HighScore),
	})
	if err != nil {
		log.Fatalf("❌ Failed to create engine: %v", err)
	}
	log.Printf("🏆 High score: %d (%s)", engine.HighScore(), paths.HighScore)
	engine.SetTickObserver(api.ObserveTick)

	// Start event log
	if paths.EventLog != "" {
		if err := engine.StartEventLog(paths.EventLog); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", paths.EventLog)
		}
	}

	// Start debug server
	obsCfg := appConfig.Observability
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.Enabled = obsCfg.DebugEnabled
	debugCfg.ListenAddr = obsCfg.DebugAddr
	debugCfg.BasicAuthUser = obsCfg.BasicAuthUser
	debugCfg.BasicAuthPass = obsCfg.BasicAuthPass
	if err := api.StartDebugServer(debugCfg); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	// Debug frame renderer
	var frames api.FrameRenderer
	if renderCfg := appConfig.Render; renderCfg.Enabled {
		fontPath := renderCfg.FontPath
		if fontPath == "" {
			fontPath = render.DefaultConfig().FontPath
		}
		frames = api.TimedRenderer(render.NewRenderer(render.Config{
			Width:    renderCfg.Width,
			Height:   renderCfg.Height,
			FontPath: fontPath,
		}))
		log.Printf("🖼️ Frame renderer: %dx%d", renderCfg.Width, renderCfg.Height)
	}

	limits := api.DefaultRateLimitConfig
	limits.RequestsPerSecond = serverCfg.RequestsPerSecond
	limits.Burst = serverCfg.Burst

	server := api.NewServer(engine, api.ServerConfig{
		Addr:              ":" + strconv.Itoa(serverCfg.Port),
		BroadcastInterval: serverCfg.BroadcastInterval,
		CORSOrigins:       serverCfg.CORSOrigins,
		RateLimit:         limits,
		OperatorToken:     serverCfg.OperatorToken,
		SecureCookie:      serverCfg.SecureCookie,
		TuningSource:      func() (*tuning.Tuning, error) { return tuning.Load(paths.Tuning) },
		Renderer:          frames,
	})

	// Hot reload of the tuning file
	var watcher *tuning.Watcher
	if paths.Tuning != "" {
		watcher, err = tuning.NewWatcher(paths.Tuning)
		if err != nil {
			log.Printf("⚠️ Tuning hot reload disabled: %v", err)
		} else {
			go watchTuning(watcher, engine, paths.Tuning)
			log.Printf("👀 Watching %s for changes", paths.Tuning)
		}
	}

	// Start game engine
	engine.Start()
	log.Println("✅ Game Engine started")

	stopStats := make(chan struct{})
	go mirrorEventLogStats(engine, stopStats)

	// Start API server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("🌐 API: http://localhost:%d/api/state", serverCfg.Port)
	log.Println("🕹️ POST /api/match/start, then stream input over /ws")

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	close(stopStats)
	if watcher != nil {
		watcher.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}

	engine.Stop()
	engine.StopEventLog()
	log.Println("👋 Goodbye!")
}

// watchTuning re-reads the tuning file on every change. A file that fails
// to parse or validate is reported and the running tuning stays in force.
func watchTuning(w *tuning.Watcher, engine *game.Engine, path string) {
	for {
		select {
		case _, ok := <-w.Events:
			if !ok {
				return
			}
			t, err := tuning.Load(path)
			if err != nil {
				log.Printf("⚠️ Tuning reload rejected, keeping previous: %v", err)
				continue
			}
			if err := engine.ApplyTuning(t); err != nil {
				log.Printf("⚠️ Tuning reload rejected, keeping previous: %v", err)
				continue
			}
			log.Printf("🎚️ Tuning reloaded from %s (tier %s)", path, t.Tier)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️ Tuning watcher error: %v", err)
		}
	}
}

func mirrorEventLogStats(engine *game.Engine, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			api.UpdateEventLogStats(engine.EventLogCounts())
		}
	}
}
