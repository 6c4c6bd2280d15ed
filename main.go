package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"tracker_gateway/config"
	"tracker_gateway/internal/command"
	"tracker_gateway/internal/db"
	"tracker_gateway/internal/directory"
	"tracker_gateway/internal/downstream"
	"tracker_gateway/internal/http"
	"tracker_gateway/internal/http/controllers"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/protocol/huabao"
	"tracker_gateway/internal/protocol/manpower"
	"tracker_gateway/internal/protocol/tr900"
	"tracker_gateway/internal/session"
	"tracker_gateway/internal/tcp"
	"tracker_gateway/internal/udp"
	"tracker_gateway/pkg/colors"
)

func main() {
	colors.PrintBanner()

	if err := godotenv.Load(); err != nil {
		colors.PrintWarning("no .env file found, using system environment variables")
	} else {
		colors.PrintSuccess("environment configuration loaded from .env file")
	}

	cfg := config.Load()

	var lookup directory.Lookup
	if err := db.Initialize(cfg.DatabaseDSN); err != nil {
		colors.PrintWarning("database unavailable (%v), falling back to in-memory device directory", err)
		lookup = directory.NewMemoryLookup(true)
	} else {
		defer db.Close()
		lookup = directory.NewGormLookup(db.GetDB(), true)
		colors.PrintSuccess("device directory backed by postgres")
	}

	registry := session.NewRegistry(lookup, cfg.IdleTimeout)
	dispatcher := command.NewDispatcher()

	hub := downstream.NewWebSocketHub()
	go hub.Run()
	pipeline := downstream.NewMultiPipeline(downstream.NewLoggingPipeline(), hub)

	adminTokenHash := ""
	if cfg.AdminToken != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminToken), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash admin token: %v", err)
		}
		adminTokenHash = string(hash)
		colors.PrintSuccess("admin command API enabled")
	} else {
		colors.PrintWarning("ADMIN_TOKEN not set, admin command API disabled")
	}

	huabaoCfg := cfg.Protocols["huabao"]
	tr900Cfg := cfg.Protocols["tr900"]
	manpowerCfg := cfg.Protocols["manpower"]

	huabaoEncoder := huabao.NewEncoder()

	huabaoTCP := tcp.NewServer("huabao", huabaoCfg.TCPPort,
		func() protocol.FrameDecoder { return huabao.NewFrameDecoder() },
		func() protocol.ProtocolDecoder { return huabao.NewDecoder(huabaoCfg.IgnoreFixTime) },
		huabaoEncoder, registry, dispatcher, pipeline, cfg.IdleTimeout)

	huabaoUDP := udp.NewServer("huabao", cfg.UDPPort,
		func() protocol.FrameDecoder { return huabao.NewFrameDecoder() },
		func() protocol.ProtocolDecoder { return huabao.NewDecoder(huabaoCfg.IgnoreFixTime) },
		registry, dispatcher, pipeline)

	tr900TCP := tcp.NewServer("tr900", tr900Cfg.TCPPort,
		func() protocol.FrameDecoder { return huabao.NewFrameDecoder() },
		func() protocol.ProtocolDecoder { return tr900.NewDecoder() },
		nil, registry, dispatcher, pipeline, cfg.IdleTimeout)

	manpowerTCP := tcp.NewServer("manpower", manpowerCfg.TCPPort,
		func() protocol.FrameDecoder { return huabao.NewFrameDecoder() },
		func() protocol.ProtocolDecoder { return manpower.NewDecoder() },
		nil, registry, dispatcher, pipeline, cfg.IdleTimeout)

	controlController := controllers.NewControlController(dispatcher)
	httpServer := http.NewServer(cfg.HTTPPort, registry, controlController, hub, adminTokenHash)

	colors.PrintHeader("TELEMATICS GATEWAY STARTUP")
	colors.PrintServer("📡", "Huabao TCP on :%s, UDP on :%s", huabaoCfg.TCPPort, cfg.UDPPort)
	colors.PrintServer("📡", "TR900 TCP on :%s", tr900Cfg.TCPPort)
	colors.PrintServer("📡", "ManPower TCP on :%s", manpowerCfg.TCPPort)
	colors.PrintServer("🌐", "HTTP on :%s (OwnTracks, admin API, websocket)", cfg.HTTPPort)
	colors.PrintSubHeader("HTTP endpoints")
	colors.PrintEndpoint("GET", "/health", "Health check")
	colors.PrintEndpoint("POST", "/owntracks", "OwnTracks JSON location report")
	colors.PrintEndpoint("GET", "/ws", "WebSocket downstream position feed")
	colors.PrintEndpoint("POST", "/api/v1/commands", "Admin command delivery")

	var wg sync.WaitGroup
	errorChan := make(chan error, 5)

	start := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errorChan <- fmt.Errorf("%s: %v", name, err)
			}
		}()
	}

	start("huabao tcp", huabaoTCP.Start)
	start("huabao udp", huabaoUDP.Start)
	start("tr900 tcp", tr900TCP.Start)
	start("manpower tcp", manpowerTCP.Start)
	start("http", httpServer.Start)

	stopSweep := make(chan struct{})
	if cfg.IdleTimeout > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(cfg.IdleTimeout / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n := registry.SweepIdle(time.Now()); n > 0 {
						colors.PrintDebug("idle sweep removed %d sessions", n)
					}
				case <-stopSweep:
					return
				}
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errorChan:
		colors.PrintError("server error: %v", err)
	case <-quit:
		colors.PrintShutdown()
	}

	close(stopSweep)
	huabaoTCP.Close()
	huabaoUDP.Close()
	tr900TCP.Close()
	manpowerTCP.Close()

	colors.PrintSuccess("telematics gateway shutdown complete")
}
