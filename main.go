package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/pflag"

	. "github.com/elijahnyp/office_controller/util"
)

func main() {
	LogInit("info")
	if err := BindFlags(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		Logger.Error().Msgf("bad arguments: %v", err)
		os.Exit(2)
	}
	SetupConfig()
	LogInit(Config.GetString("log_level"))

	switch strings.ToLower(Config.GetString("mode")) {
	case MODE_DEMO:
		runDemo(os.Stdout)
	case MODE_SERVE:
		serve()
	default:
		Logger.Error().Msgf("unknown mode %q", Config.GetString("mode"))
		os.Exit(2)
	}
}

func serve() {
	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(func() {
		if err := models.Reload(); err != nil {
			Logger.Error().Msgf("Error building model: %v", err)
		}
	})
	RegisterNewConfigListener(configureOffice)
	RegisterNewConfigListener(subscribeOfficeTopics)
	RegisterMQTTConnectHook("haadvertise", func(client MQTT.Client) {
		AdvertiseHA(*models.Load(), client)
		publishAllRooms()
	})
	RegisterNewConfigListener(MqttInit)
	OnNewConfig()
	Init()

	monitor := NewMonitorServer()
	monitor.AddHandler("/api/status", APISystemStatus)
	monitor.AddHandler("/api/room", APIRoomDetail)
	monitor.AddHandler("/api/book", APIBook)
	monitor.AddHandler("/api/cancel", APICancel)
	monitor.AddHandler("/api/occupants", APIOccupants)
	monitor.AddHandler("/api/capacity", APICapacity)
	monitor.AddHandler("/sign", RoomSign)
	monitor.AddHandler("/ws", ServeWebSocket)
	if err := monitor.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
	RegisterNewConfigListener(func() { monitor.Restart() })

	RegisterNewConfigListener(restartCounterPoller)
	restartCounterPoller()

	Logger.Info().Msg("ready")
	go OnlinePinger()
	go HAAdvertiser()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	Logger.Info().Msg("shutting down")
	stopCounterPoller()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := monitor.Shutdown(shutdownCtx); err != nil {
		Logger.Warn().Msgf("Error shutting down monitor server: %v", err)
	}
	if Client != nil && Client.IsConnected() {
		if err := Publish(OnlineTopic(), "offline"); err != nil {
			Logger.Debug().Msgf("offline message not sent: %v", err)
		}
		Client.Disconnect(1000)
	}
}

var (
	counterMu     sync.Mutex
	counterPoller *CounterPoller
)

// restartCounterPoller replaces the running counter poller with one built
// from the current config.
func restartCounterPoller() {
	counterMu.Lock()
	defer counterMu.Unlock()
	if counterPoller != nil {
		counterPoller.Stop()
		counterPoller = nil
	}
	poller, err := MakeCounterPoller(countFromCounter)
	if err != nil {
		Logger.Error().Msgf("counter poller not started: %v", err)
		return
	}
	poller.Start()
	counterPoller = poller
}

func stopCounterPoller() {
	counterMu.Lock()
	defer counterMu.Unlock()
	if counterPoller != nil {
		counterPoller.Stop()
		counterPoller = nil
	}
}

func countFromCounter(room int, count int) {
	if _, err := ApplyCount(room, count, "counter"); err != nil {
		Logger.Warn().Msgf("counter for room %d dropped: %v", room, err)
	}
}

// online pinger
func OnlinePinger() {
	for {
		if err := Publish(OnlineTopic(), "online"); err != nil {
			Logger.Debug().Msgf("online ping not sent: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}

// HAAdvertiser re-sends Home Assistant discovery every 5 minutes
func HAAdvertiser() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if Client != nil && Client.IsConnected() {
			Logger.Debug().Msg("Advertising Home Assistant discovery messages")
			AdvertiseHA(*models.Load(), Client)
		}
	}
}
