// Command aqualight drives aquarium LED channels from daily schedules and
// exposes the control protocol over websocket and MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/aqualight/internal/clock"
	"github.com/sweeney/aqualight/internal/config"
	"github.com/sweeney/aqualight/internal/logic"
	"github.com/sweeney/aqualight/internal/mqtt"
	"github.com/sweeney/aqualight/internal/protocol"
	"github.com/sweeney/aqualight/internal/pwm"
	"github.com/sweeney/aqualight/internal/restart"
	"github.com/sweeney/aqualight/internal/settings"
	"github.com/sweeney/aqualight/internal/status"
	"github.com/sweeney/aqualight/internal/web"
)

// eventQueue bounds transport messages waiting for the control loop.
const eventQueue = 32

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (empty for built-in defaults)")
	fs.String("http", "", "HTTP status/websocket address (empty string disables)")
	fs.String("broker", "", "MQTT broker address")
	fs.String("data", "", "Directory holding the settings document")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	printState := fs.Bool("print-state", false, "Print current channel levels and exit")
	fs.Parse(os.Args[1:])

	cfg, err := loadConfig(*configPath, fs)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	level, _ := log.ParseLevel(cfg.LogLevel) // validated by loadConfig
	log.SetLevel(level)

	if *printState {
		if err := printLevels(os.Stdout, cfg); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file, if any, and applies flags the user set
// explicitly on top of it.
func loadConfig(path string, fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "http":
			cfg.HTTP.Addr = v
		case "broker":
			cfg.MQTT.Broker = v
		case "data":
			cfg.Storage.Dir = v
		case "log-level":
			cfg.LogLevel = v
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printLevels loads the stored settings and prints the level every active
// channel would have right now. Nothing is written.
func printLevels(w io.Writer, cfg *config.Config) error {
	codec := settings.NewCodec(settings.DirStorage{Dir: cfg.Storage.Dir})
	engine, err := codec.Load()
	if err != nil {
		log.WithError(err).Warn("settings unavailable, showing defaults")
		engine = settings.Defaults()
	}
	clk := clock.NewSystem(time.Now, func() int { return engine.Timezone })
	engine.Update(clk.SecondsSinceMidnight())
	for i, ch := range engine.Active() {
		fmt.Fprintf(w, "%d %-20s %-9s %5.1f%%\n", i, ch.Name, ch.Mode, ch.Value)
	}
	fmt.Fprintf(w, "power: %.1f W\n", engine.CurrentPower())
	return nil
}

func run(cfg *config.Config) error {
	codec := settings.NewCodec(settings.DirStorage{Dir: cfg.Storage.Dir})
	engine, err := settings.LoadOrDefault(codec)
	if err != nil {
		log.WithError(err).Error("could not persist default settings")
	}
	clk := clock.NewSystem(time.Now, func() int { return engine.Timezone })

	backends, closeHW, err := openBackends(cfg.PWM)
	if err != nil {
		return err
	}
	defer closeHW()

	dispatcher := pwm.NewDispatcher(&engine, clk, backends)
	defer dispatcher.Close()

	events := make(chan protocol.Event, eventQueue)

	publisher := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Prefix:   cfg.MQTT.TopicPrefix,
		Buffer:   cfg.MQTT.Buffer,
		Commands: events,
	})
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:         cfg.PWM.Poll.Milliseconds(),
		HeartbeatMs:    cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
		DataDir:        cfg.Storage.Dir,
		PCA9685Address: cfg.PWM.PCA9685Address,
		RestartMode:    string(cfg.Restart.Mode),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	restarter, err := restart.New(cfg.Restart.Mode, cfg.Restart.Delay)
	if err != nil {
		return err
	}
	restarter.Before = restartNotice(publisher, tracker, time.Now)

	d := &daemon{
		engine: &engine,
		pwm:    dispatcher,
		proto: &protocol.Dispatcher{
			Engine:    &engine,
			PWM:       dispatcher,
			Store:     codec,
			Clock:     clk,
			Restarter: restarter,
			Now:       time.Now,
		},
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		heartbeat:  cfg.MQTT.Heartbeat,
		now:        time.Now,
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, codec.Raw, events)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http server listening on %s", cfg.HTTP.Addr)
	}

	log.WithFields(log.Fields{
		"channels":  engine.ActiveCount(),
		"generator": engine.Generator,
		"frequency": engine.Frequency,
		"broker":    cfg.MQTT.Broker,
		"poll":      cfg.PWM.Poll,
		"heartbeat": cfg.MQTT.Heartbeat,
	}).Info("started")

	ticker := time.NewTicker(cfg.PWM.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	return d.runLoop(ctx, events, ticker.C, sigCh)
}

// daemon is the state owned by the control loop.
type daemon struct {
	engine     *logic.Engine
	pwm        *pwm.Dispatcher
	proto      *protocol.Dispatcher
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  time.Duration // 0 disables
	now        func() time.Time

	lastState     mqtt.State
	lastHeartbeat time.Time
}

// runLoop is the only goroutine touching the engine. Transports feed it
// events; the ticker drives hardware pushes.
func (d *daemon) runLoop(ctx context.Context, events <-chan protocol.Event, tick <-chan time.Time, sig <-chan os.Signal) error {
	start := d.now()
	d.lastHeartbeat = start

	// Push once at startup so the lights do not wait for the first tick.
	if _, err := d.pwm.Tick(start, true); err != nil {
		log.WithError(err).Error("initial pwm push")
	}
	d.refresh(start)
	publishSystem(d.publisher, d.tracker, d.mqttStatus, "STARTUP", "", start)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			publishSystem(d.publisher, d.tracker, d.mqttStatus, "SHUTDOWN", signalName, d.now())
			return nil

		case ev := <-events:
			if err := d.proto.HandleEvent(ctx, ev); err != nil {
				log.WithError(err).WithField("conn", ev.Conn).Warn("request failed")
			}
			d.refresh(d.now())

		case <-tick:
			t := d.now()
			if _, err := d.pwm.Tick(t, false); err != nil {
				log.WithError(err).Error("pwm tick")
			}
			d.refresh(t)

			if d.heartbeat > 0 && t.Sub(d.lastHeartbeat) >= d.heartbeat {
				d.lastHeartbeat = t
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					d.tracker.SetNetwork(net)
				}
				publishSystem(d.publisher, d.tracker, d.mqttStatus, "HEARTBEAT", "", t)
			}
		}
	}
}

// refresh publishes engine state to the tracker and, when a channel changed,
// to the retained MQTT state topic.
func (d *daemon) refresh(t time.Time) {
	d.tracker.Update(d.engine, d.pwm.LastPush(), d.pwm.Pushes())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}

	state := mqtt.NewState(d.engine, t)
	if !state.Changed(d.lastState) {
		return
	}
	if err := d.publisher.PublishState(state); err != nil {
		// Don't crash on publish failure; retried on the next change check.
		log.WithError(err).Warn("state publish failed")
		return
	}
	d.lastState = state
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
// STARTUP and SHUTDOWN are retained so late subscribers see the last one.
func publishSystem(pub mqtt.Publisher, tracker *status.Tracker, conn mqtt.ConnectionStatus, event, reason string, ts time.Time) {
	if conn != nil {
		tracker.SetMQTTConnected(conn.IsConnected())
	}
	snap := tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  ts,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := pub.PublishSystem(se); err != nil {
		log.WithError(err).WithField("event", event).Warn("system event publish failed")
		return
	}
	log.WithField("event", event).Debug("published system event")
}

// restartNotice announces a pending restart. Outputs and the MQTT session are
// left running: exec and reboot tear them down, and a failed restart hands
// control back to the loop.
func restartNotice(pub mqtt.Publisher, tracker *status.Tracker, now func() time.Time) func() {
	return func() {
		publishSystem(pub, tracker, nil, "SHUTDOWN", "RESTART", now())
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
