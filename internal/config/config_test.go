package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/aqualight/internal/restart"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aqualight.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":8080"
mqtt:
  broker: tcp://192.168.1.200:1883
  heartbeat: 5m
storage:
  dir: /tmp/aqua
pwm:
  poll: 250ms
  pca9685_address: 0x41
  oe_line: 17
restart:
  mode: reboot
  delay: 2s
log_level: debug
`)
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if c.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr: %q", c.HTTP.Addr)
	}
	if c.MQTT.Broker != "tcp://192.168.1.200:1883" || c.MQTT.Heartbeat != 5*time.Minute {
		t.Errorf("MQTT: %+v", c.MQTT)
	}
	if c.Storage.Dir != "/tmp/aqua" {
		t.Errorf("Storage.Dir: %q", c.Storage.Dir)
	}
	if c.PWM.Poll != 250*time.Millisecond || c.PWM.PCA9685Address != 0x41 || c.PWM.OELine != 17 {
		t.Errorf("PWM: %+v", c.PWM)
	}
	if c.Restart.Mode != restart.ModeReboot || c.Restart.Delay != 2*time.Second {
		t.Errorf("Restart: %+v", c.Restart)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel: %q", c.LogLevel)
	}

	// Untouched keys keep their defaults.
	if c.MQTT.ClientID != "aqualight" || c.PWM.OEChip != "gpiochip0" || c.MQTT.Buffer != 100 {
		t.Errorf("defaults lost: client=%q chip=%q buffer=%d", c.MQTT.ClientID, c.PWM.OEChip, c.MQTT.Buffer)
	}
}

func TestLoadRefillsZeroValues(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  client_id: ""
  topic_prefix: ""
pwm:
  poll: 0s
log_level: ""
`)
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	d := Default()
	if c.MQTT.ClientID != d.MQTT.ClientID || c.MQTT.TopicPrefix != d.MQTT.TopicPrefix {
		t.Errorf("MQTT: %+v", c.MQTT)
	}
	if c.PWM.Poll != d.PWM.Poll {
		t.Errorf("Poll: %v", c.PWM.Poll)
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel: %q", c.LogLevel)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "mqtt: [", "parse config"},
		{"bad duration", "pwm:\n  poll: soon\n", "parse config"},
		{"restart mode", "restart:\n  mode: halt\n", "restart.mode"},
		{"log level", "log_level: chatty\n", "log_level"},
		{"empty broker", "mqtt:\n  broker: \"\"\n", "mqtt.broker"},
		{"address", "pwm:\n  pca9685_address: 0x80\n", "pca9685_address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
