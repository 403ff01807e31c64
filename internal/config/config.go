// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/aqualight/internal/gpio"
	"github.com/sweeney/aqualight/internal/restart"
)

// Config is the daemon configuration. Lighting settings are not part of it;
// they live in the settings document under Storage.Dir.
type Config struct {
	HTTP     HTTPConfig    `yaml:"http"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
	Storage  StorageConfig `yaml:"storage"`
	PWM      PWMConfig     `yaml:"pwm"`
	Restart  RestartConfig `yaml:"restart"`
	LogLevel string        `yaml:"log_level"`
}

// HTTPConfig configures the status page and websocket server.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// MQTTConfig configures state publishing and the command topic.
type MQTTConfig struct {
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	TopicPrefix string        `yaml:"topic_prefix"`
	Heartbeat   time.Duration `yaml:"heartbeat"` // 0 disables
	Buffer      int           `yaml:"buffer"`    // messages kept while offline
}

// StorageConfig locates the settings document.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// PWMConfig configures the PWM hardware.
type PWMConfig struct {
	Poll           time.Duration `yaml:"poll"`
	I2CBus         string        `yaml:"i2c_bus"` // periph bus name, empty for the first bus
	PCA9685Address uint16        `yaml:"pca9685_address"`
	OEChip         string        `yaml:"oe_chip"`
	OELine         int           `yaml:"oe_line"` // -1 when /OE is tied low
}

// RestartConfig configures operator-requested restarts.
type RestartConfig struct {
	Mode  restart.Mode  `yaml:"mode"`
	Delay time.Duration `yaml:"delay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Addr: ":80"},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "aqualight",
			TopicPrefix: "aqualight",
			Heartbeat:   15 * time.Minute,
			Buffer:      100,
		},
		Storage: StorageConfig{Dir: "/var/lib/aqualight"},
		PWM: PWMConfig{
			Poll:           time.Second,
			PCA9685Address: 0x40,
			OEChip:         gpio.DefaultChip,
			OELine:         gpio.DefaultLine,
		},
		Restart: RestartConfig{
			Mode:  restart.ModeProcess,
			Delay: restart.DefaultDelay,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyDefaults refills values explicitly set to zero where zero is unusable.
func applyDefaults(c *Config) {
	d := Default()
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = d.MQTT.ClientID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = d.MQTT.TopicPrefix
	}
	if c.MQTT.Buffer <= 0 {
		c.MQTT.Buffer = d.MQTT.Buffer
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = d.Storage.Dir
	}
	if c.PWM.Poll <= 0 {
		c.PWM.Poll = d.PWM.Poll
	}
	if c.PWM.PCA9685Address == 0 {
		c.PWM.PCA9685Address = d.PWM.PCA9685Address
	}
	if c.PWM.OEChip == "" {
		c.PWM.OEChip = d.PWM.OEChip
	}
	if c.Restart.Mode == "" {
		c.Restart.Mode = d.Restart.Mode
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("config: mqtt.broker is required")
	}
	if !c.Restart.Mode.Valid() {
		return fmt.Errorf("config: restart.mode %q must be %q or %q", c.Restart.Mode, restart.ModeProcess, restart.ModeReboot)
	}
	if c.PWM.PCA9685Address > 0x7F {
		return fmt.Errorf("config: pwm.pca9685_address %#x is not a 7-bit address", c.PWM.PCA9685Address)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	return nil
}
