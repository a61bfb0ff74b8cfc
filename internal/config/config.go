// Package config loads lyncserver settings from a YAML or TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/abates/lync"
	"github.com/abates/lync/transport"
)

const (
	TransportSerial  = "serial"
	TransportGateway = "gateway"

	DefaultListen = "127.0.0.1:8000"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Serial struct {
	Device string `yaml:"device" toml:"device"`
	Baud   int    `yaml:"baud" toml:"baud"`
}

type Gateway struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	HTTPPort int    `yaml:"http_port" toml:"http_port"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

type Config struct {
	Transport      string  `yaml:"transport" toml:"transport"`
	Serial         Serial  `yaml:"serial" toml:"serial"`
	Gateway        Gateway `yaml:"gateway" toml:"gateway"`
	Listen         string  `yaml:"listen" toml:"listen"`
	LogLevel       string  `yaml:"log_level" toml:"log_level"`
	Verbose        bool    `yaml:"verbose" toml:"verbose"`
	StrictChecksum bool    `yaml:"strict_checksum" toml:"strict_checksum"`
}

func Default() Config {
	return Config{
		Transport: TransportSerial,
		Serial: Serial{
			Device: transport.DefaultDevice,
			Baud:   transport.DefaultBaud,
		},
		Gateway: Gateway{
			Host:     transport.DefaultGatewayHost,
			Port:     transport.DefaultGatewayPort,
			HTTPPort: transport.DefaultHTTPPort,
			Username: transport.DefaultUsername,
			Password: transport.DefaultPassword,
		},
		Listen: DefaultListen,
	}
}

// Load reads path on top of the defaults. The format is chosen by extension:
// .toml for TOML, anything else is parsed as YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Transport {
	case TransportSerial:
		if c.Serial.Device == "" {
			return fmt.Errorf("%w: serial device is empty", ErrInvalidConfig)
		}
		if c.Serial.Baud <= 0 {
			return fmt.Errorf("%w: baud rate %d", ErrInvalidConfig, c.Serial.Baud)
		}
	case TransportGateway:
		if c.Gateway.Host == "" {
			return fmt.Errorf("%w: gateway host is empty", ErrInvalidConfig)
		}
		if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
			return fmt.Errorf("%w: gateway port %d", ErrInvalidConfig, c.Gateway.Port)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}
	return nil
}

// NewTransport builds the transport the configuration selects.
func (c Config) NewTransport() (lync.Transport, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Transport == TransportGateway {
		gw := transport.DefaultGatewayConfig()
		gw.Host = c.Gateway.Host
		gw.Port = c.Gateway.Port
		gw.HTTPPort = c.Gateway.HTTPPort
		gw.Username = c.Gateway.Username
		gw.Password = c.Gateway.Password
		return transport.NewGateway(gw), nil
	}
	serial := transport.DefaultSerialConfig()
	serial.Device = c.Serial.Device
	serial.Baud = c.Serial.Baud
	return transport.NewSerial(serial), nil
}

// Options turns the protocol settings into controller options.
func (c Config) Options() []lync.Option {
	var options []lync.Option
	if c.Verbose {
		options = append(options, lync.VerboseOption())
	}
	if c.StrictChecksum {
		options = append(options, lync.StrictChecksumOption())
	}
	return options
}
