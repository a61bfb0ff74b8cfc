// Package transport provides the byte streams a lync.Controller runs on: the
// controller's own serial port, or the websocket exposed by a (W)GW-SL1
// gateway.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

const (
	DefaultDevice          = "/dev/ttyUSB0"
	DefaultBaud            = 38400
	DefaultSerialReadDelay = 100 * time.Millisecond
)

var ErrClosed = errors.New("transport is closed")

type SerialConfig struct {
	Device string
	Baud   int

	// ReadTimeout bounds each read so the reader notices a close promptly.
	ReadTimeout time.Duration
}

func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		Device:      DefaultDevice,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultSerialReadDelay,
	}
}

// Serial is a transport over the controller's RS-232 port.
type Serial struct {
	config SerialConfig

	mu   sync.Mutex
	port io.ReadWriteCloser

	// openPort is replaced in tests
	openPort func(*serial.Config) (io.ReadWriteCloser, error)
}

func NewSerial(config SerialConfig) *Serial {
	if config.Device == "" {
		config.Device = DefaultDevice
	}
	if config.Baud == 0 {
		config.Baud = DefaultBaud
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultSerialReadDelay
	}
	return &Serial{
		config: config,
		openPort: func(c *serial.Config) (io.ReadWriteCloser, error) {
			return serial.OpenPort(c)
		},
	}
}

func (s *Serial) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	port, err := s.openPort(&serial.Config{
		Name:        s.config.Device,
		Baud:        s.config.Baud,
		ReadTimeout: s.config.ReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.config.Device, err)
	}

	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	return nil
}

func (s *Serial) current() (io.ReadWriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil, ErrClosed
	}
	return s.port, nil
}

// Read returns (0, nil) when the read timeout passes without data.
func (s *Serial) Read(p []byte) (int, error) {
	port, err := s.current()
	if err != nil {
		return 0, err
	}
	n, err := port.Read(p)
	if n == 0 && err == io.EOF {
		err = nil
	}
	return n, err
}

func (s *Serial) Write(p []byte) (int, error) {
	port, err := s.current()
	if err != nil {
		return 0, err
	}
	return port.Write(p)
}

func (s *Serial) Close() error {
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}

func (s *Serial) String() string {
	return fmt.Sprintf("serial %s@%d", s.config.Device, s.config.Baud)
}
