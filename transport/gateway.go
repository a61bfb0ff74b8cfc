package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	DefaultGatewayHost = "HTD-GW-SL1"
	DefaultGatewayPort = 8000
	DefaultHTTPPort    = 80
	DefaultUsername    = "admin"
	DefaultPassword    = "lev3s"
	DefaultLoginPath   = "/login.cgi"
)

var ErrAuthFailed = errors.New("gateway authentication failed")

type GatewayConfig struct {
	Host     string
	Port     int
	HTTPPort int
	Username string
	Password string

	LoginPath string

	// MessageType is the websocket message type used for outgoing frames.
	// The gateway accepts frames as text messages.
	MessageType int
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Host:        DefaultGatewayHost,
		Port:        DefaultGatewayPort,
		HTTPPort:    DefaultHTTPPort,
		Username:    DefaultUsername,
		Password:    DefaultPassword,
		LoginPath:   DefaultLoginPath,
		MessageType: websocket.TextMessage,
	}
}

// Gateway is a transport through the (W)GW-SL1 network gateway, which relays
// the serial protocol over a websocket once a client has logged in.
type Gateway struct {
	config GatewayConfig
	client *http.Client
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	// only touched by Read
	pending []byte
}

func NewGateway(config GatewayConfig) *Gateway {
	defaults := DefaultGatewayConfig()
	if config.Host == "" {
		config.Host = defaults.Host
	}
	if config.Port == 0 {
		config.Port = defaults.Port
	}
	if config.HTTPPort == 0 {
		config.HTTPPort = defaults.HTTPPort
	}
	if config.Username == "" {
		config.Username = defaults.Username
	}
	if config.Password == "" {
		config.Password = defaults.Password
	}
	if config.LoginPath == "" {
		config.LoginPath = defaults.LoginPath
	}
	if config.MessageType == 0 {
		config.MessageType = defaults.MessageType
	}
	return &Gateway{
		config: config,
		client: &http.Client{},
		dialer: websocket.DefaultDialer,
	}
}

func (g *Gateway) loginURL() string {
	host := g.config.Host
	if g.config.HTTPPort != DefaultHTTPPort {
		host = net.JoinHostPort(host, strconv.Itoa(g.config.HTTPPort))
	}
	return "http://" + host + g.config.LoginPath
}

func (g *Gateway) socketURL() string {
	return "ws://" + net.JoinHostPort(g.config.Host, strconv.Itoa(g.config.Port)) + "/"
}

// Authenticate performs the HTTP basic auth login the gateway requires before
// it accepts a websocket.
func (g *Gateway) Authenticate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.loginURL(), nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.config.Username, g.config.Password)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request to %s: %w", g.config.Host, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrAuthFailed, resp.Status)
	}
	return nil
}

func (g *Gateway) Open(ctx context.Context) error {
	conn, _, err := g.dialer.DialContext(ctx, g.socketURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", g.socketURL(), err)
	}
	g.mu.Lock()
	g.conn = conn
	g.pending = nil
	g.mu.Unlock()
	return nil
}

func (g *Gateway) current() (*websocket.Conn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil, ErrClosed
	}
	return g.conn, nil
}

// Read returns the bytes of incoming websocket messages as one stream;
// message boundaries carry no meaning.
func (g *Gateway) Read(p []byte) (int, error) {
	if len(g.pending) == 0 {
		conn, err := g.current()
		if err != nil {
			return 0, err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		g.pending = msg
	}
	n := copy(p, g.pending)
	g.pending = g.pending[n:]
	return n, nil
}

// Write sends p as a single websocket message.
func (g *Gateway) Write(p []byte) (int, error) {
	conn, err := g.current()
	if err != nil {
		return 0, err
	}
	if err := conn.WriteMessage(g.config.MessageType, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (g *Gateway) String() string {
	return "gateway " + g.socketURL()
}
