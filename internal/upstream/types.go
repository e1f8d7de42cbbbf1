package upstream

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrMaxReconnect    = errors.New("max reconnect attempts exceeded")
)

// TimestampedMessage wraps raw message data with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// controlFrame is a SUBSCRIBE/UNSUBSCRIBE command sent to the exchange.
// IDs are monotonic per consumer for response correlation.
type controlFrame struct {
	Method string   `json:"method"` // "SUBSCRIBE" or "UNSUBSCRIBE"
	Params []string `json:"params"` // stream names: "<symbol_lower>@ticker"
	ID     int64    `json:"id"`
}

// envelope is used to classify inbound frames before full parsing. Frames
// carrying a "result" field are command acknowledgements; data frames carry
// an event type in "e".
type envelope struct {
	Event  string          `json:"e"`
	Result json.RawMessage `json:"result"`
}

// tickerEvent is the wire format of a 24hrTicker stream event. Numeric
// fields arrive as strings.
type tickerEvent struct {
	Event     string `json:"e"` // "24hrTicker"
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
	Volume    string `json:"v"`
	ChangePct string `json:"P"`
	High      string `json:"h"`
	Low       string `json:"l"`
	EventTime int64  `json:"E"` // milliseconds since epoch
}

// ClientConfig configures the WebSocket client.
type ClientConfig struct {
	URL          string        // Stream endpoint (e.g., wss://stream.binance.com:9443/ws)
	PingInterval time.Duration // Keepalive ping cadence
	PongTimeout  time.Duration // Max wait for a pong after a ping
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 20 * time.Second,
		PongTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}

// Config configures the Consumer.
type Config struct {
	URL               string        // Stream endpoint
	PingInterval      time.Duration // Keepalive ping cadence
	PongTimeout       time.Duration // Max wait for a pong after a ping
	WriteTimeout      time.Duration // Write deadline for sends
	MaxReconnect      int           // Consecutive failures before giving up
	ReconnectMaxDelay time.Duration // Backoff cap
	BufferSize        int           // Client message buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:               "wss://stream.binance.com:9443/ws",
		PingInterval:      20 * time.Second,
		PongTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		MaxReconnect:      10,
		ReconnectMaxDelay: 30 * time.Second,
		BufferSize:        10000,
	}
}

// State is the consumer's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
