package upstream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/pro-trader/internal/metrics"
	"github.com/rickgao/pro-trader/internal/model"
)

// TickSink receives parsed ticks from the consumer.
type TickSink interface {
	Ingest(tick model.Tick)
}

// TickSinkFunc is a function adapter for TickSink.
type TickSinkFunc func(model.Tick)

func (f TickSinkFunc) Ingest(t model.Tick) { f(t) }

// Consumer maintains one long-lived connection to the exchange stream and
// keeps its subscribed set in sync with what the gateway asks for.
type Consumer struct {
	cfg    Config
	sink   TickSink
	logger *slog.Logger

	// newClient is swappable in tests.
	newClient func() Client

	mu         sync.Mutex
	client     Client
	subscribed map[string]struct{}

	cmdID atomic.Int64
	state atomic.Int32
	fatal chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a new upstream consumer.
func NewConsumer(cfg Config, sink TickSink, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Consumer{
		cfg:        cfg,
		sink:       sink,
		logger:     logger,
		subscribed: make(map[string]struct{}),
		fatal:      make(chan error, 1),
	}
	c.newClient = func() Client {
		return NewClient(ClientConfig{
			URL:          cfg.URL,
			PingInterval: cfg.PingInterval,
			PongTimeout:  cfg.PongTimeout,
			WriteTimeout: cfg.WriteTimeout,
			BufferSize:   cfg.BufferSize,
		}, logger.With("component", "upstream_client"))
	}
	return c
}

// Start begins the connect/read/reconnect loop.
func (c *Consumer) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()

	c.logger.Info("upstream consumer started", "url", c.cfg.URL)
	return nil
}

// Stop gracefully shuts down the consumer.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("upstream consumer stopped")
	case <-ctx.Done():
		c.logger.Warn("upstream consumer stop timed out")
	}

	c.mu.Lock()
	cl := c.client
	c.client = nil
	c.mu.Unlock()
	if cl != nil {
		cl.Close()
	}

	c.setState(StateStopped)
	return nil
}

// Fatal returns a channel that receives at most one error when the
// consumer gives up after exceeding the reconnect cap.
func (c *Consumer) Fatal() <-chan error {
	return c.fatal
}

// State returns the current connection state.
func (c *Consumer) State() State {
	return State(c.state.Load())
}

// Subscribed returns a snapshot copy of the wanted-symbols set.
func (c *Consumer) Subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.subscribed))
	for s := range c.subscribed {
		out = append(out, s)
	}
	return out
}

// Subscribe adds symbols to the wanted set and, when connected, sends a
// SUBSCRIBE frame for the ones not already tracked. Symbols recorded while
// disconnected are picked up by the resubscribe on reconnect.
func (c *Consumer) Subscribe(symbols []string) error {
	var added []string

	c.mu.Lock()
	for _, s := range model.NormalizeAll(symbols) {
		if _, ok := c.subscribed[s]; !ok {
			c.subscribed[s] = struct{}{}
			added = append(added, s)
		}
	}
	cl := c.client
	c.mu.Unlock()

	if len(added) == 0 || cl == nil {
		return nil
	}

	if err := c.sendControl(cl, "SUBSCRIBE", added); err != nil {
		return err
	}
	c.logger.Info("subscribed upstream", "symbols", added)
	return nil
}

// Unsubscribe removes symbols from the wanted set and, when connected,
// sends an UNSUBSCRIBE frame for the ones that were tracked.
func (c *Consumer) Unsubscribe(symbols []string) error {
	var removed []string

	c.mu.Lock()
	for _, s := range model.NormalizeAll(symbols) {
		if _, ok := c.subscribed[s]; ok {
			delete(c.subscribed, s)
			removed = append(removed, s)
		}
	}
	cl := c.client
	c.mu.Unlock()

	if len(removed) == 0 || cl == nil {
		return nil
	}

	if err := c.sendControl(cl, "UNSUBSCRIBE", removed); err != nil {
		return err
	}
	c.logger.Info("unsubscribed upstream", "symbols", removed)
	return nil
}

// run is the connect/read/reconnect loop.
func (c *Consumer) run() {
	defer c.wg.Done()

	attempts := 0

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.setState(StateConnecting)
		cl := c.newClient()

		if err := cl.Connect(c.ctx); err != nil {
			c.logger.Warn("upstream connect failed", "error", err)
			c.setState(StateDisconnected)
			if !c.waitReconnect(&attempts) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.client = cl
		c.mu.Unlock()
		c.setState(StateConnected)
		attempts = 0

		// The first control frame after (re)connect subscribes the full
		// wanted set.
		if err := c.resubscribeAll(cl); err != nil {
			c.logger.Warn("resubscribe after connect failed", "error", err)
		}

		shutdown := c.readFrames(cl)

		c.mu.Lock()
		c.client = nil
		c.mu.Unlock()
		cl.Close()

		if shutdown {
			return
		}

		c.setState(StateDisconnected)
		metrics.UpstreamReconnects.Inc()
		if !c.waitReconnect(&attempts) {
			return
		}
	}
}

// waitReconnect sleeps for the backoff delay and reports whether another
// attempt should be made. It returns false on shutdown or once the cap of
// consecutive failures is exceeded, in which case the fatal condition is
// raised.
func (c *Consumer) waitReconnect(attempts *int) bool {
	if *attempts >= c.cfg.MaxReconnect {
		c.logger.Error("max reconnect attempts exceeded, stopping consumer",
			"max_reconnect", c.cfg.MaxReconnect,
		)
		c.setState(StateStopped)
		select {
		case c.fatal <- ErrMaxReconnect:
		default:
		}
		return false
	}

	wait := backoffDelay(*attempts, c.cfg.ReconnectMaxDelay)
	c.logger.Info("upstream reconnect scheduled",
		"attempt", *attempts+1,
		"max", c.cfg.MaxReconnect,
		"wait", wait,
	)
	*attempts++

	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}

// backoffDelay returns min(cap, 2^attempts seconds).
func backoffDelay(attempts int, cap time.Duration) time.Duration {
	if attempts > 30 {
		return cap
	}
	d := time.Duration(1<<uint(attempts)) * time.Second
	if d > cap {
		return cap
	}
	return d
}

// readFrames consumes frames until the connection errors or the consumer
// shuts down. Returns true on shutdown, false when a reconnect is needed.
func (c *Consumer) readFrames(cl Client) bool {
	for {
		select {
		case <-c.ctx.Done():
			return true

		case err := <-cl.Errors():
			c.logger.Warn("upstream connection error", "error", err)
			return false

		case msg, ok := <-cl.Messages():
			if !ok {
				return false
			}
			c.handleFrame(msg)
		}
	}
}

// handleFrame parses one inbound frame and forwards ticker events to the
// sink. Acks and frames of other event types are ignored; malformed frames
// are logged and skipped.
func (c *Consumer) handleFrame(msg TimestampedMessage) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.logger.Warn("failed to parse upstream frame", "error", err)
		return
	}

	// Control acknowledgements carry a "result" field; data frames carry
	// an event type.
	if len(env.Result) != 0 || env.Event == "" {
		return
	}
	if env.Event != "24hrTicker" {
		c.logger.Debug("skipping event type", "type", env.Event)
		return
	}

	var ev tickerEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		c.logger.Warn("failed to parse ticker event", "error", err)
		return
	}

	tick, ok := c.parseTick(ev, msg.ReceivedAt)
	if !ok {
		return
	}

	metrics.TicksReceived.Inc()
	c.sink.Ingest(tick)
}

// parseTick converts a ticker event into a model.Tick. Ticks missing the
// symbol or price are dropped.
func (c *Consumer) parseTick(ev tickerEvent, receivedAt time.Time) (model.Tick, bool) {
	symbol := model.Normalize(ev.Symbol)
	if symbol == "" {
		c.logger.Warn("ticker event missing symbol")
		return model.Tick{}, false
	}

	price, err := decimal.NewFromString(ev.LastPrice)
	if err != nil {
		c.logger.Warn("ticker event has bad price", "symbol", symbol, "price", ev.LastPrice)
		return model.Tick{}, false
	}

	ts := receivedAt
	if ev.EventTime > 0 {
		ts = time.UnixMilli(ev.EventTime)
	}

	return model.Tick{
		Symbol:       symbol,
		Price:        price,
		Volume24h:    parseOptional(ev.Volume),
		ChangePct24h: parseOptional(ev.ChangePct),
		High24h:      parseOptional(ev.High),
		Low24h:       parseOptional(ev.Low),
		Timestamp:    ts,
	}, true
}

// parseOptional parses an optional numeric string, returning zero when the
// field is absent or malformed.
func parseOptional(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// resubscribeAll sends one SUBSCRIBE frame covering the full wanted set.
func (c *Consumer) resubscribeAll(cl Client) error {
	c.mu.Lock()
	symbols := make([]string, 0, len(c.subscribed))
	for s := range c.subscribed {
		symbols = append(symbols, s)
	}
	c.mu.Unlock()

	if len(symbols) == 0 {
		return nil
	}

	if err := c.sendControl(cl, "SUBSCRIBE", symbols); err != nil {
		return err
	}
	c.logger.Info("resubscribed after connect", "count", len(symbols))
	return nil
}

// sendControl sends a SUBSCRIBE/UNSUBSCRIBE frame with a monotonic id.
func (c *Consumer) sendControl(cl Client, method string, symbols []string) error {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@ticker")
	}

	frame := controlFrame{
		Method: method,
		Params: streams,
		ID:     c.cmdID.Add(1),
	}

	data, _ := json.Marshal(frame)
	return cl.Send(data)
}

// setState records the connection state and mirrors it to metrics.
func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
	metrics.UpstreamState.Set(float64(s))
}
