package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pro-trader/internal/broadcast"
	"github.com/rickgao/pro-trader/internal/model"
	"github.com/rickgao/pro-trader/internal/pricebuffer"
	"github.com/rickgao/pro-trader/internal/pricecache"
	"github.com/rickgao/pro-trader/internal/store"
	"github.com/rickgao/pro-trader/internal/subindex"
)

// fakeSessions validates from a fixed map.
type fakeSessions struct {
	sessions map[string]store.Session
}

func (f *fakeSessions) Validate(_ context.Context, sessionID string) (store.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return store.Session{}, store.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Create(_ context.Context, sessionID string, sess store.Session) error {
	f.sessions[sessionID] = sess
	return nil
}

func (f *fakeSessions) Delete(context.Context, string) error { return nil }

// fakePositions serves fixed open symbols.
type fakePositions struct {
	symbols map[uuid.UUID][]string
}

func (f *fakePositions) ListOpen(context.Context, uuid.UUID) ([]model.Position, error) {
	return nil, nil
}

func (f *fakePositions) OpenSymbols(_ context.Context, userID uuid.UUID) ([]string, error) {
	return f.symbols[userID], nil
}

func (f *fakePositions) Get(context.Context, uuid.UUID) (model.Position, error) {
	return model.Position{}, store.ErrPositionNotFound
}

func (f *fakePositions) Create(context.Context, model.Position) error { return nil }

func (f *fakePositions) Close(context.Context, uuid.UUID, decimal.Decimal, decimal.Decimal, time.Time) error {
	return nil
}

// fakePortfolio returns an empty snapshot.
type fakePortfolio struct {
	err error
}

func (f *fakePortfolio) Snapshot(context.Context, string) (model.PortfolioSnapshot, error) {
	if f.err != nil {
		return model.PortfolioSnapshot{}, f.err
	}
	return model.EmptyPortfolio(time.Now()), nil
}

// fakeStream records upstream subscription changes.
type fakeStream struct {
	mu     sync.Mutex
	subs   []string
	unsubs []string
}

func (f *fakeStream) Subscribe(symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, symbols...)
	return nil
}

func (f *fakeStream) Unsubscribe(symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, symbols...)
	return nil
}

func (f *fakeStream) subscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subs...)
}

func (f *fakeStream) unsubscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsubs...)
}

type testHarness struct {
	server *httptest.Server
	hub    *Hub
	index  *subindex.Index
	stream *fakeStream
	userID string
}

func newHarness(t *testing.T, maxSessions int, openSymbols []string) *testHarness {
	t.Helper()

	userID := uuid.New()

	hub := NewHub(nil)
	index := subindex.New(maxSessions)
	stream := &fakeStream{}
	positions := &fakePositions{symbols: map[uuid.UUID][]string{userID: openSymbols}}
	sessions := &fakeSessions{sessions: map[string]store.Session{
		"valid-session": {UserID: userID.String(), Username: "trader1"},
	}}

	gw := New(DefaultConfig(), hub, index, sessions, positions, &fakePortfolio{}, stream, nil)

	server := httptest.NewServer(gw)
	t.Cleanup(server.Close)

	return &testHarness{
		server: server,
		hub:    hub,
		index:  index,
		stream: stream,
		userID: userID.String(),
	}
}

func (h *testHarness) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame %q: %v", data, err)
	}
	return frame
}

func frameType(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()

	var typ string
	if err := json.Unmarshal(frame["type"], &typ); err != nil {
		t.Fatalf("frame type: %v", err)
	}
	return typ
}

func expectClose(t *testing.T, conn *websocket.Conn, wantCode int) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != wantCode {
		t.Errorf("close code = %d, want %d", closeErr.Code, wantCode)
	}
}

func TestGateway_InvalidSessionRejected(t *testing.T) {
	h := newHarness(t, 3, nil)

	conn := h.dial(t, "bogus")
	expectClose(t, conn, CloseInvalidSession)

	if got := h.index.Stats().TotalSessions; got != 0 {
		t.Errorf("sessions = %d, want 0", got)
	}
}

func TestGateway_ConnectSendsSnapshot(t *testing.T) {
	h := newHarness(t, 3, nil)

	conn := h.dial(t, "valid-session")

	frame := readFrame(t, conn)
	if typ := frameType(t, frame); typ != "portfolio_snapshot" {
		t.Errorf("first frame type = %q, want portfolio_snapshot", typ)
	}
}

func TestGateway_PreloadSubscribesOpenSymbols(t *testing.T) {
	h := newHarness(t, 3, []string{"BTCUSDT", "ETHUSDT"})

	conn := h.dial(t, "valid-session")
	readFrame(t, conn) // portfolio_snapshot

	subs := h.stream.subscribed()
	if len(subs) != 2 {
		t.Errorf("upstream subscriptions = %v, want both open symbols", subs)
	}
	if got := h.index.SymbolsOf(h.userID); len(got) != 2 {
		t.Errorf("index symbols = %v, want 2", got)
	}
}

func TestGateway_SessionCap(t *testing.T) {
	h := newHarness(t, 1, nil)

	first := h.dial(t, "valid-session")
	readFrame(t, first) // portfolio_snapshot, session fully admitted

	second := h.dial(t, "valid-session")
	expectClose(t, second, CloseMaxSessions)

	// The admitted session is untouched.
	if got := h.index.Stats().TotalSessions; got != 1 {
		t.Errorf("sessions = %d, want 1", got)
	}
}

func TestGateway_SubscribeFlow(t *testing.T) {
	h := newHarness(t, 3, nil)

	conn := h.dial(t, "valid-session")
	readFrame(t, conn) // portfolio_snapshot

	if err := conn.WriteJSON(map[string]any{"type": "subscribe", "symbols": []string{"btcusdt"}}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	frame := readFrame(t, conn)
	if typ := frameType(t, frame); typ != "subscribed" {
		t.Fatalf("frame type = %q, want subscribed", typ)
	}

	var symbols []string
	json.Unmarshal(frame["symbols"], &symbols)
	if len(symbols) != 1 || symbols[0] != "BTCUSDT" {
		t.Errorf("symbols = %v, want [BTCUSDT] normalized", symbols)
	}

	if subs := h.stream.subscribed(); len(subs) != 1 || subs[0] != "BTCUSDT" {
		t.Errorf("upstream subs = %v, want [BTCUSDT]", subs)
	}

	// Unsubscribe releases the orphaned symbol upstream.
	if err := conn.WriteJSON(map[string]any{"type": "unsubscribe", "symbols": []string{"BTCUSDT"}}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}

	frame = readFrame(t, conn)
	if typ := frameType(t, frame); typ != "unsubscribed" {
		t.Fatalf("frame type = %q, want unsubscribed", typ)
	}
	if unsubs := h.stream.unsubscribed(); len(unsubs) != 1 || unsubs[0] != "BTCUSDT" {
		t.Errorf("upstream unsubs = %v, want [BTCUSDT]", unsubs)
	}
}

func TestGateway_GetPortfolio(t *testing.T) {
	h := newHarness(t, 3, nil)

	conn := h.dial(t, "valid-session")
	readFrame(t, conn) // portfolio_snapshot

	conn.WriteJSON(map[string]any{"type": "get_portfolio"})

	frame := readFrame(t, conn)
	if typ := frameType(t, frame); typ != "portfolio_snapshot" {
		t.Errorf("frame type = %q, want portfolio_snapshot", typ)
	}
}

func TestGateway_PingPong(t *testing.T) {
	h := newHarness(t, 3, nil)

	conn := h.dial(t, "valid-session")
	readFrame(t, conn) // portfolio_snapshot

	conn.WriteJSON(map[string]any{"type": "ping"})

	frame := readFrame(t, conn)
	if typ := frameType(t, frame); typ != "pong" {
		t.Errorf("frame type = %q, want pong", typ)
	}
}

// Malformed and unknown messages produce an error frame but keep the
// session alive.
func TestGateway_BadMessagesKeepSession(t *testing.T) {
	h := newHarness(t, 3, nil)

	conn := h.dial(t, "valid-session")
	readFrame(t, conn) // portfolio_snapshot

	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	if typ := frameType(t, readFrame(t, conn)); typ != "error" {
		t.Errorf("frame type = %q, want error", typ)
	}

	conn.WriteJSON(map[string]any{"type": "trade_harder"})
	if typ := frameType(t, readFrame(t, conn)); typ != "error" {
		t.Errorf("frame type = %q, want error", typ)
	}

	// Still alive.
	conn.WriteJSON(map[string]any{"type": "ping"})
	if typ := frameType(t, readFrame(t, conn)); typ != "pong" {
		t.Errorf("frame type = %q, want pong", typ)
	}
}

// Disconnecting the last session purges the user and unsubscribes the
// orphaned symbols upstream.
func TestGateway_DisconnectCleansUp(t *testing.T) {
	h := newHarness(t, 3, nil)

	conn := h.dial(t, "valid-session")
	readFrame(t, conn) // portfolio_snapshot

	conn.WriteJSON(map[string]any{"type": "subscribe", "symbols": []string{"BTCUSDT"}})
	readFrame(t, conn) // subscribed

	conn.Close()

	deadline := time.After(2 * time.Second)
	for h.index.Stats().TotalSessions != 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for session cleanup")
		case <-time.After(10 * time.Millisecond):
		}
	}

	unsubDeadline := time.After(2 * time.Second)
	for len(h.stream.unsubscribed()) == 0 {
		select {
		case <-unsubDeadline:
			t.Fatal("timed out waiting for orphan unsubscribe")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if unsubs := h.stream.unsubscribed(); unsubs[0] != "BTCUSDT" {
		t.Errorf("unsubs = %v, want [BTCUSDT]", unsubs)
	}
	if h.hub.Count() != 0 {
		t.Errorf("hub count = %d, want 0", h.hub.Count())
	}
}

type noopScheduler struct{}

func (noopScheduler) Schedule(string) {}

// Price updates for one symbol arrive at a subscriber in timestamp order:
// each flush is handled synchronously and the per-session queue is FIFO, so
// a later flush can never overtake an earlier one.
func TestPipeline_PriceUpdatesOrdered(t *testing.T) {
	serverConn, clientConn := dialPair(t)

	hub := NewHub(nil)
	s := newSession("s1", "u1", serverConn, 16, nil)
	hub.add(s)
	go s.writePump(time.Second, time.Minute)

	index := subindex.New(3)
	if err := index.AddSession("u1", "s1"); err != nil {
		t.Fatalf("AddSession: %v", err)
	}
	index.Subscribe("u1", []string{"BTCUSDT"})

	cache := pricecache.New(time.Minute)
	caster := broadcast.New(cache, index, hub, noopScheduler{}, nil)

	buf := pricebuffer.New(pricebuffer.Config{FlushInterval: 10 * time.Millisecond}, caster, nil)
	if err := buf.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer buf.Stop(context.Background())

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		buf.Ingest(model.Tick{
			Symbol:    "BTCUSDT",
			Price:     decimal.NewFromInt(int64(50000 + i)),
			Timestamp: base.Add(time.Duration(i) * 100 * time.Millisecond),
		})
		// Space the ticks across flush intervals so most land in their
		// own batch.
		time.Sleep(25 * time.Millisecond)
	}

	var timestamps []time.Time
	for {
		clientConn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
		_, data, err := clientConn.ReadMessage()
		if err != nil {
			break
		}

		var frame struct {
			Type string `json:"type"`
			Data struct {
				Symbol    string    `json:"symbol"`
				Timestamp time.Time `json:"timestamp"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal frame %q: %v", data, err)
		}
		if frame.Type != "price_update" || frame.Data.Symbol != "BTCUSDT" {
			t.Fatalf("unexpected frame %q", data)
		}
		timestamps = append(timestamps, frame.Data.Timestamp)
	}

	if len(timestamps) < 2 {
		t.Fatalf("received %d price updates, want at least 2", len(timestamps))
	}
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i].Before(timestamps[i-1]) {
			t.Errorf("timestamp %d (%v) precedes timestamp %d (%v)",
				i, timestamps[i], i-1, timestamps[i-1])
		}
	}
}
