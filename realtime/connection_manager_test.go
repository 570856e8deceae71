package realtime

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/pos-sync/models"
	"github.com/yeremiapane/pos-sync/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

// fakeConn is a scripted transport. Frames pushed onto inbound are delivered
// by ReadMessage; writes are recorded for assertions.
type fakeConn struct {
	mu      sync.Mutex
	writes  [][]byte
	inbound chan []byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.TextMessage, data, nil
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed connection")
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbound)
	}
	return nil
}

func (c *fakeConn) push(t *testing.T, raw string) {
	t.Helper()
	c.inbound <- []byte(raw)
}

func (c *fakeConn) writtenTypes(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, 0, len(c.writes))
	for _, frame := range c.writes {
		var env struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(frame, &env))
		types = append(types, env.Type)
	}
	return types
}

// fakeDialer fails the first `failures` dials, then hands out fakeConns with
// the registration acknowledgment already queued.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("dial refused")
	}
	c := newFakeConn()
	c.inbound <- []byte(`{"type": "registered", "clientId": "client-1"}`)
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type recordingHandler struct {
	mu      sync.Mutex
	created []*OrderCreatedMessage
	updates []*OrderStatusUpdateMessage
	states  []*SyncStateMessage
	errs    []*ErrorMessage
}

func (h *recordingHandler) HandleOrderCreated(msg *OrderCreatedMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, msg)
}

func (h *recordingHandler) HandleOrderStatusUpdate(msg *OrderStatusUpdateMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, msg)
}

func (h *recordingHandler) HandleSyncState(msg *SyncStateMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, msg)
}

func (h *recordingHandler) HandleServerError(msg *ErrorMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, msg)
}

func fastOptions() Options {
	return Options{
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		MaxRetries: 10,
		QueueLimit: 1000,
	}
}

func newTestManager(dialer Dialer, handler Handler, opts Options) *ConnectionManager {
	return NewConnectionManager("ws://backend", "tenant-1", DevicePOS, dialer, handler, opts)
}

func TestConnectPerformsHandshake(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer, &recordingHandler{}, fastOptions())
	defer m.Disconnect()

	require.NoError(t, m.Connect())
	assert.True(t, m.Connected())

	status := m.Status()
	assert.Equal(t, StateConnected, status.State)
	assert.Equal(t, "connected", status.StateLabel)
	assert.Equal(t, "client-1", status.ClientID)
	assert.Zero(t, status.Attempts)

	conn := dialer.lastConn()
	require.NotNil(t, conn)
	assert.Equal(t, []string{TypeRegister}, conn.writtenTypes(t))
}

func TestConnectRejectedByServer(t *testing.T) {
	rejecting := dialerFunc(func(url string) (Conn, error) {
		c := newFakeConn()
		c.inbound <- []byte(`{"type": "error", "message": "unknown tenant", "code": "E404"}`)
		return c, nil
	})

	opts := fastOptions()
	opts.MaxRetries = 0
	m := newTestManager(rejecting, &recordingHandler{}, opts)
	defer m.Disconnect()

	err := m.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration rejected")
	assert.False(t, m.Connected())
}

type dialerFunc func(url string) (Conn, error)

func (f dialerFunc) Dial(url string) (Conn, error) { return f(url) }

func TestHandshakeTimeoutFailsTheAttempt(t *testing.T) {
	// The backend accepts the socket but never acknowledges registration.
	stalling := dialerFunc(func(string) (Conn, error) {
		return newFakeConn(), nil
	})

	opts := fastOptions()
	opts.MaxRetries = 0
	opts.HandshakeTimeout = 20 * time.Millisecond
	m := newTestManager(stalling, &recordingHandler{}, opts)
	defer m.Disconnect()

	err := m.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not acknowledged")
	assert.False(t, m.Connected())
	assert.Equal(t, StateDisconnected, m.Status().State)
}

func TestHandshakeTimeoutArmsRetry(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	stallThenAck := dialerFunc(func(string) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		c := newFakeConn()
		if dials > 1 {
			c.inbound <- []byte(`{"type": "registered", "clientId": "client-1"}`)
		}
		return c, nil
	})

	opts := fastOptions()
	opts.HandshakeTimeout = 20 * time.Millisecond
	m := newTestManager(stallThenAck, &recordingHandler{}, opts)
	defer m.Disconnect()

	require.Error(t, m.Connect())

	// The timed-out attempt hands control to the backoff policy.
	require.Eventually(t, m.Connected, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, dials)
}

func TestReconnectWithBackoffUntilSuccess(t *testing.T) {
	dialer := &fakeDialer{failures: 3}
	m := newTestManager(dialer, &recordingHandler{}, fastOptions())
	defer m.Disconnect()

	err := m.Connect()
	require.Error(t, err, "first dial fails")

	require.Eventually(t, m.Connected, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, dialer.dialCount(), "three failures plus the successful attempt")
	assert.Zero(t, m.Status().Attempts, "attempt counter resets on success")
}

func TestRetryBudgetExhaustedStaysDisconnected(t *testing.T) {
	dialer := &fakeDialer{failures: 1 << 30}
	opts := fastOptions()
	opts.MaxRetries = 3
	m := newTestManager(dialer, &recordingHandler{}, opts)
	defer m.Disconnect()

	require.Error(t, m.Connect())

	require.Eventually(t, func() bool {
		return dialer.dialCount() == 4
	}, 2*time.Second, 5*time.Millisecond, "initial dial plus three retries")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, dialer.dialCount(), "no dials after the budget is spent")
	assert.False(t, m.Connected())
}

func TestQueueWhileDisconnectedFlushesInOrder(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer, &recordingHandler{}, fastOptions())
	defer m.Disconnect()

	require.NoError(t, m.Send(NewStatusUpdate("kds-1", "A-100", "ready", 2, "pos")))
	require.NoError(t, m.Send(NewSubmitOrder(models.KitchenOrder{ID: "kds-2"})))
	assert.Equal(t, 2, m.QueuedOperationCount())

	require.NoError(t, m.Connect())
	assert.Zero(t, m.QueuedOperationCount(), "queue drains on connect")

	conn := dialer.lastConn()
	require.NotNil(t, conn)
	assert.Equal(t,
		[]string{TypeRegister, TypeOrderStatusUpdate, TypeSubmitOrder},
		conn.writtenTypes(t),
		"replay preserves submission order and precedes anything else")
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	dialer := &fakeDialer{}
	opts := fastOptions()
	opts.QueueLimit = 2
	m := newTestManager(dialer, &recordingHandler{}, opts)
	defer m.Disconnect()

	require.NoError(t, m.Send(NewStatusUpdate("kds-1", "A-100", "ready", 1, "pos")))
	require.NoError(t, m.Send(NewStatusUpdate("kds-2", "A-101", "ready", 1, "pos")))
	require.NoError(t, m.Send(NewStatusUpdate("kds-3", "A-102", "ready", 1, "pos")))
	assert.Equal(t, 2, m.QueuedOperationCount())

	require.NoError(t, m.Connect())

	conn := dialer.lastConn()
	require.NotNil(t, conn)
	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.writes, 3)
	assert.Contains(t, string(conn.writes[1]), "kds-2", "oldest operation was dropped")
	assert.Contains(t, string(conn.writes[2]), "kds-3")
}

func TestSendWhileConnectedWritesDirectly(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer, &recordingHandler{}, fastOptions())
	defer m.Disconnect()

	require.NoError(t, m.Connect())
	require.NoError(t, m.Send(NewStatusUpdate("kds-1", "A-100", "ready", 2, "pos")))
	assert.Zero(t, m.QueuedOperationCount())

	conn := dialer.lastConn()
	require.NotNil(t, conn)
	assert.Equal(t, []string{TypeRegister, TypeOrderStatusUpdate}, conn.writtenTypes(t))
}

func TestInboundDispatchReachesHandler(t *testing.T) {
	dialer := &fakeDialer{}
	handler := &recordingHandler{}
	m := newTestManager(dialer, handler, fastOptions())
	defer m.Disconnect()

	require.NoError(t, m.Connect())
	conn := dialer.lastConn()
	require.NotNil(t, conn)

	conn.push(t, `{"type": "order_created", "order": {"aggregatorOrderId": "agg-1", "orderNumber": "A-100"}, "kitchenOrder": {"id": "kds-1", "version": 1}}`)
	conn.push(t, `{"type": "order_status_update", "orderId": "kds-1", "status": "ready", "version": 2}`)
	conn.push(t, `{"type": "sync_state", "activeOrders": [], "recentOrders": []}`)
	conn.push(t, `{"type": "error", "message": "slow down", "code": "E429"}`)
	conn.push(t, `{"type": "pong"}`)

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.created) == 1 &&
			len(handler.updates) == 1 &&
			len(handler.states) == 1 &&
			len(handler.errs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, "agg-1", handler.created[0].Order.AggregatorOrderID)
	assert.Equal(t, "ready", handler.updates[0].Status)
	assert.Equal(t, "E429", handler.errs[0].Code)
}

func TestUndecodableInboundFrameIsSkipped(t *testing.T) {
	dialer := &fakeDialer{}
	handler := &recordingHandler{}
	m := newTestManager(dialer, handler, fastOptions())
	defer m.Disconnect()

	require.NoError(t, m.Connect())
	conn := dialer.lastConn()
	require.NotNil(t, conn)

	conn.push(t, `{"type": "future_frame"}`)
	conn.push(t, `{"type": "order_status_update", "orderId": "kds-1", "status": "ready", "version": 2}`)

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.updates) == 1
	}, 2*time.Second, 5*time.Millisecond, "the loop survives unknown frames")
}

func TestConnectionLossTriggersReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer, &recordingHandler{}, fastOptions())
	defer m.Disconnect()

	require.NoError(t, m.Connect())
	first := dialer.lastConn()
	require.NotNil(t, first)

	first.Close()

	require.Eventually(t, func() bool {
		return dialer.dialCount() == 2 && m.Connected()
	}, 2*time.Second, 5*time.Millisecond)
	assert.NotSame(t, first, dialer.lastConn())
}

func TestDisconnectKeepsQueueAndStopsRetries(t *testing.T) {
	dialer := &fakeDialer{failures: 1 << 30}
	m := newTestManager(dialer, &recordingHandler{}, fastOptions())

	require.NoError(t, m.Send(NewStatusUpdate("kds-1", "A-100", "ready", 1, "pos")))
	require.Error(t, m.Connect())
	m.Disconnect()

	dialsAtStop := dialer.dialCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, dialsAtStop, dialer.dialCount(), "no retries after Disconnect")
	assert.Equal(t, 1, m.QueuedOperationCount(), "queued operations survive Disconnect")
}

func TestBackoffDelayDoublesToCap(t *testing.T) {
	m := newTestManager(&fakeDialer{}, nil, Options{
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		MaxRetries: 10,
		QueueLimit: 10,
	})

	expected := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, m.backoffDelay(i+1), "attempt %d", i+1)
	}
}

func TestStatusChangesStream(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer, &recordingHandler{}, fastOptions())
	defer m.Disconnect()

	require.NoError(t, m.Connect())

	var sawConnecting, sawConnected bool
	deadline := time.After(time.Second)
	for !(sawConnecting && sawConnected) {
		select {
		case status := <-m.StatusChanges():
			switch status.State {
			case StateConnecting:
				sawConnecting = true
			case StateConnected:
				sawConnected = true
			}
		case <-deadline:
			t.Fatalf("status stream missing transitions: connecting=%v connected=%v", sawConnecting, sawConnected)
		}
	}
}
