package realtime

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yeremiapane/pos-sync/utils"
)

// State is the connection lifecycle: disconnected -> connecting -> connected.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Status is the observable connection snapshot UI layers poll or subscribe
// to for the connection indicator.
type Status struct {
	State       State  `json:"-"`
	StateLabel  string `json:"state"`
	QueuedCount int    `json:"queued_count"`
	Attempts    int    `json:"attempts"`
	ClientID    string `json:"client_id,omitempty"`
}

// Handler receives decoded inbound messages. Dispatch is sequential: the
// next message is not read until the handler returns.
type Handler interface {
	HandleOrderCreated(msg *OrderCreatedMessage)
	HandleOrderStatusUpdate(msg *OrderStatusUpdateMessage)
	HandleSyncState(msg *SyncStateMessage)
	HandleServerError(msg *ErrorMessage)
}

// Conn is the minimal transport surface the manager needs. Satisfied by
// *websocket.Conn and by test fakes.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a transport connection to the given endpoint.
type Dialer interface {
	Dial(url string) (Conn, error)
}

type gorillaDialer struct {
	header http.Header
}

func (d *gorillaDialer) Dial(url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, d.header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NewGorillaDialer returns the production websocket dialer. The access
// token, when present, rides along as a bearer header.
func NewGorillaDialer(accessToken string) Dialer {
	header := http.Header{}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}
	return &gorillaDialer{header: header}
}

// Options tunes the reconnection policy and queue bound.
type Options struct {
	BaseDelay        time.Duration // first retry delay, doubles per attempt
	MaxDelay         time.Duration // backoff cap
	MaxRetries       int           // automatic retries before going terminal
	QueueLimit       int           // outbound queue bound; overflow drops oldest
	PingInterval     time.Duration // keep-alive interval; 0 disables pings
	HandshakeTimeout time.Duration // registration acknowledgment deadline
}

// DefaultOptions match the documented policy: 1s base, 30s cap, 10 retries,
// 1000 queued operations.
func DefaultOptions() Options {
	return Options{
		BaseDelay:        time.Second,
		MaxDelay:         30 * time.Second,
		MaxRetries:       10,
		QueueLimit:       1000,
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// ConnectionManager owns the single logical realtime connection for a tenant
// session. Operations submitted while offline are queued in FIFO order and
// flushed on reconnect, before inbound dispatch resumes.
type ConnectionManager struct {
	baseURL    string
	tenantID   string
	deviceType string
	dialer     Dialer
	handler    Handler
	opts       Options
	statusCh   chan Status

	mu         sync.Mutex
	state      State
	conn       Conn
	clientID   string
	queue      [][]byte
	attempts   int
	retryTimer *time.Timer
	closed     bool
	gen        int
}

// NewConnectionManager wires a manager for one tenant session. The handler
// may be nil while the composition root is still assembling; set it with
// SetHandler before Connect.
func NewConnectionManager(baseURL, tenantID, deviceType string, dialer Dialer, handler Handler, opts Options) *ConnectionManager {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay
	}
	if opts.QueueLimit <= 0 {
		opts.QueueLimit = 1000
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &ConnectionManager{
		baseURL:    baseURL,
		tenantID:   tenantID,
		deviceType: deviceType,
		dialer:     dialer,
		handler:    handler,
		opts:       opts,
		statusCh:   make(chan Status, 16),
	}
}

// SetHandler installs the inbound dispatch target. Must be called before
// Connect.
func (m *ConnectionManager) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// StatusChanges is the observable stream of connection status snapshots.
// The channel is buffered and never blocks the manager; slow consumers miss
// intermediate updates, not the latest state (poll Status for that).
func (m *ConnectionManager) StatusChanges() <-chan Status {
	return m.statusCh
}

// Connect establishes the session, blocking until the handshake completes or
// fails. A failed attempt arms the automatic retry timer. Calling Connect
// after the retry budget is exhausted re-arms the policy from zero.
func (m *ConnectionManager) Connect() error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.closed = false
	m.attempts = 0
	m.mu.Unlock()
	return m.connect()
}

func (m *ConnectionManager) connect() error {
	m.mu.Lock()
	if m.closed || m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.state = StateConnecting
	m.notifyLocked()
	url := fmt.Sprintf("%s/ws/orders/%s", m.baseURL, m.tenantID)
	m.mu.Unlock()

	conn, err := m.dialer.Dial(url)
	if err != nil {
		m.connectFailed(fmt.Errorf("dial %s: %w", url, err))
		return err
	}

	clientID, err := m.handshake(conn)
	if err != nil {
		conn.Close()
		m.connectFailed(err)
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.clientID = clientID
	m.attempts = 0
	m.gen++
	gen := m.gen
	m.state = StateConnected

	// Flush queued operations in submission order before the read loop can
	// deliver anything, so a snapshot arriving on reconnect cannot
	// interleave with the replay.
	flushErr := m.flushLocked(conn)
	m.notifyLocked()
	m.mu.Unlock()

	utils.InfoLogger.Printf("realtime connected, tenant=%s client=%s", m.tenantID, clientID)

	if flushErr != nil {
		m.transportError(gen, conn, flushErr)
		return nil
	}

	go m.readLoop(gen, conn)
	if m.opts.PingInterval > 0 {
		go m.pingLoop(gen, conn)
	}
	return nil
}

// handshake registers the device and waits for the acknowledgment. The
// first frame must be `registered`; an `error` frame fails the attempt. The
// wait is bounded by HandshakeTimeout so a backend that upgrades the socket
// but never acknowledges cannot wedge the manager in connecting.
func (m *ConnectionManager) handshake(conn Conn) (string, error) {
	reg, err := json.Marshal(registerMessage{
		Type:       TypeRegister,
		DeviceType: m.deviceType,
		TenantID:   m.tenantID,
	})
	if err != nil {
		return "", err
	}
	if err := conn.WriteMessage(websocket.TextMessage, reg); err != nil {
		return "", fmt.Errorf("registration send failed: %w", err)
	}

	type ack struct {
		clientID string
		err      error
	}
	ackCh := make(chan ack, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ackCh <- ack{err: fmt.Errorf("registration read failed: %w", err)}
			return
		}
		msg, err := DecodeInbound(data)
		if err != nil {
			ackCh <- ack{err: fmt.Errorf("registration response: %w", err)}
			return
		}
		switch msg := msg.(type) {
		case *RegisteredMessage:
			ackCh <- ack{clientID: msg.ClientID}
		case *ErrorMessage:
			ackCh <- ack{err: fmt.Errorf("registration rejected: %s (%s)", msg.Message, msg.Code)}
		default:
			ackCh <- ack{err: fmt.Errorf("unexpected registration response %T", msg)}
		}
	}()

	timer := time.NewTimer(m.opts.HandshakeTimeout)
	defer timer.Stop()
	select {
	case a := <-ackCh:
		return a.clientID, a.err
	case <-timer.C:
		// Closing unblocks the pending read; the goroutine exits into the
		// buffered channel.
		conn.Close()
		return "", fmt.Errorf("registration not acknowledged within %s", m.opts.HandshakeTimeout)
	}
}

func (m *ConnectionManager) flushLocked(conn Conn) error {
	for i, frame := range m.queue {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			m.queue = append([][]byte(nil), m.queue[i:]...)
			return err
		}
	}
	m.queue = nil
	return nil
}

func (m *ConnectionManager) connectFailed(err error) {
	utils.ErrorLogger.Printf("realtime connect failed: %v", err)
	m.mu.Lock()
	m.state = StateDisconnected
	m.scheduleRetryLocked()
	m.notifyLocked()
	m.mu.Unlock()
}

// scheduleRetryLocked arms the next automatic attempt, or goes terminal once
// the retry budget is spent.
func (m *ConnectionManager) scheduleRetryLocked() {
	if m.closed {
		return
	}
	if m.attempts >= m.opts.MaxRetries {
		utils.ErrorLogger.Printf("realtime retry budget exhausted after %d attempts, staying disconnected", m.attempts)
		return
	}
	m.attempts++
	delay := m.backoffDelay(m.attempts)
	delay += time.Duration(rand.Int63n(int64(delay/4) + 1))
	m.retryTimer = time.AfterFunc(delay, func() {
		m.connect()
	})
}

// backoffDelay returns the deterministic part of the delay for the given
// attempt: base doubling per attempt, capped.
func (m *ConnectionManager) backoffDelay(attempt int) time.Duration {
	delay := m.opts.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.opts.MaxDelay {
			return m.opts.MaxDelay
		}
	}
	if delay > m.opts.MaxDelay {
		delay = m.opts.MaxDelay
	}
	return delay
}

func (m *ConnectionManager) readLoop(gen int, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.transportError(gen, conn, err)
			return
		}
		msg, err := DecodeInbound(data)
		if err != nil {
			utils.ErrorLogger.Printf("realtime inbound decode: %v", err)
			continue
		}
		m.dispatch(msg)
	}
}

func (m *ConnectionManager) dispatch(msg InboundMessage) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler == nil {
		return
	}

	switch msg := msg.(type) {
	case *OrderCreatedMessage:
		handler.HandleOrderCreated(msg)
	case *OrderStatusUpdateMessage:
		handler.HandleOrderStatusUpdate(msg)
	case *SyncStateMessage:
		handler.HandleSyncState(msg)
	case *ErrorMessage:
		handler.HandleServerError(msg)
	case *RegisteredMessage, *PongMessage:
		// Session-level frames, nothing to apply.
	}
}

func (m *ConnectionManager) pingLoop(gen int, conn Conn) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()
	ping, _ := json.Marshal(pingMessage{Type: TypePing})

	for range ticker.C {
		m.mu.Lock()
		if m.gen != gen || m.conn != conn {
			m.mu.Unlock()
			return
		}
		err := conn.WriteMessage(websocket.TextMessage, ping)
		m.mu.Unlock()
		if err != nil {
			m.transportError(gen, conn, err)
			return
		}
	}
}

// transportError tears the session down and arms the retry policy, unless a
// newer session already replaced this one.
func (m *ConnectionManager) transportError(gen int, conn Conn, err error) {
	m.mu.Lock()
	if m.gen != gen || m.conn != conn {
		m.mu.Unlock()
		return
	}
	utils.ErrorLogger.Printf("realtime connection lost: %v", err)
	m.conn = nil
	m.clientID = ""
	m.state = StateDisconnected
	conn.Close()
	m.scheduleRetryLocked()
	m.notifyLocked()
	m.mu.Unlock()
}

// Send delivers a message best-effort when connected, and queues it in FIFO
// order otherwise. The queue is bounded; overflow drops the oldest entry.
// A realtime send is advisory: callers wait for the asynchronous
// confirmation push, not for a synchronous result.
func (m *ConnectionManager) Send(msg interface{}) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateConnected && m.conn != nil {
		if err := m.conn.WriteMessage(websocket.TextMessage, frame); err == nil {
			return nil
		}
		// Write failed mid-send; fall through to queue so the operation is
		// not lost. The read loop notices the dead connection and retries.
	}

	if len(m.queue) >= m.opts.QueueLimit {
		m.queue = m.queue[1:]
		utils.ErrorLogger.Printf("realtime outbound queue full (%d), dropped oldest operation", m.opts.QueueLimit)
	}
	m.queue = append(m.queue, frame)
	m.notifyLocked()
	return nil
}

// Connected reports whether the session is established. Callers use this to
// pick the submission tier.
func (m *ConnectionManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// QueuedOperationCount is the current outbound queue depth.
func (m *ConnectionManager) QueuedOperationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Status returns the current observable snapshot.
func (m *ConnectionManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *ConnectionManager) statusLocked() Status {
	return Status{
		State:       m.state,
		StateLabel:  m.state.String(),
		QueuedCount: len(m.queue),
		Attempts:    m.attempts,
		ClientID:    m.clientID,
	}
}

func (m *ConnectionManager) notifyLocked() {
	select {
	case m.statusCh <- m.statusLocked():
	default:
	}
}

// Disconnect stops the session and the retry policy. Queued operations are
// kept for the next Connect.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.gen++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.clientID = ""
	m.state = StateDisconnected
	m.notifyLocked()
}
