package headhttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/headsync/pkg/vdom"
)

// MessageType is the type of a stream message.
type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessagePatches  MessageType = "patches"
)

const (
	// DefaultWriteTimeout bounds a single websocket write.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultSendBuffer is the number of messages queued per client before
	// the client is dropped as too slow.
	DefaultSendBuffer = 32
)

// Message is sent to stream clients as JSON.
type Message struct {
	Type    MessageType  `json:"type"`
	Seq     uint64       `json:"seq"`
	Head    *vdom.VNode  `json:"head,omitempty"`
	Patches []vdom.Patch `json:"patches,omitempty"`
}

// StreamOption configures NewStream.
type StreamOption func(*Stream)

// WithWriteTimeout sets the deadline for each websocket write.
func WithWriteTimeout(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithSendBuffer sets how many messages may queue for one client.
func WithSendBuffer(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// client is one websocket connection. Its writer goroutine owns all writes
// to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// Stream fans committed document patches out to websocket clients. A new
// client first receives a snapshot of the document so later patches have
// something to apply to. Publish never blocks on the network: a client
// whose queue is full is dropped.
type Stream struct {
	doc          *vdom.Document
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	sendBuffer   int
	seq          atomic.Uint64
	cancel       func()

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewStream subscribes to doc. checkOrigin may be nil to allow every origin.
func NewStream(doc *vdom.Document, checkOrigin func(*http.Request) bool, logger *slog.Logger, opts ...StreamOption) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	s := &Stream{
		doc:          doc,
		logger:       logger.With("component", "stream"),
		writeTimeout: DefaultWriteTimeout,
		sendBuffer:   DefaultSendBuffer,
		clients:      make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cancel = doc.Subscribe(s.Publish)
	return s
}

// ServeHTTP upgrades the request and keeps the connection until the client
// goes away.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, s.sendBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	// Batches published after registration carry a Seq above the snapshot,
	// and queue behind it.
	data, err := json.Marshal(Message{Type: MessageSnapshot, Seq: s.seq.Load(), Head: s.doc.Snapshot()})
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("snapshot encoding failed", "error", err)
		conn.Close()
		return
	}
	c.send <- data
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writePump(c)
	s.logger.Debug("stream client connected", "clients", s.ClientCount())

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
}

// writePump writes queued messages to c until it is dropped.
func (s *Stream) writePump(c *client) {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("dropping stream client", "error", err)
				s.drop(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Publish queues a batch of patches for every client.
func (s *Stream) Publish(patches []vdom.Patch) {
	var slow []*client

	s.mu.RLock()
	data, err := json.Marshal(Message{Type: MessagePatches, Seq: s.seq.Add(1), Patches: patches})
	if err != nil {
		s.mu.RUnlock()
		s.logger.Error("patch encoding failed", "error", err)
		return
	}
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range slow {
		s.logger.Warn("dropping slow stream client", "buffer", s.sendBuffer)
		s.drop(c)
	}
}

func (s *Stream) drop(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

// ClientCount returns the number of connected clients.
func (s *Stream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close unsubscribes from the document and closes all client connections.
func (s *Stream) Close() {
	s.cancel()

	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.close()
	}
}
