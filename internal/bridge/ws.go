package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/factoryd/internal/access"
)

const (
	// wsMaxMessageSize caps one response from a client.
	wsMaxMessageSize = 1 << 20

	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
	wsWriteWait    = 10 * time.Second
)

// WSServer is the websocket Transport. Remote clients dial in and stay
// connected; factoryd sends them requests over that connection.
type WSServer struct {
	secret   string
	logger   Logger
	upgrader websocket.Upgrader
	pending  *pending

	mu    sync.Mutex
	conns map[string]*wsConn
	// changed is closed and replaced whenever a client connects.
	changed chan struct{}
	closed  bool
}

type wsConn struct {
	client  string
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

var _ Transport = (*WSServer)(nil)

// NewWSServer returns a websocket transport accepting tokens signed with
// secret.
func NewWSServer(secret string) *WSServer {
	return &WSServer{
		secret: secret,
		logger: noopLogger{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients are game computers, not browsers; the token is the
			// only credential.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pending: newPending(),
		conns:   make(map[string]*wsConn),
		changed: make(chan struct{}),
	}
}

// SetLogger sets the logger for the server.
func (s *WSServer) SetLogger(logger Logger) {
	s.logger = logger
}

// Connected returns the names of the connected clients, sorted.
func (s *WSServer) Connected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.conns))
	for name := range s.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServeHTTP authenticates and upgrades a client connection, then reads
// its responses until it disconnects.
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	client, err := ParseToken(tokenFromRequest(r), s.secret)
	if err != nil {
		s.logger.Warn("client connection refused", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "invalid client token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("client websocket upgrade failed", "client", client, "error", err)
		return
	}

	c := &wsConn{client: client, conn: conn, done: make(chan struct{})}
	if !s.register(c) {
		c.close()
		return
	}
	s.logger.Info("remote client connected", "client", client, "remote", r.RemoteAddr)

	go s.pingLoop(c)
	s.readLoop(c)
}

func (s *WSServer) register(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if old, ok := s.conns[c.client]; ok {
		s.logger.Warn("remote client reconnected, dropping previous connection", "client", c.client)
		old.close()
	}
	s.conns[c.client] = c
	close(s.changed)
	s.changed = make(chan struct{})
	return true
}

func (s *WSServer) unregister(c *wsConn) {
	s.mu.Lock()
	if s.conns[c.client] == c {
		delete(s.conns, c.client)
	}
	s.mu.Unlock()
	c.close()
}

func (s *WSServer) readLoop(c *wsConn) {
	defer func() {
		s.unregister(c)
		s.logger.Info("remote client disconnected", "client", c.client)
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("client websocket read error", "client", c.client, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			s.logger.Warn("undecodable client message", "client", c.client, "error", err)
			continue
		}
		if !s.pending.resolve(c.client, resp) {
			s.logger.Debug("response without a waiting request", "client", c.client, "id", resp.ID)
		}
	}
}

func (s *WSServer) pingLoop(c *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

// Call sends req to its client, waiting for the client to connect if
// necessary, and returns the client's response.
func (s *WSServer) Call(ctx context.Context, req Request) (Response, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return Response{}, fmt.Errorf("%w: %w", access.ErrNotConnected, ErrClosed)
		}
		c, changed := s.conns[req.Client], s.changed
		s.mu.Unlock()

		if c != nil {
			return s.send(ctx, c, req)
		}
		select {
		case <-ctx.Done():
			return Response{}, fmt.Errorf("%w: %s: %w", access.ErrNotConnected, req.Client, ctx.Err())
		case <-changed:
		}
	}
}

func (s *WSServer) send(ctx context.Context, c *wsConn, req Request) (Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}

	ch := s.pending.add(req)
	defer s.pending.remove(req.ID)

	if err := c.write(data); err != nil {
		c.close()
		return Response{}, fmt.Errorf("%w: %s: %w", access.ErrNotConnected, req.Client, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.done:
		return Response{}, fmt.Errorf("%w: %s disconnected", access.ErrNotConnected, req.Client)
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Close disconnects every client. Calls in flight fail.
func (s *WSServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for name, c := range s.conns {
		c.close()
		delete(s.conns, name)
	}
	close(s.changed)
	return nil
}

func (c *wsConn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
