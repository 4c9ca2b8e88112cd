package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tmdgusya/crawl-selector/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20
)

// ErrPeerGone is returned for requests still waiting when the socket closes.
var ErrPeerGone = errors.New("websocket peer disconnected")

// WebSocketEndpoint attaches a remote peer to the bus as one context. The
// peer receives envelopes addressed to that context as JSON text frames and
// may send envelopes of its own, which are routed like local ones.
type WebSocketEndpoint struct {
	bus      *Bus
	origin   Origin
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketEndpoint returns an endpoint serving origin. checkOrigin may be
// nil to accept every browser origin.
func NewWebSocketEndpoint(bus *Bus, origin Origin, log logger.Logger, checkOrigin func(*http.Request) bool) *WebSocketEndpoint {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketEndpoint{
		bus:    bus,
		origin: origin,
		log:    log.With(logger.String("component", "ws"), logger.String("origin", string(origin))),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (w *WebSocketEndpoint) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.bus.Attached(w.origin) {
		http.Error(rw, fmt.Sprintf("%s is already connected", w.origin), http.StatusConflict)
		return
	}

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log.Warn("WebSocket upgrade failed", logger.Error(err))
		return
	}

	p := &peer{
		conn:    conn,
		origin:  w.origin,
		bus:     w.bus,
		log:     w.log,
		pending: make(map[string]chan Envelope),
		closed:  make(chan struct{}),
	}
	detach, err := w.bus.Attach(w.origin, p.forward)
	if err != nil {
		p.writeClose(websocket.ClosePolicyViolation, err.Error())
		p.close()
		return
	}
	defer func() {
		p.close()
		detach()
	}()

	w.log.Info("Peer connected", logger.String("remote_addr", r.RemoteAddr))
	go p.keepAlive()
	p.readLoop(r.Context())
	w.log.Info("Peer disconnected", logger.String("remote_addr", r.RemoteAddr))
}

type peer struct {
	conn   *websocket.Conn
	origin Origin
	bus    *Bus
	log    logger.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Envelope

	closeOnce sync.Once
	closed    chan struct{}
	inflight  sync.WaitGroup
}

// forward is the bus handler for the remote context.
func (p *peer) forward(ctx context.Context, env Envelope) (any, error) {
	if !env.Kind.IsRequest() {
		return nil, p.write(env)
	}

	ch := make(chan Envelope, 1)
	p.mu.Lock()
	p.pending[env.ID] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, env.ID)
		p.mu.Unlock()
	}()

	if err := p.write(env); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		if len(resp.Payload) == 0 {
			return nil, nil
		}
		return resp.Payload, nil
	case <-p.closed:
		return nil, ErrPeerGone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *peer) readLoop(ctx context.Context) {
	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				p.log.Warn("Dropping malformed envelope", logger.Error(err))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.log.Warn("WebSocket read failed", logger.Error(err))
			}
			return
		}
		env.Origin = p.origin

		if env.IsReply() {
			p.resolve(env)
			continue
		}
		if env.Kind.IsRequest() {
			p.inflight.Add(1)
			go func() {
				defer p.inflight.Done()
				p.relayRequest(ctx, env)
			}()
			continue
		}
		if err := p.bus.Send(ctx, env); err != nil {
			p.log.Debug("Notification not routed", logger.String("kind", string(env.Kind)), logger.Error(err))
		}
	}
}

func (p *peer) relayRequest(ctx context.Context, env Envelope) {
	resp, err := p.bus.Request(ctx, env)
	if err != nil {
		resp = reply(env, env.Target, nil, err)
	}
	if err := p.write(resp); err != nil {
		p.log.Debug("Failed to deliver response", logger.String("id", env.ID), logger.Error(err))
	}
}

func (p *peer) resolve(env Envelope) {
	p.mu.Lock()
	ch, ok := p.pending[env.ReplyTo]
	p.mu.Unlock()
	if !ok {
		p.log.Debug("Dropping unmatched reply", logger.String("reply_to", env.ReplyTo))
		return
	}
	select {
	case ch <- env:
	default:
	}
}

func (p *peer) write(env Envelope) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	select {
	case <-p.closed:
		return ErrPeerGone
	default:
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", env.Kind, err)
	}
	return nil
}

func (p *peer) writeClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (p *peer) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-p.closed:
			return
		}
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		_ = p.conn.Close()
	})
	p.inflight.Wait()
}
