package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// WriteWait is the timeout for writing to a WebSocket.
	WriteWait = 10 * time.Second

	// PongWait is the timeout for pong responses.
	PongWait = 60 * time.Second

	// PingPeriod is how often to send ping frames.
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is the maximum message size accepted from clients.
	MaxMessageSize = 512
)

// Observer streams bus events to websocket clients. It is an http.Handler; mount it
// on any mux and call Start before serving.
type Observer struct {
	bus      *Bus
	upgrader websocket.Upgrader
	config   ObserverConfig
	log      zerolog.Logger
	subID    SubscriptionID

	// Client management
	clients    map[*Client]bool
	clientsMu  sync.RWMutex
	register   chan *Client
	unregister chan *Client

	// Control
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	runningMu sync.RWMutex
}

// Client represents a single WebSocket connection.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once

	replayHistory bool
	historyCount  int
}

// ObserverConfig configures the websocket observer.
type ObserverConfig struct {
	ReplayHistory bool
	HistoryCount  int
}

// DefaultObserverConfig returns the default observer configuration.
func DefaultObserverConfig() ObserverConfig {
	return ObserverConfig{
		ReplayHistory: true,
		HistoryCount:  100,
	}
}

// NewObserver creates an observer attached to the given bus.
func NewObserver(bus *Bus, config ObserverConfig) *Observer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Observer{
		bus:    bus,
		config: config,
		log:    log.With().Str("component", "observer").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the bus and starts the client manager.
func (o *Observer) Start() error {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()
	if o.running {
		return fmt.Errorf("observer already running")
	}
	o.running = true

	o.subID = o.bus.Subscribe(EventType(""), o.handleBusEvent)

	o.wg.Add(1)
	go o.runClientManager()
	return nil
}

// Stop disconnects every client and waits for the observer goroutines.
func (o *Observer) Stop() error {
	o.runningMu.Lock()
	if !o.running {
		o.runningMu.Unlock()
		return nil
	}
	o.running = false
	o.runningMu.Unlock()

	if o.subID != "" {
		_ = o.bus.Unsubscribe(o.subID)
	}
	o.cancel()

	o.clientsMu.Lock()
	for client := range o.clients {
		o.closeClient(client)
		delete(o.clients, client)
	}
	o.clientsMu.Unlock()

	o.wg.Wait()
	o.log.Debug().Msg("observer stopped")
	return nil
}

// ClientCount returns the number of connected WebSocket clients.
func (o *Observer) ClientCount() int {
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	return len(o.clients)
}

func (o *Observer) runClientManager() {
	defer o.wg.Done()

	for {
		select {
		case client := <-o.register:
			o.clientsMu.Lock()
			o.clients[client] = true
			count := len(o.clients)
			o.clientsMu.Unlock()
			o.log.Debug().Int("clients", count).Msg("client connected")

			if client.replayHistory {
				o.replayHistoryToClient(client, client.historyCount)
			}

		case client := <-o.unregister:
			o.clientsMu.Lock()
			if _, ok := o.clients[client]; ok {
				delete(o.clients, client)
				o.closeClient(client)
			}
			count := len(o.clients)
			o.clientsMu.Unlock()
			o.log.Debug().Int("clients", count).Msg("client disconnected")

		case <-o.ctx.Done():
			return
		}
	}
}

// closeClient must be called with clientsMu held.
func (o *Observer) closeClient(client *Client) {
	client.once.Do(func() {
		close(client.send)
		client.conn.Close()
	})
}

func (o *Observer) replayHistoryToClient(client *Client, count int) {
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	if _, ok := o.clients[client]; !ok {
		return
	}
	for _, event := range o.bus.GetHistorySlice(count) {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		select {
		case client.send <- data:
		default:
			return
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client goes away.
// Query parameters: replay=false disables history replay, count=N limits it.
func (o *Observer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	replay := o.config.ReplayHistory && r.URL.Query().Get("replay") != "false"
	count := o.config.HistoryCount
	if n, err := strconv.Atoi(r.URL.Query().Get("count")); err == nil && n >= 0 {
		count = n
	}

	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		conn:          conn,
		send:          make(chan []byte, 256),
		replayHistory: replay,
		historyCount:  count,
	}

	select {
	case o.register <- client:
	case <-o.ctx.Done():
		conn.Close()
		return
	}

	o.wg.Add(2)
	go o.writePump(client)
	go o.readPump(client)
}

func (o *Observer) writePump(client *Client) {
	defer o.wg.Done()

	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-o.ctx.Done():
			return
		}
	}
}

func (o *Observer) readPump(client *Client) {
	defer o.wg.Done()
	defer func() {
		select {
		case o.unregister <- client:
		case <-o.ctx.Done():
		}
	}()

	client.conn.SetReadLimit(MaxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(PongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				o.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		// Inbound messages are ignored; the stream is one-way.
	}
}

func (o *Observer) handleBusEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		o.log.Warn().Err(err).Msg("failed to marshal event")
		return
	}

	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	for client := range o.clients {
		select {
		case client.send <- data:
		default:
			// Slow client; drop the event rather than stall the bus.
		}
	}
}
