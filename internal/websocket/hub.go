package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/domain"
)

// Message types
const (
	MessageTypeLeaderboardUpdate = "leaderboard_update"
	MessageTypeAFKUpdate         = "afk_update"
	MessageTypePlaytimeUpdate    = "playtime_update"
	MessageTypeSubscribe         = "subscribe"
	MessageTypeUnsubscribe       = "unsubscribe"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
)

// Subscription channels beyond the rankable category names.
const (
	// ChannelAFK carries AFK status changes.
	ChannelAFK = "afk"
	// ChannelPlaytime carries session play time milestones.
	ChannelPlaytime = "playtime"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// LeaderboardUpdate contains a category's refreshed standings.
type LeaderboardUpdate struct {
	Category  domain.Category   `json:"category"`
	Positions []domain.Position `json:"positions"`
}

// AFKUpdate announces one player's AFK transition.
type AFKUpdate struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	AFK      bool      `json:"afk"`
}

// PlaytimeUpdate announces a player's session play time milestone.
type PlaytimeUpdate struct {
	PlayerID       uuid.UUID `json:"player_id"`
	Name           string    `json:"name"`
	SessionSeconds int64     `json:"session_seconds"`
}

// StandingsSource supplies the combined view to broadcast. The
// leaderboard aggregator implements it.
type StandingsSource interface {
	Combined(category domain.Category) (domain.TopTen, error)
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by channel
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Inbound messages from clients
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger

	standings StandingsSource

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client  *Client
	channel string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetStandings wires the standings source used by leaderboard
// broadcasts.
func (h *Hub) SetStandings(standings StandingsSource) {
	h.standings = standings
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				// Remove from all channel subscriptions
				for channel, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, channel)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.channel]; !ok {
				h.clients[req.channel] = make(map[*Client]bool)
			}
			h.clients[req.channel][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "channel", req.channel)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.channel]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.channel)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "channel", req.channel)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to all subscribed clients
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	// If message has a channel, only send to subscribed clients
	if message.Channel != "" {
		if clients, ok := h.clients[message.Channel]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Client's buffer is full, skip
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		// Broadcast to all clients
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// BroadcastAFK announces an applied AFK transition on the afk channel.
func (h *Hub) BroadcastAFK(id uuid.UUID, name string, afk bool) {
	message := &Message{
		Type:    MessageTypeAFKUpdate,
		Channel: ChannelAFK,
		Data: AFKUpdate{
			PlayerID: id,
			Name:     name,
			AFK:      afk,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastPlaytime announces a session play time milestone on the
// playtime channel.
func (h *Hub) BroadcastPlaytime(id uuid.UUID, name string, sessionSeconds int64) {
	message := &Message{
		Type:    MessageTypePlaytimeUpdate,
		Channel: ChannelPlaytime,
		Data: PlaytimeUpdate{
			PlayerID:       id,
			Name:           name,
			SessionSeconds: sessionSeconds,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastLeaderboards pushes every rankable category's refreshed
// combined standings to its subscribers.
func (h *Hub) BroadcastLeaderboards() {
	if h.standings == nil {
		return
	}

	for _, category := range domain.RankableCategories() {
		top, err := h.standings.Combined(category)
		if err != nil {
			continue
		}

		message := &Message{
			Type:    MessageTypeLeaderboardUpdate,
			Channel: string(category),
			Data: LeaderboardUpdate{
				Category:  category,
				Positions: top.Positions(),
			},
			Timestamp: time.Now(),
		}

		select {
		case h.broadcast <- message:
		default:
			h.logger.Warn("broadcast channel full, dropping message")
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a channel subscription
func (h *Hub) Subscribe(client *Client, channel string) {
	h.subscribe <- &subscriptionRequest{
		client:  client,
		channel: channel,
	}
}

// Unsubscribe removes a client from a channel subscription
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.unsubscribe <- &subscriptionRequest{
		client:  client,
		channel: channel,
	}
}

// GetSubscriberCount returns the number of subscribers for a channel
func (h *Hub) GetSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[channel]; ok {
		return len(clients)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
