package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// Subscription narrows which visitor events a client receives. Empty
// fields are wildcards, so an admin dashboard subscribes with everything
// blank and sees the whole floor, while a staff tablet subscribes with
// its own staff ID.
type Subscription struct {
	StaffID string
	Role    string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action  string `json:"action"`
	StaffID string `json:"staff_id"`
	Role    string `json:"role"`
}

// Meta describes a published event for routing purposes.
type Meta struct {
	StaffID string
	Roles   []string
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

// Broadcast fans a payload out to every matching client. A client whose
// send buffer is full loses the message rather than stalling the hub.
func (h *Hub) Broadcast(payload []byte, meta Meta) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, meta) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

func match(sub Subscription, meta Meta) bool {
	if sub.StaffID == "" && sub.Role == "" {
		return true
	}
	if sub.StaffID != "" && meta.StaffID == sub.StaffID {
		return true
	}
	if sub.Role != "" {
		for _, role := range meta.Roles {
			if role == sub.Role {
				return true
			}
		}
	}
	return false
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
