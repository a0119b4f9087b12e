package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client. Allow filters events by department;
// nil means every department of the team.
type Client struct {
	ID     string
	UserID string
	TeamID string
	Allow  func(departmentID string) bool
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates a new SSE Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("sse client registered",
		zap.String("client_id", client.ID),
		zap.String("team_id", client.TeamID),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("sse client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every client of the team that may see departmentID.
func (h *Hub) Broadcast(teamID, departmentID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.TeamID != teamID {
			continue
		}
		if client.Allow != nil && !client.Allow(departmentID) {
			continue
		}
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping event", zap.String("client_id", client.ID))
		}
	}
}

// OperationUpdate 工序状态变更通知
type OperationUpdate struct {
	TeamID       string `json:"team_id"`
	OrderID      string `json:"order_id"`
	OperationID  string `json:"operation_id"`
	DepartmentID string `json:"department_id"`
	Action       string `json:"action"`
	Status       string `json:"status"`
	OrderStatus  string `json:"order_status"`
}

// PublishOperationUpdate sends an operation_update event to the team's board.
func (h *Hub) PublishOperationUpdate(update OperationUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		h.logger.Warn("sse encode failed", zap.Error(err))
		return
	}
	h.Broadcast(update.TeamID, update.DepartmentID, Event{
		EventType: "operation_update",
		Data:      string(data),
	})
}
