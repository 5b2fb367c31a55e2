package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"ray/progress"
)

// Event types sent to SSE clients.
const (
	RunStarted  = "run_started"
	RunFinished = "run_finished"
	Progress    = "progress"
)

// EventBroker manages SSE connections and broadcasts events
type EventBroker struct {
	clients map[chan string]bool
	mu      sync.RWMutex
	log     *slog.Logger
}

// NewBroker returns a broker with no clients.
func NewBroker(log *slog.Logger) *EventBroker {
	if log == nil {
		log = slog.Default()
	}
	return &EventBroker{
		clients: make(map[chan string]bool),
		log:     log.With("component", "events"),
	}
}

// Register adds a new SSE client
func (b *EventBroker) Register(client chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = true
	b.log.Debug("SSE client connected", "clients", len(b.clients))
}

// Unregister removes an SSE client and closes its channel.
func (b *EventBroker) Unregister(client chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.clients[client] {
		return
	}
	delete(b.clients, client)
	close(client)
	b.log.Debug("SSE client disconnected", "clients", len(b.clients))
}

// Clients returns the number of connected clients.
func (b *EventBroker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends an event to all connected clients. Clients whose buffer
// is full miss the event.
func (b *EventBroker) Broadcast(eventType string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		b.log.Error("failed to marshal event data", "event", eventType, "error", err)
		return
	}
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, jsonData)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- message:
		default:
		}
	}
	b.log.Debug("broadcast event", "event", eventType, "clients", len(b.clients))
}

// ProgressEvent is the payload of a progress event.
type ProgressEvent struct {
	Project string `json:"project"`
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Label   string `json:"label"`
}

// Progress returns a reporter that broadcasts the progress of project.
func (b *EventBroker) Progress(project string) progress.Reporter {
	return progress.ReporterFunc(func(step, total int, label string) {
		b.Broadcast(Progress, ProgressEvent{Project: project, Step: step, Total: total, Label: label})
	})
}
